package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/theregram/backend/internal/repository"
)

// RatingWorker consumes rating.recalculate jobs and rewrites the
// denormalized average on the post.  It runs outside the request path and
// talks to the handlers only through the rating rows and the aggregate
// column, so running a job late or twice is safe.
type RatingWorker struct {
	Ratings *repository.RatingRepo
	Posts   *repository.PostRepo
}

// Start connects to RabbitMQ, declares the durable rating queue, and
// consumes jobs forever.  A reconnect loop with exponential backoff keeps
// the worker alive through broker restarts; processing errors are logged
// and the message rejected without requeue to avoid tight loops.
func (w *RatingWorker) Start() error {
	return runConsumer(RatingQueueName, w.handle)
}

func (w *RatingWorker) handle(body []byte) error {
	var ev RatingRecalcEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Always recompute from the full rating set; never adjust a running
	// average incrementally.
	avg, count, err := w.Ratings.Average(ctx, ev.PostID)
	if err != nil {
		return fmt.Errorf("average post %d: %w", ev.PostID, err)
	}
	if count == 0 {
		// Last rating was removed by moderation; reset the aggregate.
		avg = 0
	}
	avg = math.Round(avg*100) / 100

	// SetAverageRating matches zero rows when the post was deleted
	// between enqueue and execution; that is a silent no-op.
	if err := w.Posts.SetAverageRating(ctx, ev.PostID, avg); err != nil {
		return fmt.Errorf("update post %d: %w", ev.PostID, err)
	}
	return nil
}

// EmailWorker consumes email.send jobs.  Actual SMTP delivery lives
// outside this service; the worker appends each job to logs/email.log in
// a single-line, human-friendly format so the outbox is inspectable in
// development and the queue drains in every environment.
type EmailWorker struct{}

// Start consumes the durable email queue forever with the same reconnect
// behavior as the rating worker.
func (w *EmailWorker) Start() error {
	return runConsumer(EmailQueueName, w.handle)
}

func (w *EmailWorker) handle(body []byte) error {
	var ev EmailJobEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "email.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Email queued | to=%s | letter_id=%s | subject=%q | template=%s\n",
		time.Now().UTC().Format(time.RFC3339), ev.Recipient, ev.LetterID, ev.Subject, ev.Template)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// runConsumer dials the broker in a reconnect loop and feeds deliveries
// from queueName to handle.  It only returns on programmer error; broker
// failures are retried with backoff.
func runConsumer(queueName string, handle func([]byte) error) error {
	url := BrokerURL()

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("%s-consumer: failed to dial broker: %v; retrying in %s", queueName, err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, queueName, handle); err != nil {
			log.Printf("%s-consumer: consume loop ended: %v; reconnecting", queueName, err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection, queueName string, handle func([]byte) error) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("%s-consumer: set QoS failed: %v", queueName, err)
	}

	_, err = ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handle(d.Body); err != nil {
			log.Printf("%s-consumer: handle message failed: %v", queueName, err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}
