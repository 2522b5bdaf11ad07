// Package queue defines message payloads exchanged over the message broker
// and the background consumers that process them.
package queue

// RatingRecalcEvent asks the rating worker to recompute the denormalized
// average for one post.  The payload deliberately carries only the post id:
// the worker always reads the full current rating set, so replaying or
// duplicating this message is harmless.
type RatingRecalcEvent struct {
	PostID uint64 `json:"post_id"`
}

// EmailJobEvent describes one transactional email to deliver.  The core
// only enqueues these; delivery is the consumer's job.  Params carries the
// template variables (verification link token, tracking token, username).
type EmailJobEvent struct {
	Recipient string            `json:"recipient"`
	LetterID  string            `json:"letter_id"`
	Subject   string            `json:"subject"`
	Template  string            `json:"template"`
	Params    map[string]string `json:"params"`
}
