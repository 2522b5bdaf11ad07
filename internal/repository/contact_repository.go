package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Contact mirrors the 'contacts' table.  Birthday is nullable; contacts
// without one simply never show up in the upcoming-birthdays view.
// Phone numbers and email addresses live in child tables keyed by a
// per-contact tag ("home", "work") and are loaded alongside the contact.
type Contact struct {
	ID          uint64
	UserID      uint64
	FirstName   string
	LastName    string
	Description string
	Birthday    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Phones      []ContactPhone
	Emails      []ContactEmail
}

// ContactPhone mirrors the 'contact_phones' table.
type ContactPhone struct {
	ID        uint64
	ContactID uint64
	Phone     string
	Tag       string
}

// ContactEmail mirrors the 'contact_emails' table.
type ContactEmail struct {
	ID        uint64
	ContactID uint64
	Email     string
	Tag       string
}

type ContactRepo struct{ DB *sql.DB }

func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{DB: db} }

const contactColumns = `id, user_id, first_name, last_name, description, birthday, created_at, updated_at`

// Create inserts a contact owned by userID and returns its ID.
func (r *ContactRepo) Create(ctx context.Context, c Contact) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO contacts (user_id, first_name, last_name, description, birthday) VALUES (?,?,?,?,?)",
		c.UserID, c.FirstName, c.LastName, c.Description, c.Birthday)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches one contact with its phones and emails, scoped to its
// owner.
func (r *ContactRepo) GetByID(ctx context.Context, userID, id uint64) (Contact, error) {
	var c Contact
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE id=? AND user_id=? LIMIT 1",
		id, userID).Scan(&c.ID, &c.UserID, &c.FirstName, &c.LastName, &c.Description, &c.Birthday, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, err
	}
	if err := r.loadChildren(ctx, &c); err != nil {
		return Contact{}, err
	}
	return c, nil
}

// List returns a page of the owner's contacts without child rows.
func (r *ContactRepo) List(ctx context.Context, userID uint64, limit, offset int) ([]Contact, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE user_id=? ORDER BY id LIMIT ? OFFSET ?",
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContacts(rows)
}

// Update overwrites the mutable fields of a contact owned by userID.
func (r *ContactRepo) Update(ctx context.Context, c Contact) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE contacts SET first_name=?, last_name=?, description=?, birthday=? WHERE id=? AND user_id=?",
		c.FirstName, c.LastName, c.Description, c.Birthday, c.ID, c.UserID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a contact owned by userID.  Phone and email rows go
// with it through their contact_id foreign keys.
func (r *ContactRepo) Delete(ctx context.Context, userID, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM contacts WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddPhone attaches a phone number to one of the owner's contacts.  The
// tag identifies the number within the contact; a second phone under the
// same tag trips the unique key on (contact_id, tag) and returns
// ErrTagExists.
func (r *ContactRepo) AddPhone(ctx context.Context, userID, contactID uint64, phone, tag string) (uint64, error) {
	if _, err := r.ownedContactID(ctx, userID, contactID); err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO contact_phones (contact_id, phone, tag) VALUES (?,?,?)",
		contactID, phone, tag)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrTagExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// UpdatePhone replaces the number stored under tag for one of the
// owner's contacts.
func (r *ContactRepo) UpdatePhone(ctx context.Context, userID, contactID uint64, tag, phone string) error {
	if _, err := r.ownedContactID(ctx, userID, contactID); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE contact_phones SET phone=? WHERE contact_id=? AND tag=?",
		phone, contactID, tag)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddEmail attaches an email address to one of the owner's contacts.  A
// second email under the same tag returns ErrTagExists.
func (r *ContactRepo) AddEmail(ctx context.Context, userID, contactID uint64, email, tag string) (uint64, error) {
	if _, err := r.ownedContactID(ctx, userID, contactID); err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO contact_emails (contact_id, email, tag) VALUES (?,?,?)",
		contactID, email, tag)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrTagExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// UpdateEmail replaces the address stored under tag for one of the
// owner's contacts.
func (r *ContactRepo) UpdateEmail(ctx context.Context, userID, contactID uint64, tag, email string) error {
	if _, err := r.ownedContactID(ctx, userID, contactID); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE contact_emails SET email=? WHERE contact_id=? AND tag=?",
		email, contactID, tag)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpcomingBirthdays returns the owner's contacts whose birthday falls
// within the next `days` days starting from today.  The window check is
// done in Go over the owner's contacts rather than in SQL: reconstructing
// a same-year date inside the query breaks when the window crosses a year
// boundary, while BirthdayInWindow handles the wrap explicitly.
func (r *ContactRepo) UpcomingBirthdays(ctx context.Context, userID uint64, today time.Time, days int) ([]Contact, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE user_id=? AND birthday IS NOT NULL ORDER BY id",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	all, err := scanContacts(rows)
	if err != nil {
		return nil, err
	}
	upcoming := make([]Contact, 0, len(all))
	for _, c := range all {
		if c.Birthday != nil && BirthdayInWindow(*c.Birthday, today, days) {
			upcoming = append(upcoming, c)
		}
	}
	return upcoming, nil
}

// BirthdayInWindow reports whether the anniversary of birthday occurs
// within [today, today+days], comparing month/day only.  The window may
// cross a year boundary: a Dec 29 birthday checked on Dec 28 with a
// 7-day window matches, as does a Jan 2 birthday checked on Dec 30.
// Feb 29 birthdays are treated as Mar 1 in non-leap years.
func BirthdayInWindow(birthday, today time.Time, days int) bool {
	today = today.Truncate(24 * time.Hour)
	for i := 0; i <= days; i++ {
		d := today.AddDate(0, 0, i)
		anniversary := time.Date(d.Year(), birthday.Month(), birthday.Day(), 0, 0, 0, 0, d.Location())
		// time.Date normalizes Feb 29 to Mar 1 in non-leap years, which
		// keeps the comparison by month/day stable.
		if anniversary.Month() == d.Month() && anniversary.Day() == d.Day() {
			return true
		}
	}
	return false
}

// ownedContactID confirms the contact exists and belongs to userID.
func (r *ContactRepo) ownedContactID(ctx context.Context, userID, contactID uint64) (uint64, error) {
	var id uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM contacts WHERE id=? AND user_id=? LIMIT 1",
		contactID, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

// loadChildren populates the phone and email rows of c.
func (r *ContactRepo) loadChildren(ctx context.Context, c *Contact) error {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, contact_id, phone, tag FROM contact_phones WHERE contact_id=? ORDER BY id", c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p ContactPhone
		if err := rows.Scan(&p.ID, &p.ContactID, &p.Phone, &p.Tag); err != nil {
			return err
		}
		c.Phones = append(c.Phones, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.DB.QueryContext(ctx,
		"SELECT id, contact_id, email, tag FROM contact_emails WHERE contact_id=? ORDER BY id", c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var e ContactEmail
		if err := rows.Scan(&e.ID, &e.ContactID, &e.Email, &e.Tag); err != nil {
			return err
		}
		c.Emails = append(c.Emails, e)
	}
	return rows.Err()
}

func scanContacts(rows *sql.Rows) ([]Contact, error) {
	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.UserID, &c.FirstName, &c.LastName, &c.Description, &c.Birthday, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
