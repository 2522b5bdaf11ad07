package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/theregram/backend/internal/middleware"
	"github.com/theregram/backend/internal/repository"
)

// ContactStore is the slice of the contact repository the handler needs.
// *repository.ContactRepo satisfies it.
type ContactStore interface {
	Create(ctx context.Context, c repository.Contact) (uint64, error)
	GetByID(ctx context.Context, userID, id uint64) (repository.Contact, error)
	List(ctx context.Context, userID uint64, limit, offset int) ([]repository.Contact, error)
	Update(ctx context.Context, c repository.Contact) error
	Delete(ctx context.Context, userID, id uint64) error
	AddPhone(ctx context.Context, userID, contactID uint64, phone, tag string) (uint64, error)
	UpdatePhone(ctx context.Context, userID, contactID uint64, tag, phone string) error
	AddEmail(ctx context.Context, userID, contactID uint64, email, tag string) (uint64, error)
	UpdateEmail(ctx context.Context, userID, contactID uint64, tag, email string) error
	UpcomingBirthdays(ctx context.Context, userID uint64, today time.Time, days int) ([]repository.Contact, error)
}

// ContactHandler serves the caller-scoped contacts book, including the
// nested phone/email rows and the upcoming-birthdays view.
type ContactHandler struct {
	Contacts ContactStore
}

func NewContactHandler(contacts ContactStore) *ContactHandler {
	return &ContactHandler{Contacts: contacts}
}

type contactReq struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Description string `json:"description"`
	Birthday    string `json:"birthday"` // YYYY-MM-DD, optional
}

type phoneReq struct {
	Phone string `json:"phone"`
	Tag   string `json:"tag"`
}

type emailReq struct {
	Email string `json:"email"`
	Tag   string `json:"tag"`
}

type taggedResp struct {
	Value string `json:"value"`
	Tag   string `json:"tag"`
}

type contactResp struct {
	ID          uint64       `json:"id"`
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	Description string       `json:"description,omitempty"`
	Birthday    *string      `json:"birthday,omitempty"`
	Phones      []taggedResp `json:"phones"`
	Emails      []taggedResp `json:"emails"`
}

func toContactResp(c repository.Contact) contactResp {
	resp := contactResp{
		ID: c.ID, FirstName: c.FirstName, LastName: c.LastName,
		Description: c.Description,
		Phones:      make([]taggedResp, 0, len(c.Phones)),
		Emails:      make([]taggedResp, 0, len(c.Emails)),
	}
	if c.Birthday != nil {
		b := c.Birthday.Format("2006-01-02")
		resp.Birthday = &b
	}
	for _, p := range c.Phones {
		resp.Phones = append(resp.Phones, taggedResp{Value: p.Phone, Tag: p.Tag})
	}
	for _, e := range c.Emails {
		resp.Emails = append(resp.Emails, taggedResp{Value: e.Email, Tag: e.Tag})
	}
	return resp
}

func (req contactReq) toContact(userID uint64) (repository.Contact, error) {
	c := repository.Contact{
		UserID:      userID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Description: req.Description,
	}
	if req.Birthday != "" {
		b, err := time.Parse("2006-01-02", req.Birthday)
		if err != nil {
			return repository.Contact{}, err
		}
		c.Birthday = &b
	}
	return c, nil
}

// Create adds a contact to the caller's book.
func (h *ContactHandler) Create(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req contactReq
	if err := c.Bind(&req); err != nil || req.FirstName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "first_name required"})
	}
	contact, err := req.toContact(ident.ID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "birthday must be YYYY-MM-DD"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Contacts.Create(ctx, contact)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create contact failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// List returns a page of the caller's contacts.
func (h *ContactHandler) List(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit := queryInt(c, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	contacts, err := h.Contacts.List(ctx, ident.ID, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]contactResp, 0, len(contacts))
	for _, ct := range contacts {
		out = append(out, toContactResp(ct))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one of the caller's contacts with its phones and emails.
func (h *ContactHandler) Get(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid contact id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	contact, err := h.Contacts.GetByID(ctx, ident.ID, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "contact not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toContactResp(contact))
}

// Update overwrites one of the caller's contacts.
func (h *ContactHandler) Update(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid contact id"})
	}
	var req contactReq
	if err := c.Bind(&req); err != nil || req.FirstName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "first_name required"})
	}
	contact, err := req.toContact(ident.ID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "birthday must be YYYY-MM-DD"})
	}
	contact.ID = id

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Contacts.Update(ctx, contact); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "contact not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update contact failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes one of the caller's contacts.
func (h *ContactHandler) Delete(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid contact id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Contacts.Delete(ctx, ident.ID, id); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "contact not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete contact failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// AddPhone attaches a tagged phone number to one of the caller's
// contacts.
func (h *ContactHandler) AddPhone(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid contact id"})
	}
	var req phoneReq
	if err := c.Bind(&req); err != nil || req.Phone == "" || req.Tag == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone and tag required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	phoneID, err := h.Contacts.AddPhone(ctx, ident.ID, id, req.Phone, req.Tag)
	switch err {
	case nil:
		return c.JSON(http.StatusCreated, echo.Map{"id": phoneID, "phone": req.Phone, "tag": req.Tag})
	case repository.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "contact not found"})
	case repository.ErrTagExists:
		return c.JSON(http.StatusConflict, echo.Map{"error": "this tag is already used for this contact"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "add phone failed"})
	}
}

// UpdatePhone replaces the number stored under the tag in the path.
func (h *ContactHandler) UpdatePhone(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid contact id"})
	}
	tag := strings.TrimSpace(c.Param("tag"))
	if tag == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tag required"})
	}
	var req phoneReq
	if err := c.Bind(&req); err != nil || req.Phone == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Contacts.UpdatePhone(ctx, ident.ID, id, tag, req.Phone); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "phone not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update phone failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"phone": req.Phone, "tag": tag})
}

// AddEmail attaches a tagged email address to one of the caller's
// contacts.
func (h *ContactHandler) AddEmail(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid contact id"})
	}
	var req emailReq
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Tag == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and tag required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	emailID, err := h.Contacts.AddEmail(ctx, ident.ID, id, req.Email, req.Tag)
	switch err {
	case nil:
		return c.JSON(http.StatusCreated, echo.Map{"id": emailID, "email": req.Email, "tag": req.Tag})
	case repository.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "contact not found"})
	case repository.ErrTagExists:
		return c.JSON(http.StatusConflict, echo.Map{"error": "this tag is already used for this contact"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "add email failed"})
	}
}

// UpdateEmail replaces the address stored under the tag in the path.
func (h *ContactHandler) UpdateEmail(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid contact id"})
	}
	tag := strings.TrimSpace(c.Param("tag"))
	if tag == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tag required"})
	}
	var req emailReq
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Contacts.UpdateEmail(ctx, ident.ID, id, tag, req.Email); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "email not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update email failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"email": req.Email, "tag": tag})
}

// UpcomingBirthdays lists the caller's contacts with a birthday in the
// next seven days, including windows that cross a year boundary.
func (h *ContactHandler) UpcomingBirthdays(c echo.Context) error {
	ident, ok := middleware.CurrentIdentity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	contacts, err := h.Contacts.UpcomingBirthdays(ctx, ident.ID, time.Now().UTC(), 7)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]contactResp, 0, len(contacts))
	for _, ct := range contacts {
		out = append(out, toContactResp(ct))
	}
	return c.JSON(http.StatusOK, out)
}

// queryInt parses an integer query parameter with a default.
func queryInt(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
