package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theregram/backend/internal/repository"
)

type fakeContactStore struct {
	contacts map[uint64]repository.Contact
	nextID   uint64
}

func newFakeContactStore() *fakeContactStore {
	return &fakeContactStore{contacts: map[uint64]repository.Contact{}, nextID: 1}
}

func (f *fakeContactStore) add(userID uint64, first string) uint64 {
	id := f.nextID
	f.nextID++
	f.contacts[id] = repository.Contact{ID: id, UserID: userID, FirstName: first}
	return id
}

func (f *fakeContactStore) owned(userID, id uint64) (repository.Contact, bool) {
	c, ok := f.contacts[id]
	if !ok || c.UserID != userID {
		return repository.Contact{}, false
	}
	return c, true
}

func (f *fakeContactStore) Create(_ context.Context, c repository.Contact) (uint64, error) {
	c.ID = f.nextID
	f.nextID++
	f.contacts[c.ID] = c
	return c.ID, nil
}

func (f *fakeContactStore) GetByID(_ context.Context, userID, id uint64) (repository.Contact, error) {
	c, ok := f.owned(userID, id)
	if !ok {
		return repository.Contact{}, repository.ErrNotFound
	}
	return c, nil
}

func (f *fakeContactStore) List(_ context.Context, userID uint64, limit, offset int) ([]repository.Contact, error) {
	var out []repository.Contact
	for id := uint64(1); id < f.nextID; id++ {
		if c, ok := f.contacts[id]; ok && c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeContactStore) Update(_ context.Context, c repository.Contact) error {
	if _, ok := f.owned(c.UserID, c.ID); !ok {
		return repository.ErrNotFound
	}
	f.contacts[c.ID] = c
	return nil
}

func (f *fakeContactStore) Delete(_ context.Context, userID, id uint64) error {
	if _, ok := f.owned(userID, id); !ok {
		return repository.ErrNotFound
	}
	delete(f.contacts, id)
	return nil
}

func (f *fakeContactStore) AddPhone(_ context.Context, userID, contactID uint64, phone, tag string) (uint64, error) {
	c, ok := f.owned(userID, contactID)
	if !ok {
		return 0, repository.ErrNotFound
	}
	for _, p := range c.Phones {
		if p.Tag == tag {
			return 0, repository.ErrTagExists
		}
	}
	c.Phones = append(c.Phones, repository.ContactPhone{ID: uint64(len(c.Phones) + 1), ContactID: contactID, Phone: phone, Tag: tag})
	f.contacts[contactID] = c
	return c.Phones[len(c.Phones)-1].ID, nil
}

func (f *fakeContactStore) UpdatePhone(_ context.Context, userID, contactID uint64, tag, phone string) error {
	c, ok := f.owned(userID, contactID)
	if !ok {
		return repository.ErrNotFound
	}
	for i, p := range c.Phones {
		if p.Tag == tag {
			c.Phones[i].Phone = phone
			f.contacts[contactID] = c
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeContactStore) AddEmail(_ context.Context, userID, contactID uint64, email, tag string) (uint64, error) {
	c, ok := f.owned(userID, contactID)
	if !ok {
		return 0, repository.ErrNotFound
	}
	for _, e := range c.Emails {
		if e.Tag == tag {
			return 0, repository.ErrTagExists
		}
	}
	c.Emails = append(c.Emails, repository.ContactEmail{ID: uint64(len(c.Emails) + 1), ContactID: contactID, Email: email, Tag: tag})
	f.contacts[contactID] = c
	return c.Emails[len(c.Emails)-1].ID, nil
}

func (f *fakeContactStore) UpdateEmail(_ context.Context, userID, contactID uint64, tag, email string) error {
	c, ok := f.owned(userID, contactID)
	if !ok {
		return repository.ErrNotFound
	}
	for i, e := range c.Emails {
		if e.Tag == tag {
			c.Emails[i].Email = email
			f.contacts[contactID] = c
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeContactStore) UpcomingBirthdays(_ context.Context, userID uint64, today time.Time, days int) ([]repository.Contact, error) {
	var out []repository.Contact
	for id := uint64(1); id < f.nextID; id++ {
		c, ok := f.contacts[id]
		if ok && c.UserID == userID && c.Birthday != nil && repository.BirthdayInWindow(*c.Birthday, today, days) {
			out = append(out, c)
		}
	}
	return out, nil
}

func testContactHandler() (*ContactHandler, *fakeContactStore) {
	store := newFakeContactStore()
	return NewContactHandler(store), store
}

func TestAddPhoneRejectsDuplicateTag(t *testing.T) {
	h, store := testContactHandler()
	id := store.add(7, "Alice")
	e := echo.New()

	c, rec := apiCtx(e, http.MethodPost, `{"phone":"+380501112233","tag":"home"}`, 7,
		[]string{"id"}, []string{"1"})
	require.NoError(t, h.AddPhone(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	c, rec = apiCtx(e, http.MethodPost, `{"phone":"+380509998877","tag":"home"}`, 7,
		[]string{"id"}, []string{"1"})
	require.NoError(t, h.AddPhone(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Len(t, store.contacts[id].Phones, 1)
	assert.Equal(t, "+380501112233", store.contacts[id].Phones[0].Phone)
}

func TestAddPhoneToForeignContact(t *testing.T) {
	h, store := testContactHandler()
	store.add(99, "NotYours")
	e := echo.New()

	c, rec := apiCtx(e, http.MethodPost, `{"phone":"+1234567","tag":"home"}`, 7,
		[]string{"id"}, []string{"1"})
	require.NoError(t, h.AddPhone(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, store.contacts[1].Phones)
}

func TestUpdatePhoneByTag(t *testing.T) {
	h, store := testContactHandler()
	id := store.add(7, "Alice")
	_, err := store.AddPhone(context.Background(), 7, id, "+1111", "work")
	require.NoError(t, err)
	e := echo.New()

	c, rec := apiCtx(e, http.MethodPut, `{"phone":"+2222"}`, 7,
		[]string{"id", "tag"}, []string{"1", "work"})
	require.NoError(t, h.UpdatePhone(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "+2222", store.contacts[id].Phones[0].Phone)

	// An unknown tag is a 404.
	c, rec = apiCtx(e, http.MethodPut, `{"phone":"+3333"}`, 7,
		[]string{"id", "tag"}, []string{"1", "fax"})
	require.NoError(t, h.UpdatePhone(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddEmailRejectsDuplicateTag(t *testing.T) {
	h, store := testContactHandler()
	id := store.add(7, "Alice")
	e := echo.New()

	c, rec := apiCtx(e, http.MethodPost, `{"email":"a@home.example","tag":"home"}`, 7,
		[]string{"id"}, []string{"1"})
	require.NoError(t, h.AddEmail(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	c, rec = apiCtx(e, http.MethodPost, `{"email":"b@home.example","tag":"home"}`, 7,
		[]string{"id"}, []string{"1"})
	require.NoError(t, h.AddEmail(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.Len(t, store.contacts[id].Emails, 1)
}

func TestGetContactIncludesNestedRows(t *testing.T) {
	h, store := testContactHandler()
	id := store.add(7, "Alice")
	_, err := store.AddPhone(context.Background(), 7, id, "+1111", "home")
	require.NoError(t, err)
	_, err = store.AddEmail(context.Background(), 7, id, "alice@home.example", "home")
	require.NoError(t, err)
	e := echo.New()

	c, rec := apiCtx(e, http.MethodGet, "", 7, []string{"id"}, []string{"1"})
	require.NoError(t, h.Get(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp contactResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Phones, 1)
	require.Len(t, resp.Emails, 1)
	assert.Equal(t, taggedResp{Value: "+1111", Tag: "home"}, resp.Phones[0])
	assert.Equal(t, taggedResp{Value: "alice@home.example", Tag: "home"}, resp.Emails[0])
}
