package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"keepnotes/backend/middleware"
	"keepnotes/backend/models"
)

// fakeNoteStore is an in-memory NoteStore + AdminNoteStore.
type fakeNoteStore struct {
	notes     map[primitive.ObjectID]*models.Note
	insertErr error
	inserts   int
}

func newFakeNoteStore() *fakeNoteStore {
	return &fakeNoteStore{notes: map[primitive.ObjectID]*models.Note{}}
}

func (s *fakeNoteStore) add(note models.Note) primitive.ObjectID {
	id := primitive.NewObjectID()
	note.ID = id
	s.notes[id] = &note
	return id
}

func (s *fakeNoteStore) InsertNote(_ context.Context, note *models.Note) (primitive.ObjectID, error) {
	if s.insertErr != nil {
		return primitive.NilObjectID, s.insertErr
	}
	s.inserts++
	return s.add(*note), nil
}

func (s *fakeNoteStore) sortedDesc(filter func(*models.Note) bool) []models.Note {
	var out []models.Note
	for _, n := range s.notes {
		if filter == nil || filter(n) {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *fakeNoteStore) NotesByOwner(_ context.Context, email string) ([]models.Note, error) {
	return s.sortedDesc(func(n *models.Note) bool { return n.UserEmail == email }), nil
}

func (s *fakeNoteStore) NoteByIDAndOwner(_ context.Context, id primitive.ObjectID, email string) (*models.Note, error) {
	n, ok := s.notes[id]
	if !ok || n.UserEmail != email {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (s *fakeNoteStore) UpdateNote(_ context.Context, id primitive.ObjectID, email, subject, body string) (*models.Note, error) {
	n, ok := s.notes[id]
	if !ok || n.UserEmail != email {
		return nil, nil
	}
	n.Subject, n.Body = subject, body
	cp := *n
	return &cp, nil
}

func (s *fakeNoteStore) DeleteNoteByOwner(_ context.Context, id primitive.ObjectID, email string) (*models.Note, error) {
	n, ok := s.notes[id]
	if !ok || n.UserEmail != email {
		return nil, nil
	}
	delete(s.notes, id)
	cp := *n
	return &cp, nil
}

func (s *fakeNoteStore) PullNoteImage(_ context.Context, id primitive.ObjectID, email, imageURL string) (bool, error) {
	n, ok := s.notes[id]
	if !ok || n.UserEmail != email {
		return false, nil
	}
	var kept []string
	for _, u := range n.Images {
		if u != imageURL {
			kept = append(kept, u)
		}
	}
	n.Images = kept
	return true, nil
}

func (s *fakeNoteStore) NoteByID(_ context.Context, id primitive.ObjectID) (*models.Note, error) {
	n, ok := s.notes[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (s *fakeNoteStore) AllNotes(_ context.Context, page, limit int) ([]models.Note, int64, error) {
	all := s.sortedDesc(nil)
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *fakeNoteStore) UpdateAnyNote(_ context.Context, id primitive.ObjectID, subject, body *string) (*models.Note, error) {
	n, ok := s.notes[id]
	if !ok {
		return nil, nil
	}
	if subject != nil {
		n.Subject = *subject
	}
	if body != nil {
		n.Body = *body
	}
	cp := *n
	return &cp, nil
}

func (s *fakeNoteStore) DeleteAnyNote(_ context.Context, id primitive.ObjectID) (bool, error) {
	if _, ok := s.notes[id]; !ok {
		return false, nil
	}
	delete(s.notes, id)
	return true, nil
}

func (s *fakeNoteStore) DeleteNotesByOwner(_ context.Context, email string) (int64, error) {
	var deleted int64
	for id, n := range s.notes {
		if n.UserEmail == email {
			delete(s.notes, id)
			deleted++
		}
	}
	return deleted, nil
}

// fakeMediaStore records uploads and delete attempts. failUploadAt is the
// 1-based upload call that fails; deleteErr fails deletes of specific URLs.
type fakeMediaStore struct {
	uploadCalls  int
	failUploadAt int
	uploads      []string
	attempted    []string
	deleted      []string
	deleteErr    map[string]error
}

func (m *fakeMediaStore) Upload(_ context.Context, ownerEmail, originalFilename string, _ io.Reader, _ string) (string, error) {
	m.uploadCalls++
	if m.failUploadAt != 0 && m.uploadCalls == m.failUploadAt {
		return "", errors.New("storage write failed")
	}
	url := "https://media.example.com/notes/" + ownerEmail + "/" + originalFilename
	m.uploads = append(m.uploads, url)
	return url, nil
}

func (m *fakeMediaStore) Delete(_ context.Context, mediaURL string) error {
	m.attempted = append(m.attempted, mediaURL)
	if err := m.deleteErr[mediaURL]; err != nil {
		return err
	}
	m.deleted = append(m.deleted, mediaURL)
	return nil
}

// remaining returns the uploaded blobs not yet deleted.
func (m *fakeMediaStore) remaining() []string {
	var out []string
	for _, u := range m.uploads {
		gone := false
		for _, d := range m.deleted {
			if d == u {
				gone = true
				break
			}
		}
		if !gone {
			out = append(out, u)
		}
	}
	return out
}

// fakeUserStore is an in-memory UserStore + UserDirectory.
type fakeUserStore struct {
	users map[primitive.ObjectID]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[primitive.ObjectID]*models.User{}}
}

func (s *fakeUserStore) add(u models.User) primitive.ObjectID {
	id := primitive.NewObjectID()
	u.ID = id
	s.users[id] = &u
	return id
}

func (s *fakeUserStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) CreateUser(_ context.Context, user *models.User) (primitive.ObjectID, error) {
	return s.add(*user), nil
}

func (s *fakeUserStore) ListUsers(_ context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeUserStore) SetUserRole(_ context.Context, id primitive.ObjectID, role string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	u.Role = role
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) DeleteUser(_ context.Context, id primitive.ObjectID) error {
	delete(s.users, id)
	return nil
}

func asUser(email string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithUser(r.Context(), middleware.AuthedUser{
				ID:    primitive.NewObjectID(),
				Email: email,
				Role:  models.RoleUser,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newNotesRouter(h *NotesHandler, email string) http.Handler {
	r := chi.NewRouter()
	r.Use(asUser(email))
	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Delete("/{id}/image", h.RemoveImage)
	})
	return r
}

func newAdminRouter(h *AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/admin", func(r chi.Router) {
		r.Get("/notes", h.ListNotes)
		r.Get("/notes/{id}", h.GetNote)
		r.Patch("/notes/{id}", h.UpdateNote)
		r.Delete("/notes/{id}", h.DeleteNote)
		r.Get("/users", h.ListUsers)
		r.Patch("/users/{id}/role", h.UpdateUserRole)
		r.Delete("/users/{id}", h.DeleteUser)
	})
	return r
}

// multipartNote builds a note create form with the given image filenames.
func multipartNote(t *testing.T, subject, body string, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("subject", subject))
	require.NoError(t, w.WriteField("body", body))
	for _, name := range filenames {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="images"; filename="`+name+`"`)
		hdr.Set("Content-Type", "image/png")
		part, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write([]byte("png bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}
