package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"keepnotes/backend/middleware"
	"keepnotes/backend/models"
)

// NoteStore is the owner-scoped slice of the note repository. Every lookup
// and mutation filters on id+owner in one query, so callers cannot tell a
// foreign note from a missing one.
type NoteStore interface {
	InsertNote(ctx context.Context, note *models.Note) (primitive.ObjectID, error)
	NotesByOwner(ctx context.Context, email string) ([]models.Note, error)
	NoteByIDAndOwner(ctx context.Context, id primitive.ObjectID, email string) (*models.Note, error)
	UpdateNote(ctx context.Context, id primitive.ObjectID, email, subject, body string) (*models.Note, error)
	DeleteNoteByOwner(ctx context.Context, id primitive.ObjectID, email string) (*models.Note, error)
	PullNoteImage(ctx context.Context, id primitive.ObjectID, email, imageURL string) (bool, error)
}

// MediaStore is the object-storage adapter for note images.
type MediaStore interface {
	Upload(ctx context.Context, ownerEmail, originalFilename string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, mediaURL string) error
}

type NotesHandler struct {
	Store    NoteStore
	Media    MediaStore
	MaxBytes int64
}

func (h *NotesHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	notes, err := h.Store.NotesByOwner(r.Context(), u.Email)
	if err != nil {
		http.Error(w, `{"error":"failed to list notes"}`, http.StatusInternalServerError)
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	respondJSON(w, http.StatusOK, notes)
}

func (h *NotesHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"invalid note id"}`, http.StatusBadRequest)
		return
	}
	note, err := h.Store.NoteByIDAndOwner(r.Context(), id, u.Email)
	if err != nil {
		http.Error(w, `{"error":"failed to load note"}`, http.StatusInternalServerError)
		return
	}
	if note == nil {
		http.Error(w, `{"error":"note not found"}`, http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

// Create accepts a multipart form: subject and body fields plus up to
// MaxNoteImages files under "images". Files are uploaded one at a time so the
// image list keeps submission order and a partial failure knows exactly which
// uploads to roll back. No note is persisted unless every upload succeeded.
func (h *NotesHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if h.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		http.Error(w, `{"error":"failed to parse multipart form"}`, http.StatusBadRequest)
		return
	}
	subject := strings.TrimSpace(r.FormValue("subject"))
	body := strings.TrimSpace(r.FormValue("body"))
	if subject == "" || body == "" {
		http.Error(w, `{"error":"subject and body required"}`, http.StatusBadRequest)
		return
	}

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["images"]
	}
	if len(files) > models.MaxNoteImages {
		http.Error(w, `{"error":"too many images (max 5)"}`, http.StatusBadRequest)
		return
	}
	if len(files) > 0 && h.Media == nil {
		http.Error(w, `{"error":"uploads not configured (missing S3)"}`, http.StatusServiceUnavailable)
		return
	}

	var uploaded []string
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			h.rollbackUploads(r.Context(), uploaded)
			http.Error(w, `{"error":"failed to read image"}`, http.StatusBadRequest)
			return
		}
		contentType := fh.Header.Get("Content-Type")
		url, err := h.Media.Upload(r.Context(), u.Email, fh.Filename, f, contentType)
		f.Close()
		if err != nil {
			log.Printf("create note: upload %s: %v", fh.Filename, err)
			h.rollbackUploads(r.Context(), uploaded)
			http.Error(w, `{"error":"failed to upload image"}`, http.StatusInternalServerError)
			return
		}
		uploaded = append(uploaded, url)
	}
	if uploaded == nil {
		uploaded = []string{}
	}

	now := time.Now()
	note := &models.Note{
		Subject:   subject,
		Body:      body,
		UserEmail: u.Email,
		Images:    uploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	id, err := h.Store.InsertNote(r.Context(), note)
	if err != nil {
		h.rollbackUploads(r.Context(), uploaded)
		http.Error(w, `{"error":"failed to save note"}`, http.StatusInternalServerError)
		return
	}
	note.ID = id
	respondJSON(w, http.StatusCreated, note)
}

// rollbackUploads best-effort deletes blobs uploaded earlier in a failed
// create. Failures are logged and never mask the original error.
func (h *NotesHandler) rollbackUploads(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := h.Media.Delete(ctx, url); err != nil {
			log.Printf("create note: rollback %s: %v", url, err)
		}
	}
}

type UpdateNoteRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Update replaces subject and body only. Images are not mutable here; the
// owner email never changes.
func (h *NotesHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"invalid note id"}`, http.StatusBadRequest)
		return
	}
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	subject := strings.TrimSpace(req.Subject)
	body := strings.TrimSpace(req.Body)
	if subject == "" || body == "" {
		http.Error(w, `{"error":"subject and body required"}`, http.StatusBadRequest)
		return
	}
	note, err := h.Store.UpdateNote(r.Context(), id, u.Email, subject, body)
	if err != nil {
		http.Error(w, `{"error":"failed to update note"}`, http.StatusInternalServerError)
		return
	}
	if note == nil {
		http.Error(w, `{"error":"note not found"}`, http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

// Delete removes the note and its image blobs. Blob deletions are attempted
// independently and best-effort: the user is abandoning the note, so a flaky
// storage backend must not block the delete. The record goes regardless.
func (h *NotesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"invalid note id"}`, http.StatusBadRequest)
		return
	}
	note, err := h.Store.NoteByIDAndOwner(r.Context(), id, u.Email)
	if err != nil {
		http.Error(w, `{"error":"failed to load note"}`, http.StatusInternalServerError)
		return
	}
	if note == nil {
		http.Error(w, `{"error":"note not found"}`, http.StatusNotFound)
		return
	}
	if h.Media != nil {
		for _, url := range note.Images {
			if err := h.Media.Delete(r.Context(), url); err != nil {
				log.Printf("delete note %s: image %s: %v", id.Hex(), url, err)
			}
		}
	}
	if _, err := h.Store.DeleteNoteByOwner(r.Context(), id, u.Email); err != nil {
		http.Error(w, `{"error":"failed to delete note"}`, http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "note deleted"})
}

type RemoveImageRequest struct {
	ImageURL string `json:"imageUrl"`
}

// RemoveImage deletes one blob and pulls its URL off the note. Unlike whole-
// note delete this is strict: if the blob delete fails, the media list stays
// unchanged and the caller retries.
func (h *NotesHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"invalid note id"}`, http.StatusBadRequest)
		return
	}
	var req RemoveImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.ImageURL == "" {
		http.Error(w, `{"error":"imageUrl required"}`, http.StatusBadRequest)
		return
	}
	note, err := h.Store.NoteByIDAndOwner(r.Context(), id, u.Email)
	if err != nil {
		http.Error(w, `{"error":"failed to load note"}`, http.StatusInternalServerError)
		return
	}
	if note == nil {
		http.Error(w, `{"error":"note not found"}`, http.StatusNotFound)
		return
	}
	if !containsString(note.Images, req.ImageURL) {
		http.Error(w, `{"error":"image not found on note"}`, http.StatusBadRequest)
		return
	}
	if h.Media == nil {
		http.Error(w, `{"error":"uploads not configured (missing S3)"}`, http.StatusServiceUnavailable)
		return
	}
	if err := h.Media.Delete(r.Context(), req.ImageURL); err != nil {
		log.Printf("remove image: delete %s: %v", req.ImageURL, err)
		http.Error(w, `{"error":"failed to delete image"}`, http.StatusInternalServerError)
		return
	}
	if _, err := h.Store.PullNoteImage(r.Context(), id, u.Email, req.ImageURL); err != nil {
		http.Error(w, `{"error":"failed to update note"}`, http.StatusInternalServerError)
		return
	}
	note, err = h.Store.NoteByIDAndOwner(r.Context(), id, u.Email)
	if err != nil || note == nil {
		http.Error(w, `{"error":"failed to load note"}`, http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, note)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
