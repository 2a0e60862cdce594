package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"keepnotes/backend/models"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// AdminNoteStore operates over all notes with the ownership predicate removed.
type AdminNoteStore interface {
	AllNotes(ctx context.Context, page, limit int) ([]models.Note, int64, error)
	NoteByID(ctx context.Context, id primitive.ObjectID) (*models.Note, error)
	UpdateAnyNote(ctx context.Context, id primitive.ObjectID, subject, body *string) (*models.Note, error)
	DeleteAnyNote(ctx context.Context, id primitive.ObjectID) (bool, error)
	DeleteNotesByOwner(ctx context.Context, email string) (int64, error)
}

// UserStore is the slice of the store the admin account operations need.
type UserStore interface {
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetUserRole(ctx context.Context, id primitive.ObjectID, role string) (*models.User, error)
	DeleteUser(ctx context.Context, id primitive.ObjectID) error
}

type AdminHandler struct {
	Notes AdminNoteStore
	Users UserStore
}

type NotesPageResponse struct {
	Notes []models.Note `json:"notes"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// ListNotes returns one page of all notes, newest first. page >= 1, limit
// clamped to [1,100].
func (h *AdminHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	limit := defaultPageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	notes, total, err := h.Notes.AllNotes(r.Context(), page, limit)
	if err != nil {
		http.Error(w, `{"error":"failed to list notes"}`, http.StatusInternalServerError)
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	respondJSON(w, http.StatusOK, NotesPageResponse{Notes: notes, Total: total, Page: page, Limit: limit})
}

// GetNote fetches any note regardless of owner.
func (h *AdminHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"invalid note id"}`, http.StatusBadRequest)
		return
	}
	note, err := h.Notes.NoteByID(r.Context(), id)
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

// PatchNoteRequest is the explicit allow-list of admin-patchable fields.
// Anything else in the payload (ownerEmail, images, timestamps) is ignored at
// the boundary.
type PatchNoteRequest struct {
	Subject *string `json:"subject"`
	Body    *string `json:"body"`
}

func (h *AdminHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"invalid note id"}`, http.StatusBadRequest)
		return
	}
	var req PatchNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Subject != nil {
		s := strings.TrimSpace(*req.Subject)
		if s == "" {
			http.Error(w, `{"error":"subject cannot be empty"}`, http.StatusBadRequest)
			return
		}
		req.Subject = &s
	}
	if req.Body != nil {
		b := strings.TrimSpace(*req.Body)
		if b == "" {
			http.Error(w, `{"error":"body cannot be empty"}`, http.StatusBadRequest)
			return
		}
		req.Body = &b
	}
	if req.Subject == nil && req.Body == nil {
		http.Error(w, `{"error":"no updatable fields"}`, http.StatusBadRequest)
		return
	}
	note, err := h.Notes.UpdateAnyNote(r.Context(), id, req.Subject, req.Body)
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

// DeleteNote removes the repository record only; admin delete does not clean
// up media blobs.
func (h *AdminHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"invalid note id"}`, http.StatusBadRequest)
		return
	}
	found, err := h.Notes.DeleteAnyNote(r.Context(), id)
	if err != nil {
		http.Error(w, `{"error":"failed to delete note"}`, http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, `{"error":"note not found"}`, http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "note deleted"})
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(r.Context())
	if err != nil {
		http.Error(w, `{"error":"failed to list users"}`, http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	respondJSON(w, http.StatusOK, users)
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}
	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	role := strings.TrimSpace(strings.ToLower(req.Role))
	if !models.RoleValid(role) {
		http.Error(w, `{"error":"invalid role"}`, http.StatusBadRequest)
		return
	}
	user, err := h.Users.SetUserRole(r.Context(), id, role)
	if err != nil {
		http.Error(w, `{"error":"failed to update role"}`, http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// DeleteUser removes the account and cascade-deletes the records of every
// note it owned. Notes are keyed by owner email, so the cascade uses the
// account's email. Blobs are not cleaned up here.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}
	user, err := h.Users.UserByID(r.Context(), id)
	if err != nil {
		http.Error(w, `{"error":"failed to delete user"}`, http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
		return
	}
	if err := h.Users.DeleteUser(r.Context(), id); err != nil {
		http.Error(w, `{"error":"failed to delete user"}`, http.StatusInternalServerError)
		return
	}
	deleted, err := h.Notes.DeleteNotesByOwner(r.Context(), user.Email)
	if err != nil {
		log.Printf("delete user %s: cascade notes: %v", id.Hex(), err)
	} else if deleted > 0 {
		log.Printf("delete user %s: removed %d notes", id.Hex(), deleted)
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
