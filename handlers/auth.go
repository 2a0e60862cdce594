package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"keepnotes/backend/middleware"
	"keepnotes/backend/models"
	"keepnotes/backend/service"
)

const sessionTTL = 7 * 24 * time.Hour

// IdentityVerifier validates an external identity credential (a Google ID
// token) and yields the verified subject.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*service.Identity, error)
}

// UserDirectory is the slice of the store the login bootstrap needs.
type UserDirectory interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (primitive.ObjectID, error)
	SetUserRole(ctx context.Context, id primitive.ObjectID, role string) (*models.User, error)
}

type AuthHandler struct {
	Users     UserDirectory
	Verifier  IdentityVerifier
	JWTSecret string
	// AdminEmails is the allow-list: matching accounts are created as admin and
	// existing accounts are promoted on login. Membership never demotes.
	AdminEmails []string
}

type LoginRequest struct {
	Token string `json:"token"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Token == "" {
		http.Error(w, `{"error":"token required"}`, http.StatusBadRequest)
		return
	}

	ident, err := h.Verifier.Verify(r.Context(), req.Token)
	if err != nil {
		log.Printf("login: verify: %v", err)
		http.Error(w, `{"error":"authentication failed"}`, http.StatusUnauthorized)
		return
	}
	email := strings.ToLower(strings.TrimSpace(ident.Email))
	if !models.EmailValid(email) {
		http.Error(w, `{"error":"authentication failed"}`, http.StatusUnauthorized)
		return
	}
	isDefaultAdmin := h.allowListed(email)

	user, err := h.Users.UserByEmail(r.Context(), email)
	if err != nil {
		http.Error(w, `{"error":"login failed"}`, http.StatusInternalServerError)
		return
	}
	switch {
	case user == nil:
		role := models.RoleUser
		if isDefaultAdmin {
			role = models.RoleAdmin
		}
		now := time.Now()
		user = &models.User{
			GoogleID:  ident.Subject,
			Name:      ident.Name,
			Email:     email,
			Picture:   ident.Picture,
			Role:      role,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		id, err := h.Users.CreateUser(r.Context(), user)
		if err != nil {
			http.Error(w, `{"error":"login failed"}`, http.StatusInternalServerError)
			return
		}
		user.ID = id
	case isDefaultAdmin && user.Role != models.RoleAdmin:
		user, err = h.Users.SetUserRole(r.Context(), user.ID, models.RoleAdmin)
		if err != nil || user == nil {
			http.Error(w, `{"error":"login failed"}`, http.StatusInternalServerError)
			return
		}
	}

	token, err := h.createToken(user)
	if err != nil {
		http.Error(w, `{"error":"could not create token"}`, http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

func (h *AuthHandler) allowListed(email string) bool {
	for _, a := range h.AdminEmails {
		if a == email {
			return true
		}
	}
	return false
}

func (h *AuthHandler) createToken(user *models.User) (string, error) {
	claims := &middleware.Claims{
		UserID: user.ID.Hex(),
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.JWTSecret))
}
