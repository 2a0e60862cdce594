package models

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role constants for user authorization.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var ValidRoles = []string{RoleUser, RoleAdmin}

func RoleValid(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// EmailValid reports whether s looks like an email address. Callers are
// expected to lowercase and trim before storing.
func EmailValid(s string) bool {
	return emailRe.MatchString(s)
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GoogleID  string             `bson:"googleId,omitempty" json:"googleId,omitempty"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Picture   string             `bson:"picture,omitempty" json:"picture,omitempty"`
	Role      string             `bson:"role" json:"role"` // user or admin
	IsActive  bool               `bson:"isActive" json:"isActive"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
