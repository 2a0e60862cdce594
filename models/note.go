package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxNoteImages caps attachments per note.
const MaxNoteImages = 5

type Note struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Subject   string             `bson:"subject" json:"subject"`
	Body      string             `bson:"body" json:"body"`
	UserEmail string             `bson:"userEmail" json:"userEmail"` // ownership key; never changes after create
	Images    []string           `bson:"images" json:"images"`       // S3 URLs, upload order
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
