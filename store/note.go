package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"keepnotes/backend/models"
)

func (db *DB) InsertNote(ctx context.Context, note *models.Note) (primitive.ObjectID, error) {
	res, err := db.Notes().InsertOne(ctx, note, options.InsertOne())
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

// NotesByOwner returns the owner's notes, newest first.
func (db *DB) NotesByOwner(ctx context.Context, email string) ([]models.Note, error) {
	cur, err := db.Notes().Find(ctx, bson.M{"userEmail": email}, options.Find().SetSort(bson.M{"createdAt": -1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var notes []models.Note
	if err := cur.All(ctx, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// NoteByIDAndOwner matches on id and owner email together, so a note owned by
// someone else reads the same as a note that does not exist. Returns nil, nil
// when there is no match.
func (db *DB) NoteByIDAndOwner(ctx context.Context, id primitive.ObjectID, email string) (*models.Note, error) {
	var note models.Note
	err := db.Notes().FindOne(ctx, bson.M{"_id": id, "userEmail": email}).Decode(&note)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// UpdateNote replaces subject and body of the owner's note. Owner email,
// images and createdAt are untouched. Returns nil, nil when no note matches.
func (db *DB) UpdateNote(ctx context.Context, id primitive.ObjectID, email, subject, body string) (*models.Note, error) {
	var note models.Note
	err := db.Notes().FindOneAndUpdate(ctx,
		bson.M{"_id": id, "userEmail": email},
		bson.M{"$set": bson.M{"subject": subject, "body": body, "updatedAt": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&note)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteNoteByOwner removes the owner's note and returns it, or nil, nil when
// no note matches.
func (db *DB) DeleteNoteByOwner(ctx context.Context, id primitive.ObjectID, email string) (*models.Note, error) {
	var note models.Note
	err := db.Notes().FindOneAndDelete(ctx, bson.M{"_id": id, "userEmail": email}).Decode(&note)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// PullNoteImage removes one image URL from the owner's note. Returns false
// when no note matched the id+owner filter.
func (db *DB) PullNoteImage(ctx context.Context, id primitive.ObjectID, email, imageURL string) (bool, error) {
	res, err := db.Notes().UpdateOne(ctx,
		bson.M{"_id": id, "userEmail": email},
		bson.M{"$pull": bson.M{"images": imageURL}, "$set": bson.M{"updatedAt": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// NoteByID fetches any note, ignoring ownership. Returns nil, nil when the
// note does not exist.
func (db *DB) NoteByID(ctx context.Context, id primitive.ObjectID) (*models.Note, error) {
	var note models.Note
	err := db.Notes().FindOne(ctx, bson.M{"_id": id}).Decode(&note)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// AllNotes returns one page of all notes (newest first) plus the total count.
// Page is 1-based; callers clamp page and limit.
func (db *DB) AllNotes(ctx context.Context, page, limit int) ([]models.Note, int64, error) {
	total, err := db.Notes().CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	skip := int64(page-1) * int64(limit)
	cur, err := db.Notes().Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"createdAt": -1}).SetSkip(skip).SetLimit(int64(limit)))
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	var notes []models.Note
	if err := cur.All(ctx, &notes); err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

// UpdateAnyNote patches subject and/or body of any note, ignoring ownership.
// Returns nil, nil when the note does not exist.
func (db *DB) UpdateAnyNote(ctx context.Context, id primitive.ObjectID, subject, body *string) (*models.Note, error) {
	set := bson.M{"updatedAt": time.Now()}
	if subject != nil {
		set["subject"] = *subject
	}
	if body != nil {
		set["body"] = *body
	}
	var note models.Note
	err := db.Notes().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&note)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// DeleteAnyNote removes any note by id, ignoring ownership. Returns false when
// the note does not exist.
func (db *DB) DeleteAnyNote(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := db.Notes().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// DeleteNotesByOwner removes all notes owned by email. Used when an account is
// deleted.
func (db *DB) DeleteNotesByOwner(ctx context.Context, email string) (int64, error) {
	res, err := db.Notes().DeleteMany(ctx, bson.M{"userEmail": email})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
