package models

import "time"

// Course is an entitlement record: which courses a user can query. Owned by
// backend persistence; the retrieval core only reads it.
type Course struct {
	CourseID  string    `bson:"course_id" json:"course_id"`
	Title     string    `bson:"title" json:"title"`
	UserID    string    `bson:"user_id,omitempty" json:"user_id,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
