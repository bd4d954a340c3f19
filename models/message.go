package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is one answered turn appended to a conversation. Only successful
// asks are persisted; failed asks leave no assistant turn behind.
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`
	UserID         string             `bson:"user_id,omitempty" json:"user_id,omitempty"`
	CourseID       string             `bson:"course_id" json:"course_id"`
	Question       string             `bson:"question" json:"question"`
	Answer         string             `bson:"answer" json:"answer"`
	References     []Reference        `bson:"references" json:"references"`
	LatencyMs      int64              `bson:"latency_ms" json:"latency_ms"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
}
