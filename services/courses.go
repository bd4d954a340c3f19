package services

import (
	"context"
	"fmt"
	"time"

	"coursechat-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CourseService tracks which courses exist and who uploaded to them,
// backing the user-courses endpoint.
type CourseService struct {
	col *mongo.Collection
}

func NewCourseService(db *mongo.Database) *CourseService {
	return &CourseService{col: db.Collection("courses")}
}

// EnsureCourse registers a course on first upload. Repeat uploads are
// no-ops; created_at keeps its original value.
func (cs *CourseService) EnsureCourse(ctx context.Context, courseID, title, userID string) error {
	if title == "" {
		title = courseID
	}
	filter := bson.M{"course_id": courseID, "user_id": userID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"title":      title,
			"created_at": time.Now().UTC(),
		},
	}
	if _, err := cs.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("ensure course: %w", err)
	}
	return nil
}

// ListCourses returns the courses visible to a user. An empty userID
// lists every course.
func (cs *CourseService) ListCourses(ctx context.Context, userID string) ([]models.Course, error) {
	filter := bson.M{}
	if userID != "" {
		filter["user_id"] = userID
	}
	cursor, err := cs.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer cursor.Close(ctx)

	courses := []models.Course{}
	if err := cursor.All(ctx, &courses); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}
	return courses, nil
}
