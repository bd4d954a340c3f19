// Package stats aggregates ask activity for the dashboard endpoints.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coursechat-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store records asks and serves the aggregates behind /course/rag-stats.
type Store interface {
	RecordAsk(ctx context.Context, sample models.AskSample, section string) error
	Overview(ctx context.Context, userID string) (models.StatsOverview, error)
	TopSections(ctx context.Context, limit int) ([]models.SectionStat, error)
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

type mongoStore struct {
	sections *mongo.Collection
	samples  *mongo.Collection
}

func NewMongoStore(db *mongo.Database) Store {
	return &mongoStore{
		sections: db.Collection("section_stats"),
		samples:  db.Collection("ask_samples"),
	}
}

// RecordAsk persists one sample and bumps the section counter. A
// failure between the two writes at worst undercounts one question.
func (s *mongoStore) RecordAsk(ctx context.Context, sample models.AskSample, section string) error {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}
	if _, err := s.samples.InsertOne(ctx, sample); err != nil {
		return fmt.Errorf("record ask sample: %w", err)
	}

	if section == "" {
		return nil
	}
	filter := bson.M{"course_id": sample.CourseID, "section": section}
	update := bson.M{
		"$inc": bson.M{"question_count": 1},
		"$set": bson.M{"updated_at": sample.Timestamp},
	}
	if _, err := s.sections.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("increment section counter: %w", err)
	}
	return nil
}

// Overview aggregates the sample log. With a userID it covers only that
// user's asks, otherwise all activity. AvgResponseTime comes back in
// seconds.
func (s *mongoStore) Overview(ctx context.Context, userID string) (models.StatsOverview, error) {
	match := bson.M{}
	if userID != "" {
		match["user_id"] = userID
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":    nil,
			"total":  bson.M{"$sum": 1},
			"avg_ns": bson.M{"$avg": "$latency_ns"},
			"last":   bson.M{"$max": "$timestamp"},
		}}},
	}

	cursor, err := s.samples.Aggregate(ctx, pipeline)
	if err != nil {
		return models.StatsOverview{}, fmt.Errorf("aggregate overview: %w", err)
	}
	defer cursor.Close(ctx)

	var row struct {
		Total int64      `bson:"total"`
		AvgNs float64    `bson:"avg_ns"`
		Last  *time.Time `bson:"last"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&row); err != nil {
			return models.StatsOverview{}, fmt.Errorf("decode overview: %w", err)
		}
	} else if err := cursor.Err(); err != nil {
		return models.StatsOverview{}, fmt.Errorf("aggregate overview: %w", err)
	}

	return models.StatsOverview{
		TotalQuestions:  row.Total,
		AvgResponseTime: row.AvgNs / float64(time.Second),
		LastActivity:    row.Last,
	}, nil
}

// TopSections returns section counters ordered by question count.
func (s *mongoStore) TopSections(ctx context.Context, limit int) ([]models.SectionStat, error) {
	if limit <= 0 {
		limit = 5
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "question_count", Value: -1}, {Key: "section", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.sections.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find top sections: %w", err)
	}
	defer cursor.Close(ctx)

	sections := []models.SectionStat{}
	if err := cursor.All(ctx, &sections); err != nil {
		return nil, fmt.Errorf("decode top sections: %w", err)
	}
	return sections, nil
}

// Prune drops samples older than the retention window, plus section
// counter docs with no activity since the cutoff. Sections active inside
// the window keep their full counts.
func (s *mongoStore) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, errors.New("retention must be positive")
	}
	cutoff := time.Now().UTC().Add(-retention)

	res, err := s.samples.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("prune samples: %w", err)
	}

	if _, err := s.sections.DeleteMany(ctx, bson.M{"updated_at": bson.M{"$lt": cutoff}}); err != nil {
		return res.DeletedCount, fmt.Errorf("prune stale sections: %w", err)
	}
	return res.DeletedCount, nil
}
