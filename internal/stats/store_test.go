package stats

import (
	"context"
	"os"
	"testing"
	"time"

	"coursechat-backend/models"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func testDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("mongo connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	db := client.Database("coursechat_test_stats")
	if err := db.Drop(ctx); err != nil {
		t.Fatalf("drop test db: %v", err)
	}
	return db
}

func TestRecordAskAndOverview(t *testing.T) {
	db := testDB(t)
	store := NewMongoStore(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	samples := []models.AskSample{
		{UserID: "u1", CourseID: "cs101", Latency: 2 * time.Second, Timestamp: base.Add(-time.Hour)},
		{UserID: "u1", CourseID: "cs101", Latency: 4 * time.Second, Timestamp: base},
		{UserID: "u2", CourseID: "cs101", Latency: 10 * time.Second, Timestamp: base.Add(-time.Minute)},
	}
	sections := []string{"Intro", "Intro", "Recursion"}
	for i, s := range samples {
		if err := store.RecordAsk(ctx, s, sections[i]); err != nil {
			t.Fatalf("record ask: %v", err)
		}
	}

	all, err := store.Overview(ctx, "")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if all.TotalQuestions != 3 {
		t.Errorf("total = %d, want 3", all.TotalQuestions)
	}
	// (2 + 4 + 10) / 3 seconds
	if all.AvgResponseTime < 5.3 || all.AvgResponseTime > 5.4 {
		t.Errorf("avg = %f, want ~5.33", all.AvgResponseTime)
	}
	if all.LastActivity == nil || !all.LastActivity.Equal(base) {
		t.Errorf("last activity = %v, want %v", all.LastActivity, base)
	}

	mine, err := store.Overview(ctx, "u1")
	if err != nil {
		t.Fatalf("overview for user: %v", err)
	}
	if mine.TotalQuestions != 2 {
		t.Errorf("user total = %d, want 2", mine.TotalQuestions)
	}
	if mine.AvgResponseTime < 2.9 || mine.AvgResponseTime > 3.1 {
		t.Errorf("user avg = %f, want 3.0", mine.AvgResponseTime)
	}
}

func TestOverviewEmpty(t *testing.T) {
	db := testDB(t)
	store := NewMongoStore(db)

	overview, err := store.Overview(context.Background(), "")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.TotalQuestions != 0 || overview.AvgResponseTime != 0 {
		t.Errorf("empty overview = %+v", overview)
	}
	if overview.LastActivity != nil {
		t.Errorf("last activity = %v, want nil", overview.LastActivity)
	}
}

func TestTopSectionsOrdering(t *testing.T) {
	db := testDB(t)
	store := NewMongoStore(db)
	ctx := context.Background()

	counts := map[string]int{"Intro": 3, "Recursion": 5, "Graphs": 1}
	for section, n := range counts {
		for i := 0; i < n; i++ {
			sample := models.AskSample{CourseID: "cs101", Latency: time.Second, Timestamp: time.Now().UTC()}
			if err := store.RecordAsk(ctx, sample, section); err != nil {
				t.Fatalf("record ask: %v", err)
			}
		}
	}

	top, err := store.TopSections(ctx, 2)
	if err != nil {
		t.Fatalf("top sections: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("got %d sections, want 2", len(top))
	}
	if top[0].Section != "Recursion" || top[0].QuestionCount != 5 {
		t.Errorf("top[0] = %+v", top[0])
	}
	if top[1].Section != "Intro" || top[1].QuestionCount != 3 {
		t.Errorf("top[1] = %+v", top[1])
	}
}

func TestPrune(t *testing.T) {
	db := testDB(t)
	store := NewMongoStore(db)
	ctx := context.Background()

	old := models.AskSample{CourseID: "cs101", Latency: time.Second, Timestamp: time.Now().UTC().Add(-48 * time.Hour)}
	recent := models.AskSample{CourseID: "cs101", Latency: time.Second, Timestamp: time.Now().UTC()}
	if err := store.RecordAsk(ctx, old, "Old"); err != nil {
		t.Fatalf("record ask: %v", err)
	}
	if err := store.RecordAsk(ctx, recent, "Recent"); err != nil {
		t.Fatalf("record ask: %v", err)
	}

	removed, err := store.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	overview, err := store.Overview(ctx, "")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.TotalQuestions != 1 {
		t.Errorf("total after prune = %d, want 1", overview.TotalQuestions)
	}

	top, err := store.TopSections(ctx, 10)
	if err != nil {
		t.Fatalf("top sections: %v", err)
	}
	for _, s := range top {
		if s.Section == "Old" {
			t.Errorf("pruned section still present: %+v", s)
		}
	}
}
