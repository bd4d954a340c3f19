package models

import "time"

// SectionStat is a per-(course, section) question counter. Counters only
// ever increase within the retention window.
type SectionStat struct {
	Section       string `bson:"section" json:"section"`
	CourseID      string `bson:"course_id" json:"course_id"`
	QuestionCount int64  `bson:"question_count" json:"questionCount"`
}

// StatsOverview aggregates ask activity. AvgResponseTime is in seconds; the
// dashboard formats it with toFixed(1) + "s".
type StatsOverview struct {
	TotalQuestions  int64      `json:"totalQuestions"`
	AvgResponseTime float64    `json:"avgResponseTime"`
	LastActivity    *time.Time `json:"lastActivity,omitempty"`
}

// RagStats is the payload of GET /course/rag-stats.
type RagStats struct {
	Overview    StatsOverview `json:"overview"`
	TopSections []SectionStat `json:"topSections"`
}

// AskSample is one recorded ask, kept for latency aggregation and pruned
// past the retention window.
type AskSample struct {
	UserID    string        `bson:"user_id,omitempty"`
	CourseID  string        `bson:"course_id"`
	Latency   time.Duration `bson:"latency_ns"`
	Timestamp time.Time     `bson:"timestamp"`
}
