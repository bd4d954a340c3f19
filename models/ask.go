package models

// Ask request lifecycle states. Terminal states are done and failed; a
// failed ask never commits a message to conversation history.
const (
	AskStateReceived   = "received"
	AskStateEmbedding  = "embedding"
	AskStateRetrieving = "retrieving"
	AskStateComposing  = "composing"
	AskStateDone       = "done"
	AskStateFailed     = "failed"
)

type AskRequest struct {
	Question       string `json:"question" binding:"required,min=1,max=2000"`
	Section        string `json:"section,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	CourseID       string `json:"courseId,omitempty"`
}

// Reference is a citation attached to an answer. Start/End are HH:MM:SS.mmm
// strings because the front end renders them verbatim, and Score is clamped
// to [0,1]; references[0].score is treated as overall confidence by the UI.
type Reference struct {
	File    string  `json:"file" bson:"file"`
	Section string  `json:"section" bson:"section"`
	Start   string  `json:"start" bson:"start"`
	End     string  `json:"end" bson:"end"`
	Score   float64 `json:"score" bson:"score"`
}

// Answer is the composed result of one ask.
type Answer struct {
	Answer     string      `json:"answer"`
	References []Reference `json:"references"`
	LatencyMs  int64       `json:"-"`
}

// ReferenceFromChunk builds the wire citation for a scored chunk.
func ReferenceFromChunk(sc ScoredChunk) Reference {
	return Reference{
		File:    sc.Chunk.File,
		Section: sc.Chunk.Section,
		Start:   FormatTimestamp(sc.Chunk.Start),
		End:     FormatTimestamp(sc.Chunk.End),
		Score:   sc.Score,
	}
}
