package types

import "time"

// Chunk is one embedded slice of a knowledge-base document, as stored in the
// documents table.
type Chunk struct {
	ID               int64
	Filepath         string
	ChunkIndex       int
	ChunkID          string
	Text             string
	NormalizedText   string
	Source           string
	Embedding        []float32
	EmbeddingNorm    float64
	EmbeddingModel   string
	EmbeddingDim     int
	EmbeddingVersion string
	CreatedAt        time.Time

	// Similarity is filled by vector search (1 for direct lookups).
	Similarity float64
}

type ChatMessage struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	IP             string    `json:"ip,omitempty"`
	Status         string    `json:"status"`
	Notes          string    `json:"notes"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationLead is a phone/email capture detected inside a chat
// conversation, as opposed to a Lead submitted through the form endpoint.
type ConversationLead struct {
	ConversationID string
	Phone          string
	Email          string
	Status         string
	IP             string
	Timestamp      time.Time
	Notes          string
}

type Lead struct {
	ID       int64
	Name     string
	Company  string
	Email    string
	Phone    string
	Message  string
	Source   string
	Metadata map[string]any
}
