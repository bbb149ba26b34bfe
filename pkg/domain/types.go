package domain

import "time"

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// AnonymousUserID is used when a request carries no identity cookie.
const AnonymousUserID = "anonymous"

// Vehicle identifies the car a chat session is about.
type Vehicle struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
}

// Message is a single chat history entry.
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"timestamp"`
	CarImage  string      `json:"car_image,omitempty"`
	Products  []Product   `json:"products,omitempty"`
}

// Session holds the full conversation state for one vehicle chat.
type Session struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"user_id"`
	Vehicle           Vehicle   `json:"car_details"`
	CreatedAt         time.Time `json:"created_at"`
	Messages          []Message `json:"messages"`
	LastMessage       string    `json:"last_message"`
	MessageCount      int       `json:"message_count"`
	DiagnosisComplete bool      `json:"diagnosis_complete"`
}

// SessionSummary is the listing view of a session, without messages.
type SessionSummary struct {
	ID           string    `json:"id"`
	Vehicle      Vehicle   `json:"car_details"`
	CreatedAt    time.Time `json:"created_at"`
	LastMessage  string    `json:"last_message"`
	MessageCount int       `json:"message_count"`
}

// Summary projects a session into its listing form.
func (s Session) Summary() SessionSummary {
	return SessionSummary{
		ID:           s.ID,
		Vehicle:      s.Vehicle,
		CreatedAt:    s.CreatedAt,
		LastMessage:  s.LastMessage,
		MessageCount: s.MessageCount,
	}
}

// Product is a static catalog entry surfaced as a part recommendation.
type Product struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
}

// Reply is what the engine returns for one turn.
type Reply struct {
	Message  string `json:"message"`
	CarImage string `json:"car_image,omitempty"`
}
