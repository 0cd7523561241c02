package domain

// Intent is the closed set of operations a chat message can ask for.
type Intent string

const (
	IntentAdd      Intent = "add"
	IntentList     Intent = "list"
	IntentUpdate   Intent = "update"
	IntentComplete Intent = "complete"
	IntentDelete   Intent = "delete"
	IntentUnknown  Intent = "unknown"
)

// ParseIntent maps a raw classifier label onto the closed intent set.
// Any label outside the set collapses to IntentUnknown.
func ParseIntent(label string) Intent {
	switch Intent(label) {
	case IntentAdd, IntentList, IntentUpdate, IntentComplete, IntentDelete:
		return Intent(label)
	default:
		return IntentUnknown
	}
}

// Entities is the structured bag recovered from a chat message. Every field
// is optional; nil means the extractor saw nothing for that field.
type Entities struct {
	TaskID      *string `json:"task_id,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// ToolCall records one executed task operation on an assistant message.
// It is written once and never reinterpreted.
type ToolCall struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Result     any            `json:"result"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Task struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type Conversation struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Message struct {
	ID             string  `json:"id"`
	ConversationID string  `json:"conversation_id"`
	UserID         string  `json:"user_id"`
	Role           string  `json:"role" enum:"user,assistant"`
	Content        string  `json:"content"`
	ToolCallsJSON  *string `json:"tool_calls_json,omitempty"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	UserID     string `json:"user_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
