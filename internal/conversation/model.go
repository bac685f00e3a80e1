package conversation

import (
	"encoding/json"
	"time"

	"github.com/wolfman30/pharmesol-assistant/internal/pharmacy"
)

// Status is the coarse lifecycle flag of a conversation.
type Status string

const (
	StatusActive            Status = "ACTIVE"
	StatusCompleted         Status = "COMPLETED"
	StatusFollowupScheduled Status = "FOLLOWUP_SCHEDULED"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
	RoleSystem    Role = "SYSTEM"
)

// Conversation is one chat session with a phone number. PharmacyData is the
// directory snapshot taken at creation and is never refreshed.
type Conversation struct {
	ID                  int64
	PhoneNumber         string
	Status              Status
	State               State
	IsReturningPharmacy bool
	PharmacyID          *string
	PharmacyData        *pharmacy.Pharmacy
	Messages            []Message
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsNewLead reports whether the caller was unknown to the directory.
func (c *Conversation) IsNewLead() bool {
	return !c.IsReturningPharmacy
}

// Message is immutable once appended.
type Message struct {
	ID             int64
	ConversationID int64
	Role           Role
	Content        string
	Metadata       *MessageMetadata
	Timestamp      time.Time
}

// MessageMetadata records the tool calls behind an assistant message.
type MessageMetadata struct {
	ToolCalls []ToolCallRecord `json:"toolCalls,omitempty"`
}

// ToolCallRecord is the audit entry for one model-issued call. Arguments is
// set only when the payload parsed as JSON; Error is set when the call was
// skipped or failed.
type ToolCallRecord struct {
	Function  string          `json:"function"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Error     string          `json:"error,omitempty"`
}
