package conversation

import "context"

// Service describes the chatbot operations exposed over HTTP.
type Service interface {
	StartChat(ctx context.Context, phoneNumber string) (*StartChatResult, error)
	SendMessage(ctx context.Context, conversationID int64, text string) (*SendMessageResult, error)
	ScheduleCallback(ctx context.Context, conversationID int64, preferredTime, notes string) (*ActionResult, error)
	SendEmail(ctx context.Context, conversationID int64, email string, includePricing bool) (*ActionResult, error)
	GetConversation(ctx context.Context, conversationID int64) (*ConversationView, error)
	ResumeSummary(ctx context.Context, conversationID int64) (string, error)
}

var _ Service = (*Orchestrator)(nil)

// StartChatRequest is the body of POST /api/chatbot/start.
type StartChatRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"notblank"`
}

// SendMessageRequest is the body of POST /api/chatbot/message.
type SendMessageRequest struct {
	ConversationID int64  `json:"conversationId" validate:"gt=0"`
	Message        string `json:"message" validate:"notblank"`
}

// ScheduleCallbackRequest is the body of POST /api/chatbot/schedule-callback.
type ScheduleCallbackRequest struct {
	ConversationID int64  `json:"conversationId" validate:"gt=0"`
	PreferredTime  string `json:"preferredTime" validate:"notblank"`
	Notes          string `json:"notes"`
}

// SendEmailRequest is the body of POST /api/chatbot/send-email.
type SendEmailRequest struct {
	ConversationID int64  `json:"conversationId" validate:"gt=0"`
	Email          string `json:"email" validate:"required,email"`
	IncludePricing bool   `json:"includePricing"`
}

// ResumeResponse is returned by GET /api/chatbot/conversation/{id}/resume.
type ResumeResponse struct {
	ConversationID int64  `json:"conversationId"`
	Message        string `json:"message"`
}
