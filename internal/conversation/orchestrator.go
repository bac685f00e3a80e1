package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/pharmesol-assistant/internal/leads"
	"github.com/wolfman30/pharmesol-assistant/internal/pharmacy"
	"github.com/wolfman30/pharmesol-assistant/internal/phone"
	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

var orchestratorTracer = otel.Tracer("pharmesol.internal.conversation")

const continuingNotice = "Continuing previous conversation"

// TurnRecorder counts orchestrator operations by outcome.
type TurnRecorder interface {
	ObserveTurn(operation, outcome string)
}

// StartChatResult is returned by StartChat.
type StartChatResult struct {
	ConversationID      int64               `json:"conversationId"`
	IsNewConversation   bool                `json:"isNewConversation"`
	Message             string              `json:"message"`
	Pharmacy            *pharmacy.Pharmacy  `json:"pharmacy"`
	Lead                *leads.PharmacyLead `json:"lead"`
	State               State               `json:"state"`
	IsReturningPharmacy bool                `json:"isReturningPharmacy"`
}

// SendMessageResult is returned by SendMessage.
type SendMessageResult struct {
	Message  string              `json:"message"`
	State    State               `json:"state"`
	Pharmacy *pharmacy.Pharmacy  `json:"pharmacy"`
	Lead     *leads.PharmacyLead `json:"lead"`
}

// ActionResult confirms a directly invoked callback or email.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MessageView is the read projection of one message.
type MessageView struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationView is the read projection returned by GetConversation.
type ConversationView struct {
	ID          int64              `json:"id"`
	PhoneNumber string             `json:"phoneNumber"`
	Status      Status             `json:"status"`
	State       State              `json:"state"`
	Pharmacy    *pharmacy.Pharmacy `json:"pharmacy"`
	Messages    []MessageView      `json:"messages"`
}

// OrchestratorDeps are the collaborators of an Orchestrator. Locker and
// Metrics are optional.
type OrchestratorDeps struct {
	Store      Store
	Directory  pharmacy.Directory
	Leads      leads.Repository
	Assistant  Assistant
	Dispatcher *Dispatcher
	Locker     Locker
	Metrics    TurnRecorder
}

// Orchestrator runs the conversation pipeline: read state, call the
// directory and model, dispatch function calls, persist, respond. Work on a
// conversation id or phone number is serialized through the Locker.
type Orchestrator struct {
	store      Store
	directory  pharmacy.Directory
	leads      leads.Repository
	assistant  Assistant
	dispatcher *Dispatcher
	locker     Locker
	metrics    TurnRecorder
	logger     *logging.Logger
}

func NewOrchestrator(deps OrchestratorDeps, logger *logging.Logger) *Orchestrator {
	if deps.Store == nil {
		panic("conversation: store cannot be nil")
	}
	if deps.Directory == nil {
		panic("conversation: pharmacy directory cannot be nil")
	}
	if deps.Leads == nil {
		panic("conversation: lead repository cannot be nil")
	}
	if deps.Assistant == nil {
		panic("conversation: assistant cannot be nil")
	}
	if deps.Dispatcher == nil {
		panic("conversation: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	locker := deps.Locker
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Orchestrator{
		store:      deps.Store,
		directory:  deps.Directory,
		leads:      deps.Leads,
		assistant:  deps.Assistant,
		dispatcher: deps.Dispatcher,
		locker:     locker,
		metrics:    deps.Metrics,
		logger:     logger.Component("orchestrator"),
	}
}

// StartChat resumes the ACTIVE conversation for the number or opens a new one.
func (o *Orchestrator) StartChat(ctx context.Context, phoneNumber string) (*StartChatResult, error) {
	ctx, span := orchestratorTracer.Start(ctx, "conversation.start_chat")
	defer span.End()

	normalized := phone.Normalize(phoneNumber)
	if normalized == "" {
		return nil, ErrInvalidPhone
	}

	unlock, err := o.locker.Lock(ctx, phoneLockKey(normalized))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: lock phone: %w", err)
	}
	defer unlock()

	existing, err := o.store.FindActiveByPhone(ctx, normalized)
	if err != nil {
		span.RecordError(err)
		o.observe("start_chat", "error")
		return nil, err
	}
	if existing != nil {
		o.observe("start_chat", "resumed")
		return o.resume(ctx, existing)
	}

	p, err := o.directory.FindByPhone(ctx, normalized)
	if err != nil {
		span.RecordError(err)
		o.observe("start_chat", "upstream_error")
		return nil, fmt.Errorf("%w: pharmacy directory: %v", ErrUpstreamUnavailable, err)
	}

	conv := &Conversation{
		PhoneNumber:         normalized,
		Status:              StatusActive,
		IsReturningPharmacy: p != nil,
		PharmacyData:        p,
	}
	var lead *leads.PharmacyLead
	if p != nil {
		id := p.ID
		conv.PharmacyID = &id
		conv.State = StatePharmacyIdentified
	} else {
		conv.State = StateCollectingLeadInfo
		lead, err = o.leads.FindByPhone(ctx, normalized)
		if err != nil {
			span.RecordError(err)
			o.observe("start_chat", "error")
			return nil, fmt.Errorf("conversation: load lead: %w", err)
		}
	}

	if err := o.store.Save(ctx, conv); err != nil {
		if errors.Is(err, ErrActiveConversationExists) {
			// Another instance opened one first.
			if raced, ferr := o.store.FindActiveByPhone(ctx, normalized); ferr == nil && raced != nil {
				o.observe("start_chat", "resumed")
				return o.resume(ctx, raced)
			}
		}
		span.RecordError(err)
		o.observe("start_chat", "error")
		return nil, err
	}

	greeting, err := o.assistant.Greeting(ctx, p)
	if err != nil || strings.TrimSpace(greeting) == "" {
		o.logger.Warn("greeting unavailable, using default",
			"conversation_id", conv.ID,
			"error", err,
		)
		greeting = defaultGreeting
	}
	if err := o.store.AppendMessage(ctx, &Message{
		ConversationID: conv.ID,
		Role:           RoleAssistant,
		Content:        greeting,
	}); err != nil {
		span.RecordError(err)
		o.abandon(ctx, conv, err)
		o.observe("start_chat", "error")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("pharmesol.conversation_id", conv.ID),
		attribute.Bool("pharmesol.returning_pharmacy", conv.IsReturningPharmacy),
	)
	o.logger.Info("conversation started",
		"conversation_id", conv.ID,
		"phone", phone.Last4(normalized),
		"returning_pharmacy", conv.IsReturningPharmacy,
		"state", conv.State,
	)
	o.observe("start_chat", "created")

	return &StartChatResult{
		ConversationID:      conv.ID,
		IsNewConversation:   true,
		Message:             greeting,
		Pharmacy:            p,
		Lead:                lead,
		State:               conv.State,
		IsReturningPharmacy: conv.IsReturningPharmacy,
	}, nil
}

// abandon closes a conversation whose greeting could not be stored so the
// next StartChat opens a fresh one instead of resuming an empty transcript.
func (o *Orchestrator) abandon(ctx context.Context, conv *Conversation, cause error) {
	conv.Status = StatusCompleted
	conv.State = Transition(conv.State, EventConversationEnded)
	if err := o.store.Save(context.WithoutCancel(ctx), conv); err != nil {
		o.logger.Error("failed to close conversation without greeting",
			"conversation_id", conv.ID,
			"cause", cause,
			"error", err,
		)
		return
	}
	o.logger.Warn("closed conversation without greeting",
		"conversation_id", conv.ID,
		"error", cause,
	)
}

func (o *Orchestrator) resume(ctx context.Context, conv *Conversation) (*StartChatResult, error) {
	var lead *leads.PharmacyLead
	if conv.IsNewLead() {
		var err error
		lead, err = o.leads.FindByPhone(ctx, conv.PhoneNumber)
		if err != nil {
			return nil, fmt.Errorf("conversation: load lead: %w", err)
		}
	}
	o.logger.Info("conversation resumed",
		"conversation_id", conv.ID,
		"phone", phone.Last4(conv.PhoneNumber),
	)
	return &StartChatResult{
		ConversationID:      conv.ID,
		IsNewConversation:   false,
		Message:             continuingNotice,
		Pharmacy:            conv.PharmacyData,
		Lead:                lead,
		State:               conv.State,
		IsReturningPharmacy: conv.IsReturningPharmacy,
	}, nil
}

// SendMessage runs one turn. The user message is persisted before the model
// is called; no assistant message is stored when the model call fails.
func (o *Orchestrator) SendMessage(ctx context.Context, conversationID int64, text string) (*SendMessageResult, error) {
	ctx, span := orchestratorTracer.Start(ctx, "conversation.send_message")
	defer span.End()
	span.SetAttributes(attribute.Int64("pharmesol.conversation_id", conversationID))

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	unlock, err := o.locker.Lock(ctx, conversationLockKey(conversationID))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: lock conversation: %w", err)
	}
	defer unlock()

	conv, err := o.store.FindByID(ctx, conversationID, true)
	if err != nil {
		span.RecordError(err)
		o.observe("send_message", outcomeFor(err))
		return nil, err
	}

	if err := o.store.AppendMessage(ctx, &Message{
		ConversationID: conv.ID,
		Role:           RoleUser,
		Content:        text,
	}); err != nil {
		span.RecordError(err)
		o.observe("send_message", "error")
		return nil, err
	}

	reply, err := o.assistant.Reply(ctx, TurnRequest{
		History:   conv.Messages,
		UserText:  text,
		Pharmacy:  conv.PharmacyData,
		IsNewLead: conv.IsNewLead(),
	})
	if err != nil {
		span.RecordError(err)
		o.observe("send_message", "upstream_error")
		if !errors.Is(err, ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		return nil, err
	}

	dispatched := o.dispatcher.Dispatch(ctx, conv, reply.ToolCalls)
	assistantMsg := &Message{
		ConversationID: conv.ID,
		Role:           RoleAssistant,
		Content:        ComposeReply(reply.Content, dispatched.Texts),
	}
	if len(dispatched.Records) > 0 {
		assistantMsg.Metadata = &MessageMetadata{ToolCalls: dispatched.Records}
	}
	if err := o.store.AppendMessage(ctx, assistantMsg); err != nil {
		span.RecordError(err)
		o.observe("send_message", "error")
		return nil, err
	}

	var lead *leads.PharmacyLead
	if conv.IsNewLead() {
		lead, err = o.leads.FindByPhone(ctx, conv.PhoneNumber)
		if err != nil {
			span.RecordError(err)
			o.observe("send_message", "error")
			return nil, fmt.Errorf("conversation: load lead: %w", err)
		}
	}

	span.SetAttributes(attribute.Int("pharmesol.tool_calls", len(reply.ToolCalls)))
	o.logger.Info("user message processed",
		"conversation_id", conv.ID,
		"tool_calls", len(reply.ToolCalls),
		"state", conv.State,
	)
	o.observe("send_message", "ok")

	return &SendMessageResult{
		Message:  assistantMsg.Content,
		State:    conv.State,
		Pharmacy: conv.PharmacyData,
		Lead:     lead,
	}, nil
}

// ScheduleCallback is the direct form of the schedule_callback function.
func (o *Orchestrator) ScheduleCallback(ctx context.Context, conversationID int64, preferredTime, notes string) (*ActionResult, error) {
	ctx, span := orchestratorTracer.Start(ctx, "conversation.schedule_callback")
	defer span.End()

	preferredTime = strings.TrimSpace(preferredTime)
	if preferredTime == "" {
		return nil, fmt.Errorf("%w: preferred time is required", ErrMalformedArguments)
	}

	unlock, err := o.locker.Lock(ctx, conversationLockKey(conversationID))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: lock conversation: %w", err)
	}
	defer unlock()

	conv, err := o.store.FindByID(ctx, conversationID, false)
	if err != nil {
		span.RecordError(err)
		o.observe("schedule_callback", outcomeFor(err))
		return nil, err
	}
	if err := o.dispatcher.ScheduleCallback(ctx, conv, preferredTime, strings.TrimSpace(notes)); err != nil {
		span.RecordError(err)
		o.observe("schedule_callback", outcomeFor(err))
		return nil, err
	}
	o.observe("schedule_callback", "ok")
	return &ActionResult{
		Success: true,
		Message: fmt.Sprintf("Great! I've scheduled a callback for %s. Someone from our team will reach out to you then.", preferredTime),
	}, nil
}

// SendEmail is the direct form of send_followup_email. Unlike the function
// call it also fires FOLLOWUP_REQUESTED.
// TODO: confirm with sales whether the function-call path should transition too.
func (o *Orchestrator) SendEmail(ctx context.Context, conversationID int64, email string, includePricing bool) (*ActionResult, error) {
	ctx, span := orchestratorTracer.Start(ctx, "conversation.send_email")
	defer span.End()

	email = strings.TrimSpace(email)
	if err := validate().Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrMalformedArguments)
	}

	unlock, err := o.locker.Lock(ctx, conversationLockKey(conversationID))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: lock conversation: %w", err)
	}
	defer unlock()

	conv, err := o.store.FindByID(ctx, conversationID, false)
	if err != nil {
		span.RecordError(err)
		o.observe("send_email", outcomeFor(err))
		return nil, err
	}
	if err := o.dispatcher.SendFollowupEmail(ctx, conv, email, includePricing); err != nil {
		span.RecordError(err)
		o.observe("send_email", outcomeFor(err))
		return nil, err
	}
	if _, err := o.dispatcher.commit(ctx, conv, EventFollowupRequested, ""); err != nil {
		span.RecordError(err)
		o.observe("send_email", "error")
		return nil, err
	}
	o.observe("send_email", "ok")
	return &ActionResult{
		Success: true,
		Message: fmt.Sprintf("Perfect! I've sent detailed information about our solutions to %s. You should receive it shortly.", email),
	}, nil
}

// GetConversation returns the conversation with its ordered transcript.
func (o *Orchestrator) GetConversation(ctx context.Context, conversationID int64) (*ConversationView, error) {
	conv, err := o.store.FindByID(ctx, conversationID, true)
	if err != nil {
		return nil, err
	}
	view := &ConversationView{
		ID:          conv.ID,
		PhoneNumber: conv.PhoneNumber,
		Status:      conv.Status,
		State:       conv.State,
		Pharmacy:    conv.PharmacyData,
		Messages:    make([]MessageView, 0, len(conv.Messages)),
	}
	for _, m := range conv.Messages {
		view.Messages = append(view.Messages, MessageView{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp})
	}
	return view, nil
}

// ResumeSummary asks the model for a short recap of the conversation. Model
// failures fall back to a fixed welcome-back sentence.
func (o *Orchestrator) ResumeSummary(ctx context.Context, conversationID int64) (string, error) {
	ctx, span := orchestratorTracer.Start(ctx, "conversation.resume_summary")
	defer span.End()

	conv, err := o.store.FindByID(ctx, conversationID, true)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	summary, err := o.assistant.Continuation(ctx, conv.Messages, conv.PharmacyData, conv.State)
	if err != nil || strings.TrimSpace(summary) == "" {
		o.logger.Warn("continuation unavailable, using fallback",
			"conversation_id", conv.ID,
			"error", err,
		)
		return fallbackResume, nil
	}
	return summary, nil
}

func (o *Orchestrator) observe(operation, outcome string) {
	if o.metrics != nil {
		o.metrics.ObserveTurn(operation, outcome)
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrConversationNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_error"
	default:
		return "error"
	}
}
