package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/pharmesol-assistant/internal/leads"
	"github.com/wolfman30/pharmesol-assistant/internal/pharmacy"
	"github.com/wolfman30/pharmesol-assistant/internal/phone"
	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

const fallbackReply = "I understand. How else can I help you?"

// NotificationGateway hands callbacks and follow-up emails to the outside
// world. A false ack is treated as a failure.
type NotificationGateway interface {
	ScheduleCallback(ctx context.Context, phone, preferredTime, notes string) (bool, error)
	SendFollowupEmail(ctx context.Context, email string, p *pharmacy.Pharmacy, includePricing bool) (bool, error)
}

// DispatchRecorder observes function calls and applied transitions.
type DispatchRecorder interface {
	ObserveFunctionCall(function, result string)
	ObserveTransition(from, to string)
}

// DispatchResult is the outcome of one model turn's function calls.
type DispatchResult struct {
	// Texts holds the non-empty confirmation strings in call order.
	Texts   []string
	Records []ToolCallRecord
}

// Dispatcher applies model-issued function calls to lead and conversation state.
type Dispatcher struct {
	leads   leads.Repository
	store   Store
	gateway NotificationGateway
	metrics DispatchRecorder
	logger  *logging.Logger
}

// NewDispatcher wires the dispatcher. metrics may be nil.
func NewDispatcher(leadRepo leads.Repository, store Store, gateway NotificationGateway, metrics DispatchRecorder, logger *logging.Logger) *Dispatcher {
	if leadRepo == nil {
		panic("conversation: lead repository required")
	}
	if store == nil {
		panic("conversation: conversation store required")
	}
	if gateway == nil {
		panic("conversation: notification gateway required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		leads:   leadRepo,
		store:   store,
		gateway: gateway,
		metrics: metrics,
		logger:  logger.Component("dispatcher"),
	}
}

// Dispatch applies calls sequentially in model order. A failing call is
// logged and recorded; the remaining calls still run.
func (d *Dispatcher) Dispatch(ctx context.Context, conv *Conversation, calls []ToolCall) DispatchResult {
	var out DispatchResult
	for _, call := range calls {
		record := ToolCallRecord{Function: call.Name, Arguments: rawArguments(call.Arguments)}

		fc, err := ParseFunctionCall(call.Name, call.Arguments)
		if err != nil {
			result := "malformed"
			if errors.Is(err, ErrUnknownFunction) {
				result = "unknown"
			}
			d.logger.Warn("skipping function call",
				"conversation_id", conv.ID,
				"function", call.Name,
				"error", err,
			)
			d.observeCall(call.Name, result)
			record.Error = err.Error()
			out.Records = append(out.Records, record)
			continue
		}

		text, err := d.execute(ctx, conv, fc)
		if err != nil {
			d.logger.Error("function call failed",
				"conversation_id", conv.ID,
				"function", call.Name,
				"error", err,
			)
			d.observeCall(call.Name, "error")
			record.Error = err.Error()
			out.Records = append(out.Records, record)
			continue
		}
		d.observeCall(call.Name, "ok")
		out.Records = append(out.Records, record)
		if text != "" {
			out.Texts = append(out.Texts, text)
		}
	}
	return out
}

func (d *Dispatcher) execute(ctx context.Context, conv *Conversation, fc FunctionCall) (string, error) {
	switch args := fc.(type) {
	case CollectPharmacyInfoArgs:
		return "", d.CollectPharmacyInfo(ctx, conv, args.Update())
	case ScheduleCallbackArgs:
		if err := d.ScheduleCallback(ctx, conv, args.PreferredTime, args.Notes); err != nil {
			return "", err
		}
		return fmt.Sprintf("I've scheduled a callback for %s. Our team will reach out to you then.", args.PreferredTime), nil
	case SendFollowupEmailArgs:
		if err := d.SendFollowupEmail(ctx, conv, args.Email, args.IncludePricing); err != nil {
			return "", err
		}
		return fmt.Sprintf("I've sent detailed information to %s. Check your inbox shortly!", args.Email), nil
	case HighlightRxBenefitsArgs:
		tier, _ := pharmacy.ParseTier(args.VolumeTier)
		return pharmacy.VolumeMessage(tier), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFunction, fc.FunctionName())
	}
}

// CollectPharmacyInfo merges u into the lead for the conversation's phone and
// moves the conversation on once name, contact and volume are all known.
func (d *Dispatcher) CollectPharmacyInfo(ctx context.Context, conv *Conversation, u leads.Update) error {
	lead, err := d.leads.FindByPhone(ctx, conv.PhoneNumber)
	if err != nil {
		return fmt.Errorf("conversation: load lead: %w", err)
	}
	isNew := lead == nil
	if isNew {
		lead = &leads.PharmacyLead{PhoneNumber: conv.PhoneNumber}
	}
	if lead.Merge(u) || isNew {
		if err := d.leads.Save(ctx, lead); err != nil {
			return fmt.Errorf("conversation: save lead: %w", err)
		}
	}
	if !lead.IsComplete() {
		return nil
	}
	changed, err := d.commit(ctx, conv, EventInfoCollected, "")
	if err != nil {
		return fmt.Errorf("conversation: save state: %w", err)
	}
	if changed {
		d.logger.Info("lead information collected",
			"conversation_id", conv.ID,
			"pharmacy_name", lead.PharmacyName,
		)
	}
	return nil
}

// ScheduleCallback requests a callback, fires FOLLOWUP_REQUESTED and marks
// the conversation FOLLOWUP_SCHEDULED.
func (d *Dispatcher) ScheduleCallback(ctx context.Context, conv *Conversation, preferredTime, notes string) error {
	ok, err := d.gateway.ScheduleCallback(ctx, conv.PhoneNumber, preferredTime, notes)
	if err != nil {
		return fmt.Errorf("%w: schedule callback: %v", ErrUpstreamUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: callback was not accepted", ErrUpstreamUnavailable)
	}
	if _, err := d.commit(ctx, conv, EventFollowupRequested, StatusFollowupScheduled); err != nil {
		return fmt.Errorf("conversation: save callback state: %w", err)
	}
	d.logger.Info("callback scheduled",
		"conversation_id", conv.ID,
		"phone", phone.Last4(conv.PhoneNumber),
	)
	return nil
}

// SendFollowupEmail sends the follow-up email. It does not change state.
func (d *Dispatcher) SendFollowupEmail(ctx context.Context, conv *Conversation, email string, includePricing bool) error {
	ok, err := d.gateway.SendFollowupEmail(ctx, email, conv.PharmacyData, includePricing)
	if err != nil {
		return fmt.Errorf("%w: send email: %v", ErrUpstreamUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: email was not accepted", ErrUpstreamUnavailable)
	}
	return nil
}

// commit fires event on conv, sets status when non-empty and saves the
// result. On a failed save conv keeps its previous state and status. It
// reports whether the state changed.
func (d *Dispatcher) commit(ctx context.Context, conv *Conversation, event Event, status Status) (bool, error) {
	from, prevStatus := conv.State, conv.Status
	to := Transition(from, event)
	if to == from {
		d.logger.Debug("transition ignored",
			"conversation_id", conv.ID,
			"state", from,
			"event", event,
		)
	}
	if status == "" {
		status = prevStatus
	}
	if to == from && status == prevStatus {
		return false, nil
	}
	conv.State, conv.Status = to, status
	if err := d.store.Save(ctx, conv); err != nil {
		conv.State, conv.Status = from, prevStatus
		return false, err
	}
	if to == from {
		return false, nil
	}
	if d.metrics != nil {
		d.metrics.ObserveTransition(string(from), string(to))
	}
	return true, nil
}

func (d *Dispatcher) observeCall(function, result string) {
	if d.metrics != nil {
		d.metrics.ObserveFunctionCall(function, result)
	}
}

// ComposeReply appends the non-empty function results to the model's text.
func ComposeReply(content string, results []string) string {
	parts := make([]string, 0, len(results)+1)
	if c := strings.TrimSpace(content); c != "" {
		parts = append(parts, c)
	}
	for _, r := range results {
		if r != "" {
			parts = append(parts, r)
		}
	}
	if len(parts) == 0 {
		return fallbackReply
	}
	return strings.Join(parts, "\n\n")
}

// rawArguments keeps the payload for the audit trail when it is valid JSON.
func rawArguments(arguments string) json.RawMessage {
	trimmed := strings.TrimSpace(arguments)
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(trimmed)); err != nil {
		return nil
	}
	return json.RawMessage(buf.Bytes())
}
