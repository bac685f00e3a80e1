// Package notify delivers the side effects a sales conversation can request:
// follow-up emails and callback hand-offs to the sales team.
package notify

import (
	"context"
	"time"

	"github.com/wolfman30/pharmesol-assistant/internal/pharmacy"
	"github.com/wolfman30/pharmesol-assistant/internal/phone"
	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

// Gateway sends follow-up emails and schedules callbacks. Failures are
// logged and reported as (false, err); callers decide how to surface them.
type Gateway struct {
	email     EmailSender
	callbacks CallbackScheduler
	logger    *logging.Logger
	now       func() time.Time
}

// NewGateway wires an email sender and a callback scheduler.
func NewGateway(email EmailSender, callbacks CallbackScheduler, logger *logging.Logger) *Gateway {
	if email == nil {
		panic("notify: email sender cannot be nil")
	}
	if callbacks == nil {
		panic("notify: callback scheduler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Gateway{
		email:     email,
		callbacks: callbacks,
		logger:    logger.Component("notify"),
		now:       time.Now,
	}
}

// ScheduleCallback hands a callback request for the number to the scheduler.
func (g *Gateway) ScheduleCallback(ctx context.Context, phoneNumber, preferredTime, notes string) (bool, error) {
	req := newCallbackRequested(phoneNumber, preferredTime, notes, g.now())
	if err := g.callbacks.Schedule(ctx, req); err != nil {
		g.logger.Error("callback scheduling failed", "error", err, "phone", phone.Last4(phoneNumber))
		return false, err
	}
	g.logger.Info("callback scheduled", "event_id", req.EventID, "phone", phone.Last4(phoneNumber))
	return true, nil
}

// SendFollowupEmail renders and sends the follow-up email. The snapshot may be nil.
func (g *Gateway) SendFollowupEmail(ctx context.Context, email string, p *pharmacy.Pharmacy, includePricing bool) (bool, error) {
	msg := BuildFollowupEmail(email, p, includePricing)
	if err := g.email.Send(ctx, msg); err != nil {
		g.logger.Error("follow-up email failed", "error", err)
		return false, err
	}
	g.logger.Info("follow-up email sent", "include_pricing", includePricing, "tier", p.Tier())
	return true, nil
}
