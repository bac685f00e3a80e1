package conversation

import (
	"context"
	"errors"
	"sync"

	"github.com/wolfman30/pharmesol-assistant/internal/leads"
	"github.com/wolfman30/pharmesol-assistant/internal/pharmacy"
	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

type scriptedAssistant struct {
	mu           sync.Mutex
	replies      []*TurnReply
	replyErr     error
	requests     []TurnRequest
	greetingErr  error
	continuation string
	contErr      error
}

func (a *scriptedAssistant) Reply(ctx context.Context, req TurnRequest) (*TurnReply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.replyErr != nil {
		return nil, a.replyErr
	}
	if len(a.replies) == 0 {
		return &TurnReply{}, nil
	}
	next := a.replies[0]
	a.replies = a.replies[1:]
	return next, nil
}

func (a *scriptedAssistant) Greeting(ctx context.Context, p *pharmacy.Pharmacy) (string, error) {
	if a.greetingErr != nil {
		return "", a.greetingErr
	}
	return GreetingFor(p), nil
}

func (a *scriptedAssistant) Continuation(ctx context.Context, history []Message, p *pharmacy.Pharmacy, state State) (string, error) {
	if a.contErr != nil {
		return "", a.contErr
	}
	return a.continuation, nil
}

// faultyStore wraps MemoryStore with injectable write failures.
type faultyStore struct {
	*MemoryStore
	updateErr error
	appendErr error
}

func (s *faultyStore) Save(ctx context.Context, c *Conversation) error {
	if c.ID != 0 && s.updateErr != nil {
		return s.updateErr
	}
	return s.MemoryStore.Save(ctx, c)
}

func (s *faultyStore) AppendMessage(ctx context.Context, m *Message) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.MemoryStore.AppendMessage(ctx, m)
}

// gatedAssistant blocks each Reply until the test releases it and tracks
// how many replies run at once.
type gatedAssistant struct {
	*scriptedAssistant
	entered chan struct{}
	release chan struct{}

	mu        sync.Mutex
	active    int
	maxActive int
}

func newGatedAssistant(inner *scriptedAssistant) *gatedAssistant {
	return &gatedAssistant{
		scriptedAssistant: inner,
		entered:           make(chan struct{}),
		release:           make(chan struct{}),
	}
}

func (a *gatedAssistant) Reply(ctx context.Context, req TurnRequest) (*TurnReply, error) {
	a.mu.Lock()
	a.active++
	if a.active > a.maxActive {
		a.maxActive = a.active
	}
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.active--
		a.mu.Unlock()
	}()

	a.entered <- struct{}{}
	<-a.release
	return a.scriptedAssistant.Reply(ctx, req)
}

type callbackCall struct {
	Phone, PreferredTime, Notes string
}

type emailCall struct {
	Email          string
	Pharmacy       *pharmacy.Pharmacy
	IncludePricing bool
}

type recordingGateway struct {
	mu          sync.Mutex
	callbacks   []callbackCall
	emails      []emailCall
	callbackErr error
	emailErr    error
	rejectEmail bool
}

func (g *recordingGateway) ScheduleCallback(ctx context.Context, phone, preferredTime, notes string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.callbackErr != nil {
		return false, g.callbackErr
	}
	g.callbacks = append(g.callbacks, callbackCall{phone, preferredTime, notes})
	return true, nil
}

func (g *recordingGateway) SendFollowupEmail(ctx context.Context, email string, p *pharmacy.Pharmacy, includePricing bool) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.emailErr != nil {
		return false, g.emailErr
	}
	if g.rejectEmail {
		return false, nil
	}
	g.emails = append(g.emails, emailCall{email, p, includePricing})
	return true, nil
}

type mapDirectory struct {
	byPhone map[string]pharmacy.Pharmacy
	err     error
	lookups int
}

func (d *mapDirectory) FindByPhone(ctx context.Context, normalized string) (*pharmacy.Pharmacy, error) {
	d.lookups++
	if d.err != nil {
		return nil, d.err
	}
	p, ok := d.byPhone[normalized]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (d *mapDirectory) List(ctx context.Context) ([]pharmacy.Pharmacy, error) {
	out := make([]pharmacy.Pharmacy, 0, len(d.byPhone))
	for _, p := range d.byPhone {
		out = append(out, p)
	}
	return out, nil
}

// countingLeads wraps the in-memory repository and counts lookups.
type countingLeads struct {
	*leads.InMemoryRepository
	finds   int
	saveErr error
}

func (c *countingLeads) FindByPhone(ctx context.Context, phone string) (*leads.PharmacyLead, error) {
	c.finds++
	return c.InMemoryRepository.FindByPhone(ctx, phone)
}

func (c *countingLeads) Save(ctx context.Context, lead *leads.PharmacyLead) error {
	if c.saveErr != nil {
		return c.saveErr
	}
	return c.InMemoryRepository.Save(ctx, lead)
}

type recordedMetrics struct {
	mu          sync.Mutex
	turns       map[string]int
	calls       map[string]int
	transitions map[string]int
}

func newRecordedMetrics() *recordedMetrics {
	return &recordedMetrics{turns: map[string]int{}, calls: map[string]int{}, transitions: map[string]int{}}
}

func (m *recordedMetrics) ObserveTurn(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[operation+"/"+outcome]++
}

func (m *recordedMetrics) ObserveFunctionCall(function, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[function+"/"+result]++
}

func (m *recordedMetrics) ObserveTransition(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[from+"->"+to]++
}

var errBoom = errors.New("boom")

type harness struct {
	store     *faultyStore
	leads     *countingLeads
	directory *mapDirectory
	assistant *scriptedAssistant
	gateway   *recordingGateway
	metrics   *recordedMetrics
	orch      *Orchestrator
}

func newHarness(pharmacies ...pharmacy.Pharmacy) *harness {
	h := &harness{
		store:     &faultyStore{MemoryStore: NewMemoryStore()},
		leads:     &countingLeads{InMemoryRepository: leads.NewInMemoryRepository()},
		directory: &mapDirectory{byPhone: map[string]pharmacy.Pharmacy{}},
		assistant: &scriptedAssistant{},
		gateway:   &recordingGateway{},
		metrics:   newRecordedMetrics(),
	}
	for _, p := range pharmacies {
		h.directory.byPhone[p.Phone] = p
	}
	h.orch = h.newOrchestrator(h.assistant)
	return h
}

// newOrchestrator builds an orchestrator over the harness collaborators with
// a different assistant.
func (h *harness) newOrchestrator(assistant Assistant) *Orchestrator {
	logger := logging.Discard()
	dispatcher := NewDispatcher(h.leads, h.store, h.gateway, h.metrics, logger)
	return NewOrchestrator(OrchestratorDeps{
		Store:      h.store,
		Directory:  h.directory,
		Leads:      h.leads,
		Assistant:  assistant,
		Dispatcher: dispatcher,
		Metrics:    h.metrics,
	}, logger)
}

func toolCall(name, args string) ToolCall {
	return ToolCall{ID: "call-" + name, Name: name, Arguments: args}
}

func testPharmacy() pharmacy.Pharmacy {
	email := "owner@mainstreetrx.example"
	return pharmacy.Pharmacy{
		ID:            "42",
		Name:          "Main Street Pharmacy",
		Phone:         "15551234567",
		Address:       "1 Main St",
		City:          "Springfield",
		State:         "IL",
		ContactPerson: "Dana",
		Email:         &email,
		RxVolume:      12000,
		Prescriptions: []pharmacy.Prescription{{Drug: "Lisinopril", Count: 400}},
	}
}
