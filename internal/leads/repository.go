package leads

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Repository defines the interface for lead storage
type Repository interface {
	// FindByPhone returns nil, nil when no lead exists.
	FindByPhone(ctx context.Context, phone string) (*PharmacyLead, error)
	// Save inserts or updates the lead keyed by its phone number. ID and
	// timestamps are populated on return.
	Save(ctx context.Context, lead *PharmacyLead) error
}

// InMemoryRepository is a Repository backed by a map, used in tests and local runs
type InMemoryRepository struct {
	mu     sync.RWMutex
	leads  map[string]PharmacyLead
	nextID int64
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads: make(map[string]PharmacyLead),
	}
}

func (r *InMemoryRepository) FindByPhone(ctx context.Context, phone string) (*PharmacyLead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[phone]
	if !ok {
		return nil, nil
	}
	return cloneLead(lead), nil
}

func (r *InMemoryRepository) Save(ctx context.Context, lead *PharmacyLead) error {
	if lead == nil || strings.TrimSpace(lead.PhoneNumber) == "" {
		return ErrMissingPhone
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.leads[lead.PhoneNumber]; ok {
		lead.ID = existing.ID
		lead.CreatedAt = existing.CreatedAt
	} else {
		r.nextID++
		lead.ID = r.nextID
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now
	r.leads[lead.PhoneNumber] = *cloneLead(*lead)
	return nil
}

func cloneLead(l PharmacyLead) *PharmacyLead {
	if l.EstimatedRxVolume != nil {
		v := *l.EstimatedRxVolume
		l.EstimatedRxVolume = &v
	}
	return &l
}
