package leads

import (
	"strings"
	"time"
)

// PharmacyLead accumulates what a prospective pharmacy has told us, keyed by
// normalized phone number. Fields only ever go from empty to set.
type PharmacyLead struct {
	ID                int64     `json:"id"`
	PhoneNumber       string    `json:"phoneNumber"`
	PharmacyName      string    `json:"pharmacyName,omitempty"`
	ContactPerson     string    `json:"contactPerson,omitempty"`
	Email             string    `json:"email,omitempty"`
	EstimatedRxVolume *int      `json:"estimatedRxVolume,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	Address           string    `json:"address,omitempty"`
	City              string    `json:"city,omitempty"`
	State             string    `json:"state,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Update is one batch of collected fields. Blank strings and a nil or
// non-positive volume mean "not supplied".
type Update struct {
	PharmacyName      string
	ContactPerson     string
	Email             string
	EstimatedRxVolume *int
	Notes             string
	Address           string
	City              string
	State             string
}

// Merge copies every supplied field of u onto the lead and reports whether
// anything changed. Existing values are never cleared.
func (l *PharmacyLead) Merge(u Update) bool {
	changed := false
	set := func(dst *string, v string) {
		v = strings.TrimSpace(v)
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&l.PharmacyName, u.PharmacyName)
	set(&l.ContactPerson, u.ContactPerson)
	set(&l.Email, u.Email)
	set(&l.Notes, u.Notes)
	set(&l.Address, u.Address)
	set(&l.City, u.City)
	set(&l.State, u.State)
	if u.EstimatedRxVolume != nil && *u.EstimatedRxVolume > 0 {
		if l.EstimatedRxVolume == nil || *l.EstimatedRxVolume != *u.EstimatedRxVolume {
			v := *u.EstimatedRxVolume
			l.EstimatedRxVolume = &v
			changed = true
		}
	}
	return changed
}

// IsComplete reports whether name, contact and volume are all known.
func (l *PharmacyLead) IsComplete() bool {
	return l != nil &&
		l.PharmacyName != "" &&
		l.ContactPerson != "" &&
		l.EstimatedRxVolume != nil && *l.EstimatedRxVolume > 0
}
