package pharmacy

import "encoding/json"

// Prescription is a per-drug daily fill count reported by the directory.
type Prescription struct {
	Drug  string `json:"drug"`
	Count int    `json:"count"`
}

// Pharmacy is a read-only snapshot of a directory record.
type Pharmacy struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Phone         string         `json:"phone"`
	Address       string         `json:"address,omitempty"`
	City          string         `json:"city,omitempty"`
	State         string         `json:"state,omitempty"`
	RxVolume      int            `json:"rxVolume"`
	ContactPerson string         `json:"contactPerson,omitempty"`
	Email         *string        `json:"email"`
	LastContact   string         `json:"lastContact,omitempty"`
	Prescriptions []Prescription `json:"prescriptions,omitempty"`
}

// EmailAddress returns the directory email or an empty string.
func (p *Pharmacy) EmailAddress() string {
	if p == nil || p.Email == nil {
		return ""
	}
	return *p.Email
}

// Tier returns the volume tier of the snapshot. A nil snapshot is UNKNOWN.
func (p *Pharmacy) Tier() Tier {
	if p == nil {
		return TierUnknown
	}
	return TierFor(p.RxVolume)
}

// record is the wire shape served by the directory API.
type record struct {
	ID            flexibleID     `json:"id"`
	Name          string         `json:"name"`
	Phone         string         `json:"phone"`
	Address       string         `json:"address"`
	City          string         `json:"city"`
	State         string         `json:"state"`
	ContactPerson string         `json:"contactPerson"`
	Email         string         `json:"email"`
	LastContact   string         `json:"lastContact"`
	Prescriptions []Prescription `json:"prescriptions"`
}

func (r record) toPharmacy() Pharmacy {
	p := Pharmacy{
		ID:            string(r.ID),
		Name:          r.Name,
		Phone:         r.Phone,
		Address:       r.Address,
		City:          r.City,
		State:         r.State,
		RxVolume:      CalculateRxVolume(r.Prescriptions),
		ContactPerson: r.ContactPerson,
		LastContact:   r.LastContact,
		Prescriptions: r.Prescriptions,
	}
	if r.Email != "" {
		email := r.Email
		p.Email = &email
	}
	return p
}

// flexibleID accepts both string and numeric ids.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}
