package leads

import "testing"

func intPtr(v int) *int { return &v }

func TestMergeIsMonotonic(t *testing.T) {
	lead := &PharmacyLead{PhoneNumber: "1", PharmacyName: "A"}
	if !lead.Merge(Update{ContactPerson: "B"}) {
		t.Fatal("expected merge to report a change")
	}
	if lead.PharmacyName != "A" || lead.ContactPerson != "B" {
		t.Fatalf("prior field lost: %+v", lead)
	}

	if lead.Merge(Update{PharmacyName: "  ", Email: ""}) {
		t.Fatal("blank fields must not count as changes")
	}
	if lead.PharmacyName != "A" {
		t.Fatalf("blank update cleared pharmacy name: %q", lead.PharmacyName)
	}
}

func TestMergeVolume(t *testing.T) {
	lead := &PharmacyLead{}
	lead.Merge(Update{EstimatedRxVolume: intPtr(3000)})
	if lead.EstimatedRxVolume == nil || *lead.EstimatedRxVolume != 3000 {
		t.Fatalf("expected volume 3000, got %v", lead.EstimatedRxVolume)
	}
	if lead.Merge(Update{EstimatedRxVolume: intPtr(0)}) {
		t.Fatal("zero volume should be ignored")
	}
	if lead.Merge(Update{EstimatedRxVolume: intPtr(3000)}) {
		t.Fatal("identical volume should not report a change")
	}
	lead.Merge(Update{EstimatedRxVolume: intPtr(4500)})
	if *lead.EstimatedRxVolume != 4500 {
		t.Fatalf("expected later non-empty volume to win, got %d", *lead.EstimatedRxVolume)
	}
}

func TestMergeDoesNotAliasInput(t *testing.T) {
	v := 1200
	lead := &PharmacyLead{}
	lead.Merge(Update{EstimatedRxVolume: &v})
	v = 99
	if *lead.EstimatedRxVolume != 1200 {
		t.Fatal("lead volume must not alias the update")
	}
}

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name string
		lead *PharmacyLead
		want bool
	}{
		{"nil", nil, false},
		{"empty", &PharmacyLead{}, false},
		{"missing volume", &PharmacyLead{PharmacyName: "A", ContactPerson: "B"}, false},
		{"missing contact", &PharmacyLead{PharmacyName: "A", EstimatedRxVolume: intPtr(10)}, false},
		{"all three", &PharmacyLead{PharmacyName: "A", ContactPerson: "B", EstimatedRxVolume: intPtr(10)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lead.IsComplete(); got != tt.want {
				t.Fatalf("IsComplete() = %v, want %v", got, tt.want)
			}
		})
	}
}
