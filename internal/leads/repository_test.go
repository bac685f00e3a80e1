package leads

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryRepositoryRoundTrip(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	got, err := repo.FindByPhone(ctx, "5551234567")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for unknown phone; got %v %v", got, err)
	}

	lead := &PharmacyLead{PhoneNumber: "5551234567", PharmacyName: "A"}
	if err := repo.Save(ctx, lead); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if lead.ID == 0 || lead.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps to be assigned: %+v", lead)
	}
	firstID := lead.ID

	stored, _ := repo.FindByPhone(ctx, "5551234567")
	stored.Merge(Update{ContactPerson: "B"})
	if err := repo.Save(ctx, stored); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	if stored.ID != firstID {
		t.Fatalf("phone is the key; expected id %d, got %d", firstID, stored.ID)
	}

	final, _ := repo.FindByPhone(ctx, "5551234567")
	if final.PharmacyName != "A" || final.ContactPerson != "B" {
		t.Fatalf("unexpected stored lead %+v", final)
	}
}

func TestInMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	_ = repo.Save(ctx, &PharmacyLead{PhoneNumber: "1", PharmacyName: "A"})

	got, _ := repo.FindByPhone(ctx, "1")
	got.PharmacyName = "changed"

	again, _ := repo.FindByPhone(ctx, "1")
	if again.PharmacyName != "A" {
		t.Fatal("mutating a returned lead must not change the store")
	}
}

func TestInMemoryRepositoryRequiresPhone(t *testing.T) {
	if err := NewInMemoryRepository().Save(context.Background(), &PharmacyLead{}); !errors.Is(err, ErrMissingPhone) {
		t.Fatalf("expected ErrMissingPhone, got %v", err)
	}
}
