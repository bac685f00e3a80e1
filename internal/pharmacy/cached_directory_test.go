package pharmacy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

type stubDirectory struct {
	byPhone map[string]*Pharmacy
	err     error
	calls   int
}

func (s *stubDirectory) FindByPhone(_ context.Context, phone string) (*Pharmacy, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.byPhone[phone], nil
}

func (s *stubDirectory) List(context.Context) ([]Pharmacy, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []Pharmacy
	for _, p := range s.byPhone {
		out = append(out, *p)
	}
	return out, nil
}

type recordedLookups []string

func (r *recordedLookups) ObserveDirectoryLookup(result string) { *r = append(*r, result) }

func TestCachedDirectoryCachesHits(t *testing.T) {
	stub := &stubDirectory{byPhone: map[string]*Pharmacy{"15551234567": {ID: "1", Name: "Main"}}}
	var lookups recordedLookups
	dir := NewCachedDirectory(stub, NewCache(time.Minute, 10), &lookups, logging.Discard())

	for i := 0; i < 3; i++ {
		p, err := dir.FindByPhone(context.Background(), "15551234567")
		if err != nil || p == nil || p.Name != "Main" {
			t.Fatalf("lookup %d: got %v %v", i, p, err)
		}
	}
	if stub.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", stub.calls)
	}
	want := []string{"miss", "hit", "hit"}
	for i, got := range lookups {
		if got != want[i] {
			t.Fatalf("lookup %d recorded %q, want %q", i, got, want[i])
		}
	}
}

func TestCachedDirectoryDoesNotCacheMisses(t *testing.T) {
	stub := &stubDirectory{byPhone: map[string]*Pharmacy{}}
	var lookups recordedLookups
	dir := NewCachedDirectory(stub, NewCache(time.Minute, 10), &lookups, logging.Discard())

	for i := 0; i < 2; i++ {
		p, err := dir.FindByPhone(context.Background(), "1")
		if err != nil || p != nil {
			t.Fatalf("expected nil, nil; got %v %v", p, err)
		}
	}
	if stub.calls != 2 {
		t.Fatalf("negative results must not be cached, upstream calls=%d", stub.calls)
	}
	if len(lookups) != 2 || lookups[0] != "not_found" {
		t.Fatalf("unexpected lookups %v", lookups)
	}
}

func TestCachedDirectoryPropagatesErrors(t *testing.T) {
	stub := &stubDirectory{err: ErrDirectoryUnavailable}
	var lookups recordedLookups
	dir := NewCachedDirectory(stub, NewCache(time.Minute, 10), &lookups, logging.Discard())

	if _, err := dir.FindByPhone(context.Background(), "1"); !errors.Is(err, ErrDirectoryUnavailable) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if len(lookups) != 1 || lookups[0] != "error" {
		t.Fatalf("unexpected lookups %v", lookups)
	}
}
