package conversation

import "testing"

var allStates = []State{
	StateInitialGreeting,
	StatePharmacyIdentified,
	StateCollectingLeadInfo,
	StateDiscussingServices,
	StateSchedulingFollowup,
	StateCompleted,
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from  State
		event Event
		want  State
	}{
		{StateInitialGreeting, EventPharmacyFound, StatePharmacyIdentified},
		{StateInitialGreeting, EventPharmacyNotFound, StateCollectingLeadInfo},
		{StatePharmacyIdentified, EventDiscussing, StateDiscussingServices},
		{StatePharmacyIdentified, EventFollowupRequested, StateSchedulingFollowup},
		{StatePharmacyIdentified, EventConversationEnded, StateCompleted},
		{StateCollectingLeadInfo, EventInfoCollected, StateDiscussingServices},
		{StateCollectingLeadInfo, EventFollowupRequested, StateSchedulingFollowup},
		{StateDiscussingServices, EventFollowupRequested, StateSchedulingFollowup},
		{StateDiscussingServices, EventConversationEnded, StateCompleted},
		{StateSchedulingFollowup, EventConversationEnded, StateCompleted},
		{StateSchedulingFollowup, EventDiscussing, StateDiscussingServices},
	}
	if len(tests) != len(transitions) {
		t.Fatalf("table has %d rows, test covers %d", len(transitions), len(tests))
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			if got := Transition(tt.from, tt.event); got != tt.want {
				t.Fatalf("Transition(%s, %s) = %s, want %s", tt.from, tt.event, got, tt.want)
			}
			if !CanTransition(tt.from, tt.event) {
				t.Fatalf("CanTransition(%s, %s) = false", tt.from, tt.event)
			}
		})
	}
}

func TestTransitionUnknownPairIsNoop(t *testing.T) {
	for _, state := range allStates {
		for _, event := range allEvents {
			if CanTransition(state, event) {
				continue
			}
			if got := Transition(state, event); got != state {
				t.Fatalf("Transition(%s, %s) = %s, want unchanged", state, event, got)
			}
		}
	}
	if got := Transition(State("BOGUS"), EventDiscussing); got != State("BOGUS") {
		t.Fatalf("unknown state should pass through unchanged, got %s", got)
	}
}

func TestCompletedIsTerminal(t *testing.T) {
	if events := AvailableEvents(StateCompleted); len(events) != 0 {
		t.Fatalf("expected no events from COMPLETED, got %v", events)
	}
	for _, event := range allEvents {
		if Transition(StateCompleted, event) != StateCompleted {
			t.Fatalf("COMPLETED left via %s", event)
		}
	}
}

func TestAvailableEvents(t *testing.T) {
	got := AvailableEvents(StatePharmacyIdentified)
	want := []Event{EventDiscussing, EventFollowupRequested, EventConversationEnded}
	if len(got) != len(want) {
		t.Fatalf("AvailableEvents = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("AvailableEvents = %v, want %v", got, want)
		}
	}
	for _, state := range allStates {
		for _, event := range AvailableEvents(state) {
			if Transition(state, event) == state {
				t.Fatalf("available event %s does not move %s", event, state)
			}
		}
	}
}

func TestStateValid(t *testing.T) {
	for _, s := range allStates {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if State("NOPE").Valid() {
		t.Fatal("unknown state reported valid")
	}
}
