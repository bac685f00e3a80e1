package conversation

// State is the fine-grained stage of a conversation.
type State string

const (
	StateInitialGreeting    State = "INITIAL_GREETING"
	StatePharmacyIdentified State = "PHARMACY_IDENTIFIED"
	StateCollectingLeadInfo State = "COLLECTING_LEAD_INFO"
	StateDiscussingServices State = "DISCUSSING_SERVICES"
	StateSchedulingFollowup State = "SCHEDULING_FOLLOWUP"
	StateCompleted          State = "COMPLETED"
)

// Event drives state transitions.
type Event string

const (
	EventPharmacyFound     Event = "PHARMACY_FOUND"
	EventPharmacyNotFound  Event = "PHARMACY_NOT_FOUND"
	EventInfoCollected     Event = "INFO_COLLECTED"
	EventDiscussing        Event = "DISCUSSING"
	EventFollowupRequested Event = "FOLLOWUP_REQUESTED"
	EventConversationEnded Event = "CONVERSATION_ENDED"
)

// allEvents fixes the order AvailableEvents reports in.
var allEvents = []Event{
	EventPharmacyFound,
	EventPharmacyNotFound,
	EventInfoCollected,
	EventDiscussing,
	EventFollowupRequested,
	EventConversationEnded,
}

type transitionKey struct {
	from  State
	event Event
}

var transitions = map[transitionKey]State{
	{StateInitialGreeting, EventPharmacyFound}:        StatePharmacyIdentified,
	{StateInitialGreeting, EventPharmacyNotFound}:     StateCollectingLeadInfo,
	{StatePharmacyIdentified, EventDiscussing}:        StateDiscussingServices,
	{StatePharmacyIdentified, EventFollowupRequested}: StateSchedulingFollowup,
	{StatePharmacyIdentified, EventConversationEnded}: StateCompleted,
	{StateCollectingLeadInfo, EventInfoCollected}:     StateDiscussingServices,
	{StateCollectingLeadInfo, EventFollowupRequested}: StateSchedulingFollowup,
	{StateDiscussingServices, EventFollowupRequested}: StateSchedulingFollowup,
	{StateDiscussingServices, EventConversationEnded}: StateCompleted,
	{StateSchedulingFollowup, EventConversationEnded}: StateCompleted,
	{StateSchedulingFollowup, EventDiscussing}:        StateDiscussingServices,
}

// Transition returns the state reached by applying event to state. Pairs not
// in the table leave the state unchanged.
func Transition(state State, event Event) State {
	if next, ok := transitions[transitionKey{state, event}]; ok {
		return next
	}
	return state
}

// CanTransition reports whether (state, event) is in the table.
func CanTransition(state State, event Event) bool {
	_, ok := transitions[transitionKey{state, event}]
	return ok
}

// AvailableEvents lists the events accepted from state. COMPLETED accepts none.
func AvailableEvents(state State) []Event {
	var out []Event
	for _, event := range allEvents {
		if CanTransition(state, event) {
			out = append(out, event)
		}
	}
	return out
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateInitialGreeting, StatePharmacyIdentified, StateCollectingLeadInfo,
		StateDiscussingServices, StateSchedulingFollowup, StateCompleted:
		return true
	}
	return false
}
