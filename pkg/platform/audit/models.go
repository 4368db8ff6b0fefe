package audit

import "time"

// Event is emitted from reconciliation and entitlement logic to capture key
// state transitions. Keep it transport-agnostic so publishers can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	// RunID correlates all events emitted by one job run.
	RunID  string `json:"run_id"`
	Job    string `json:"job"`
	Action Action `json:"action"`
	// FullName and Group identify the natural key the event concerns, when any.
	FullName string `json:"full_name,omitempty"`
	Group    string `json:"group,omitempty"`
	// SurrogateID is the card number after the action; OldSurrogateID is set
	// only for renames.
	SurrogateID    string `json:"surrogate_id,omitempty"`
	OldSurrogateID string `json:"old_surrogate_id,omitempty"`
	PersonID       int64  `json:"person_id,omitempty"`
	// Count carries row counts for sweep-style actions (deactivations, purges,
	// finalizations).
	Count int64 `json:"count,omitempty"`
}

// Action names an auditable state transition.
type Action string

const (
	ActionCardRegistered    Action = "card_registered"
	ActionCardRenamed       Action = "card_renamed"
	ActionCardReactivated   Action = "card_reactivated"
	ActionCardsDeactivated  Action = "cards_deactivated"
	ActionCardCorrected     Action = "card_corrected"
	ActionPersonExpelled    Action = "person_expelled"
	ActionRequestsFinalized Action = "requests_finalized"
)
