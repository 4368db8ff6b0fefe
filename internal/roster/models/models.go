// Package models holds the card registry domain types. Stores persist these;
// services own every state transition.
package models

import (
	"fmt"
	"strings"
	"time"
)

// NaturalKey is the external directory's stable identifier for a holder:
// full name plus group. Surrogate ids (card numbers) are reassignable; the
// natural key is what makes two records "the same" holder across renames.
type NaturalKey struct {
	FullName string
	Group    string
}

func (k NaturalKey) String() string {
	return k.FullName + "/" + k.Group
}

// Validate rejects keys the directory occasionally produces with blank fields.
func (k NaturalKey) Validate() error {
	if strings.TrimSpace(k.FullName) == "" {
		return fmt.Errorf("natural key: full name is empty")
	}
	if strings.TrimSpace(k.Group) == "" {
		return fmt.Errorf("natural key %q: group is empty", k.FullName)
	}
	return nil
}

// CardStatus is a tagged status rather than a bool to leave room for future
// states without a schema change.
type CardStatus string

const (
	CardStatusActive   CardStatus = "active"
	CardStatusInactive CardStatus = "inactive"
)

// CardRecord is the internal mirror of one directory entry. Cards are never
// hard-deleted; disappearance from the directory flips them to inactive.
type CardRecord struct {
	SurrogateID string
	NaturalKey  NaturalKey
	Status      CardStatus
	UpdatedAt   time.Time
}

// ExternalRosterRecord is one row of a directory snapshot. Snapshots are
// produced fresh every run and never persisted.
type ExternalRosterRecord struct {
	NaturalKey  NaturalKey
	SurrogateID string
	Category    string
}

// Validate rejects malformed directory rows before they reach a transaction.
func (r ExternalRosterRecord) Validate() error {
	if err := r.NaturalKey.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.SurrogateID) == "" {
		return fmt.Errorf("record %s: surrogate id is empty", r.NaturalKey)
	}
	return nil
}

// Person is a registered holder linked to a card. Expulsion is one-way: the
// reconciler raises it when the card disappears and nothing lowers it.
type Person struct {
	ID             int64
	NaturalKey     NaturalKey
	SurrogateIDRef string
	Expelled       bool
}

// ResponsibleParty is the parallel identity class for staff of the
// nutrition-responsible department. Populated from the same directory
// snapshot by category marker; plain upsert, no cascades.
type ResponsibleParty struct {
	NaturalKey     NaturalKey
	SurrogateIDRef string
}
