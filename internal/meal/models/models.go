// Package models holds the meal entitlement domain types.
package models

import (
	"fmt"
	"time"
)

// MealSlot names one of the four daily meals a request may select.
type MealSlot string

const (
	SlotBreakfast MealSlot = "breakfast"
	SlotLunch     MealSlot = "lunch"
	SlotSnack     MealSlot = "snack"
	SlotDinner    MealSlot = "dinner"
)

// Selections is the set of meal slots requested for one date. Modeled as a
// fixed struct so it maps one-to-one onto the request row's columns.
type Selections struct {
	Breakfast bool
	Lunch     bool
	Snack     bool
	Dinner    bool
}

// SelectionsFromSlots builds a Selections set, rejecting unknown slot names.
func SelectionsFromSlots(slots []MealSlot) (Selections, error) {
	var s Selections
	for _, slot := range slots {
		switch slot {
		case SlotBreakfast:
			s.Breakfast = true
		case SlotLunch:
			s.Lunch = true
		case SlotSnack:
			s.Snack = true
		case SlotDinner:
			s.Dinner = true
		default:
			return Selections{}, fmt.Errorf("unknown meal slot %q", slot)
		}
	}
	return s, nil
}

// Slots returns the selected slots in menu order.
func (s Selections) Slots() []MealSlot {
	slots := make([]MealSlot, 0, 4)
	if s.Breakfast {
		slots = append(slots, SlotBreakfast)
	}
	if s.Lunch {
		slots = append(slots, SlotLunch)
	}
	if s.Snack {
		slots = append(slots, SlotSnack)
	}
	if s.Dinner {
		slots = append(slots, SlotDinner)
	}
	return slots
}

// EntitlementRequest is one person's meal selection for one date. Unique per
// (PersonID, Date). Once Finalized it is immutable and survives expulsion.
type EntitlementRequest struct {
	PersonID   int64
	Date       time.Time
	Selections Selections
	Finalized  bool
}

// DateOnly truncates t to its calendar date in UTC. All request dates are
// stored and compared at day granularity.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
