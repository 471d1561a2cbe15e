// Package workflow holds the time sheet lifecycle rules: the transition table, its guards and
// the submission window. Everything here is pure; callers supply the facts the guards need.
package workflow

import (
	"fmt"

	"github.com/noah-isme/timesheet-api/internal/models"
)

// Event is an action requested against a time sheet.
type Event string

const (
	EventSave    Event = "save"
	EventSubmit  Event = "submit"
	EventApprove Event = "approve"
	EventReject  Event = "reject"
)

// Guard names a precondition a transition depends on.
type Guard string

const (
	GuardSourceState      Guard = "source_state"
	GuardImmutable        Guard = "immutable"
	GuardEntriesValid     Guard = "entries_valid"
	GuardHasEntries       Guard = "has_entries"
	GuardSubmissionWindow Guard = "submission_window"
	GuardSupervisor       Guard = "authorized_supervisor"
)

// Violation reports a refused transition and the guard that refused it.
type Violation struct {
	From  models.TimeSheetStatus
	Event Event
	Guard Guard
}

// Error implements error.
func (v *Violation) Error() string {
	switch v.Guard {
	case GuardImmutable:
		return fmt.Sprintf("cannot %s: time sheet is %s and immutable", v.Event, v.From)
	case GuardSourceState:
		return fmt.Sprintf("cannot %s a %s time sheet", v.Event, v.From)
	case GuardSubmissionWindow:
		return fmt.Sprintf("cannot %s: the current week opens for submission on Friday", v.Event)
	case GuardHasEntries:
		return fmt.Sprintf("cannot %s: time sheet has no entries", v.Event)
	case GuardEntriesValid:
		return fmt.Sprintf("cannot %s: time sheet has invalid entries", v.Event)
	default:
		return fmt.Sprintf("cannot %s a %s time sheet: guard %s not met", v.Event, v.From, v.Guard)
	}
}

// Facts are the guard inputs evaluated by the caller under the sheet lock.
type Facts struct {
	EntriesValid       bool
	HasEntries         bool
	SubmissionAllowed  bool
	AuthorizedApprover bool
}

var transitions = map[models.TimeSheetStatus]map[Event]models.TimeSheetStatus{
	models.TimeSheetStatusDraft: {
		EventSave:   models.TimeSheetStatusSaved,
		EventSubmit: models.TimeSheetStatusSubmitted,
	},
	models.TimeSheetStatusSaved: {
		EventSave:   models.TimeSheetStatusSaved,
		EventSubmit: models.TimeSheetStatusSubmitted,
	},
	models.TimeSheetStatusRejected: {
		EventSave:   models.TimeSheetStatusSaved,
		EventSubmit: models.TimeSheetStatusSubmitted,
	},
	models.TimeSheetStatusSubmitted: {
		EventApprove: models.TimeSheetStatusApproved,
		EventReject:  models.TimeSheetStatusRejected,
	},
}

// Target returns the state event leads to from, ignoring guards.
func Target(from models.TimeSheetStatus, event Event) (models.TimeSheetStatus, bool) {
	to, ok := transitions[from][event]
	return to, ok
}

// Apply validates event against the transition table and guards and returns the next status.
func Apply(from models.TimeSheetStatus, event Event, facts Facts) (models.TimeSheetStatus, error) {
	if from == models.TimeSheetStatusApproved {
		return from, &Violation{From: from, Event: event, Guard: GuardImmutable}
	}
	to, ok := Target(from, event)
	if !ok {
		return from, &Violation{From: from, Event: event, Guard: GuardSourceState}
	}

	switch event {
	case EventSave:
		if !facts.EntriesValid {
			return from, &Violation{From: from, Event: event, Guard: GuardEntriesValid}
		}
	case EventSubmit:
		if !facts.SubmissionAllowed {
			return from, &Violation{From: from, Event: event, Guard: GuardSubmissionWindow}
		}
		if !facts.HasEntries {
			return from, &Violation{From: from, Event: event, Guard: GuardHasEntries}
		}
	case EventApprove, EventReject:
		if !facts.AuthorizedApprover {
			return from, &Violation{From: from, Event: event, Guard: GuardSupervisor}
		}
	}
	return to, nil
}

// Editable reports whether entries may be added, changed or removed in status s.
func Editable(s models.TimeSheetStatus) bool {
	switch s {
	case models.TimeSheetStatusDraft, models.TimeSheetStatusSaved, models.TimeSheetStatusRejected:
		return true
	}
	return false
}

// EditableStatuses lists the statuses accepted by Editable, for use in SQL predicates.
func EditableStatuses() []models.TimeSheetStatus {
	return []models.TimeSheetStatus{
		models.TimeSheetStatusDraft,
		models.TimeSheetStatusSaved,
		models.TimeSheetStatusRejected,
	}
}
