package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timesheet-api/internal/models"
)

func allFacts() Facts {
	return Facts{EntriesValid: true, HasEntries: true, SubmissionAllowed: true, AuthorizedApprover: true}
}

func TestApplyTransitionTable(t *testing.T) {
	cases := []struct {
		from  models.TimeSheetStatus
		event Event
		to    models.TimeSheetStatus
	}{
		{models.TimeSheetStatusDraft, EventSave, models.TimeSheetStatusSaved},
		{models.TimeSheetStatusSaved, EventSave, models.TimeSheetStatusSaved},
		{models.TimeSheetStatusDraft, EventSubmit, models.TimeSheetStatusSubmitted},
		{models.TimeSheetStatusSaved, EventSubmit, models.TimeSheetStatusSubmitted},
		{models.TimeSheetStatusSubmitted, EventApprove, models.TimeSheetStatusApproved},
		{models.TimeSheetStatusSubmitted, EventReject, models.TimeSheetStatusRejected},
		{models.TimeSheetStatusRejected, EventSave, models.TimeSheetStatusSaved},
		{models.TimeSheetStatusRejected, EventSubmit, models.TimeSheetStatusSubmitted},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.event), func(t *testing.T) {
			to, err := Apply(tc.from, tc.event, allFacts())
			require.NoError(t, err)
			assert.Equal(t, tc.to, to)
		})
	}
}

func TestApplyRefusesOutsideTable(t *testing.T) {
	cases := []struct {
		from  models.TimeSheetStatus
		event Event
		guard Guard
	}{
		{models.TimeSheetStatusDraft, EventApprove, GuardSourceState},
		{models.TimeSheetStatusSaved, EventReject, GuardSourceState},
		{models.TimeSheetStatusSubmitted, EventSave, GuardSourceState},
		{models.TimeSheetStatusSubmitted, EventSubmit, GuardSourceState},
		{models.TimeSheetStatusRejected, EventApprove, GuardSourceState},
		{models.TimeSheetStatusApproved, EventSave, GuardImmutable},
		{models.TimeSheetStatusApproved, EventSubmit, GuardImmutable},
		{models.TimeSheetStatusApproved, EventApprove, GuardImmutable},
		{models.TimeSheetStatusApproved, EventReject, GuardImmutable},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.event), func(t *testing.T) {
			to, err := Apply(tc.from, tc.event, allFacts())
			require.Error(t, err)
			assert.Equal(t, tc.from, to)
			var violation *Violation
			require.True(t, errors.As(err, &violation))
			assert.Equal(t, tc.guard, violation.Guard)
			assert.Equal(t, tc.event, violation.Event)
		})
	}
}

func TestApplyGuards(t *testing.T) {
	facts := allFacts()
	facts.EntriesValid = false
	_, err := Apply(models.TimeSheetStatusDraft, EventSave, facts)
	assertGuard(t, err, GuardEntriesValid)

	facts = allFacts()
	facts.SubmissionAllowed = false
	_, err = Apply(models.TimeSheetStatusSaved, EventSubmit, facts)
	assertGuard(t, err, GuardSubmissionWindow)

	facts = allFacts()
	facts.HasEntries = false
	_, err = Apply(models.TimeSheetStatusDraft, EventSubmit, facts)
	assertGuard(t, err, GuardHasEntries)

	facts = allFacts()
	facts.AuthorizedApprover = false
	_, err = Apply(models.TimeSheetStatusSubmitted, EventApprove, facts)
	assertGuard(t, err, GuardSupervisor)
	_, err = Apply(models.TimeSheetStatusSubmitted, EventReject, facts)
	assertGuard(t, err, GuardSupervisor)
}

func TestRejectedSheetCanBeResubmitted(t *testing.T) {
	status, err := Apply(models.TimeSheetStatusSubmitted, EventReject, allFacts())
	require.NoError(t, err)
	require.True(t, Editable(status))

	status, err = Apply(status, EventSubmit, allFacts())
	require.NoError(t, err)
	assert.Equal(t, models.TimeSheetStatusSubmitted, status)
}

func TestEditable(t *testing.T) {
	assert.True(t, Editable(models.TimeSheetStatusDraft))
	assert.True(t, Editable(models.TimeSheetStatusSaved))
	assert.True(t, Editable(models.TimeSheetStatusRejected))
	assert.False(t, Editable(models.TimeSheetStatusSubmitted))
	assert.False(t, Editable(models.TimeSheetStatusApproved))
	assert.Len(t, EditableStatuses(), 3)
}

func assertGuard(t *testing.T, err error, guard Guard) {
	t.Helper()
	var violation *Violation
	require.True(t, errors.As(err, &violation), "expected violation, got %v", err)
	assert.Equal(t, guard, violation.Guard)
	assert.NotEmpty(t, violation.Error())
}

// 2026-10-12 is a Monday.
var (
	currentMonday = time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	lastMonday    = time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)
	nextMonday    = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	wednesday     = time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)
	thursdayLate  = time.Date(2026, 10, 15, 23, 59, 0, 0, time.UTC)
	friday        = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	saturday      = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	sunday        = time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC)
)

func TestCanSubmit(t *testing.T) {
	draft := models.TimeSheetStatusDraft
	cases := []struct {
		name      string
		weekStart time.Time
		status    models.TimeSheetStatus
		today     time.Time
		want      bool
	}{
		{"current week midweek", currentMonday, draft, wednesday, false},
		{"current week thursday night", currentMonday, draft, thursdayLate, false},
		{"current week friday", currentMonday, draft, friday, true},
		{"current week saturday", currentMonday, draft, saturday, true},
		{"current week sunday", currentMonday, draft, sunday, true},
		{"current week monday", currentMonday, draft, currentMonday, false},
		{"past week midweek", lastMonday, draft, wednesday, true},
		{"past week on monday", lastMonday, draft, currentMonday, true},
		{"future week midweek", nextMonday, draft, wednesday, false},
		{"future week friday", nextMonday, draft, friday, true},
		{"saved", lastMonday, models.TimeSheetStatusSaved, wednesday, true},
		{"rejected", lastMonday, models.TimeSheetStatusRejected, wednesday, true},
		{"submitted", lastMonday, models.TimeSheetStatusSubmitted, wednesday, false},
		{"approved", lastMonday, models.TimeSheetStatusApproved, friday, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanSubmit(tc.weekStart, tc.status, tc.today))
			assert.Equal(t, tc.want, CanSubmit(tc.weekStart, tc.status, tc.today), "must be deterministic")
		})
	}
}

func TestSubmissionGuardNames(t *testing.T) {
	assert.Equal(t, GuardSubmissionWindow, SubmissionGuard(currentMonday, models.TimeSheetStatusDraft, wednesday))
	assert.Equal(t, GuardSourceState, SubmissionGuard(lastMonday, models.TimeSheetStatusSubmitted, friday))
	assert.Equal(t, GuardImmutable, SubmissionGuard(lastMonday, models.TimeSheetStatusApproved, friday))
	assert.Equal(t, Guard(""), SubmissionGuard(lastMonday, models.TimeSheetStatusDraft, wednesday))
}

func TestCanSubmitUsesLocalCalendarOfToday(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// Thursday 20:00 UTC is already Friday 05:00 in Tokyo.
	today := time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC).In(tokyo)
	assert.True(t, CanSubmit(currentMonday, models.TimeSheetStatusDraft, today))
	assert.False(t, CanSubmit(currentMonday, models.TimeSheetStatusDraft, today.In(time.UTC)))
}

func TestWeekBoundaries(t *testing.T) {
	w, err := ParseWeek("2026-W42")
	require.NoError(t, err)
	assert.Equal(t, currentMonday, w.Start())
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), w.End())
	assert.True(t, w.Contains(sunday))
	assert.False(t, w.Contains(nextMonday))
	assert.Equal(t, w, WeekOf(wednesday))
	assert.Equal(t, "2026-W42", w.Key())

	// 2021-01-01 belongs to the last ISO week of 2020.
	assert.Equal(t, Week{Year: 2020, Number: 53}, WeekOf(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
	first, err := ParseWeek("2025-W01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), first.Start())
}

func TestParseWeekRejectsInvalidKeys(t *testing.T) {
	for _, key := range []string{"", "2026-42", "2026-W4", "2026-W00", "2026-W54", "2025-W53", "2026-W42x"} {
		_, err := ParseWeek(key)
		assert.Error(t, err, key)
	}
	_, err := ParseWeek("2020-W53")
	assert.NoError(t, err)
}

func TestMondayOf(t *testing.T) {
	assert.Equal(t, currentMonday, MondayOf(sunday))
	assert.Equal(t, currentMonday, MondayOf(currentMonday))
	assert.Equal(t, currentMonday, MondayOf(wednesday))
}
