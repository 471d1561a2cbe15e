package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timesheet-api/internal/models"
	"github.com/noah-isme/timesheet-api/internal/repository"
	"github.com/noah-isme/timesheet-api/internal/workflow"
)

type sqlmockTxProvider struct {
	db *sqlx.DB
}

func (p *sqlmockTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return p.db.BeginTxx(ctx, opts)
}

// newTxMock returns a provider whose transactions only need Begin/Commit/Rollback expectations.
func newTxMock(t *testing.T) (*sqlmockTxProvider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &sqlmockTxProvider{db: sqlx.NewDb(db, "sqlmock")}, mock
}

// memoryStore mimics the sheet and entry tables, including the editable-parent condition on entry writes.
type memoryStore struct {
	mu      sync.Mutex
	seq     int
	sheets  map[string]*models.TimeSheet
	entries map[string][]models.TimeEntry
	edges   *edgeStub
}

func newMemoryStore(edges *edgeStub) *memoryStore {
	return &memoryStore{
		sheets:  map[string]*models.TimeSheet{},
		entries: map[string][]models.TimeEntry{},
		edges:   edges,
	}
}

func (m *memoryStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memoryStore) put(sheet models.TimeSheet) *models.TimeSheet {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sheet.ID == "" {
		sheet.ID = m.nextID("sheet")
	}
	stored := sheet
	m.sheets[sheet.ID] = &stored
	return &stored
}

func (m *memoryStore) sheet(id string) models.TimeSheet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.sheets[id]
}

func (m *memoryStore) entryCount(sheetID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries[sheetID])
}

func (m *memoryStore) find(collaboratorID string, isoYear, isoWeek int) *models.TimeSheet {
	for _, sheet := range m.sheets {
		if sheet.CollaboratorID == collaboratorID && sheet.ISOYear == isoYear && sheet.ISOWeek == isoWeek {
			return sheet
		}
	}
	return nil
}

func (m *memoryStore) EnsureForWeek(ctx context.Context, exec sqlx.ExtContext, collaboratorID string, isoYear, isoWeek int, now time.Time) (*models.TimeSheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sheet := m.find(collaboratorID, isoYear, isoWeek); sheet != nil {
		copied := *sheet
		return &copied, nil
	}
	sheet := &models.TimeSheet{
		ID:             m.nextID("sheet"),
		CollaboratorID: collaboratorID,
		ISOYear:        isoYear,
		ISOWeek:        isoWeek,
		Status:         models.TimeSheetStatusDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.sheets[sheet.ID] = sheet
	copied := *sheet
	return &copied, nil
}

func (m *memoryStore) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TimeSheet, error) {
	return m.GetByID(ctx, id)
}

func (m *memoryStore) LockForWeek(ctx context.Context, exec sqlx.ExtContext, collaboratorID string, isoYear, isoWeek int) (*models.TimeSheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet := m.find(collaboratorID, isoYear, isoWeek)
	if sheet == nil {
		return nil, sql.ErrNoRows
	}
	copied := *sheet
	return &copied, nil
}

func (m *memoryStore) GetByID(ctx context.Context, id string) (*models.TimeSheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet, ok := m.sheets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *sheet
	return &copied, nil
}

func (m *memoryStore) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, params repository.UpdateTimeSheetStatusParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sheet, ok := m.sheets[params.ID]
	if !ok || sheet.Status != params.From {
		return repository.ErrStaleTimeSheet
	}
	sheet.Status = params.To
	sheet.SubmittedAt = params.SubmittedAt
	sheet.ReviewedBy = params.ReviewedBy
	sheet.ReviewedAt = params.ReviewedAt
	sheet.ReviewNote = params.ReviewNote
	sheet.UpdatedAt = params.UpdatedAt
	return nil
}

func (m *memoryStore) RecomputeTotals(ctx context.Context, exec sqlx.ExtContext, id string, now time.Time) (models.TimeSheetTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var totals models.TimeSheetTotals
	for _, entry := range m.entries[id] {
		totals.TotalHours += entry.Hours
		if entry.Category == models.EntryCategoryChargeable {
			totals.ChargeableHours += entry.Hours
		} else {
			totals.NonChargeableHours += entry.Hours
		}
	}
	sheet := m.sheets[id]
	sheet.TotalHours = totals.TotalHours
	sheet.ChargeableHours = totals.ChargeableHours
	sheet.NonChargeableHours = totals.NonChargeableHours
	sheet.UpdatedAt = now
	return totals, nil
}

func (m *memoryStore) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.sheets, id)
	delete(m.entries, id)
	return nil
}

func (m *memoryStore) List(ctx context.Context, filter models.TimeSheetFilter) ([]models.TimeSheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TimeSheet
	for _, sheet := range m.sheets {
		if len(filter.CollaboratorIDs) > 0 && !containsString(filter.CollaboratorIDs, sheet.CollaboratorID) {
			continue
		}
		if filter.ISOYear != 0 && sheet.ISOYear != filter.ISOYear {
			continue
		}
		if len(filter.Status) > 0 && !containsStatus(filter.Status, sheet.Status) {
			continue
		}
		out = append(out, *sheet)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) ListPendingForSupervisor(ctx context.Context, supervisorID string, limit, offset int) ([]models.TimeSheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TimeSheet
	for _, sheet := range m.sheets {
		if sheet.Status == models.TimeSheetStatusSubmitted && m.edges.has(sheet.CollaboratorID, supervisorID) {
			out = append(out, *sheet)
		}
	}
	return out, nil
}

// memoryEntries is the entry table view of a memoryStore.
type memoryEntries struct {
	store *memoryStore
}

func (e memoryEntries) editable(sheetID string) bool {
	sheet, ok := e.store.sheets[sheetID]
	return ok && workflow.Editable(sheet.Status)
}

func (e memoryEntries) Insert(ctx context.Context, exec sqlx.ExtContext, entry *models.TimeEntry) error {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	if !e.editable(entry.TimeSheetID) {
		return repository.ErrTimeSheetLocked
	}
	entry.ID = e.store.nextID("entry")
	e.store.entries[entry.TimeSheetID] = append(e.store.entries[entry.TimeSheetID], *entry)
	return nil
}

func (e memoryEntries) Update(ctx context.Context, exec sqlx.ExtContext, entry *models.TimeEntry) error {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	if !e.editable(entry.TimeSheetID) {
		return repository.ErrTimeSheetLocked
	}
	for i, existing := range e.store.entries[entry.TimeSheetID] {
		if existing.ID == entry.ID {
			e.store.entries[entry.TimeSheetID][i] = *entry
			return nil
		}
	}
	return repository.ErrTimeSheetLocked
}

func (e memoryEntries) Delete(ctx context.Context, exec sqlx.ExtContext, sheetID, entryID string) error {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	if !e.editable(sheetID) {
		return repository.ErrTimeSheetLocked
	}
	entries := e.store.entries[sheetID]
	for i, existing := range entries {
		if existing.ID == entryID {
			e.store.entries[sheetID] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return repository.ErrTimeSheetLocked
}

func (e memoryEntries) DeleteBySheet(ctx context.Context, exec sqlx.ExtContext, sheetID string) (int64, error) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	if !e.editable(sheetID) {
		return 0, repository.ErrTimeSheetLocked
	}
	n := int64(len(e.store.entries[sheetID]))
	delete(e.store.entries, sheetID)
	return n, nil
}

func (e memoryEntries) GetInSheet(ctx context.Context, exec sqlx.ExtContext, sheetID, entryID string) (*models.TimeEntry, error) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	for _, existing := range e.store.entries[sheetID] {
		if existing.ID == entryID {
			copied := existing
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (e memoryEntries) ListBySheet(ctx context.Context, exec sqlx.ExtContext, sheetID string) ([]models.TimeEntry, error) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return append([]models.TimeEntry(nil), e.store.entries[sheetID]...), nil
}

func (e memoryEntries) DayTotal(ctx context.Context, exec sqlx.ExtContext, sheetID string, date time.Time) (float64, error) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	var total float64
	for _, existing := range e.store.entries[sheetID] {
		if existing.Date.Equal(date) {
			total += existing.Hours
		}
	}
	return total, nil
}

type collaboratorLookupStub struct {
	byUser map[string]*models.Collaborator
	err    error
}

func (c collaboratorLookupStub) FindByUserID(ctx context.Context, userID string) (*models.Collaborator, error) {
	if c.err != nil {
		return nil, c.err
	}
	collaborator, ok := c.byUser[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return collaborator, nil
}

type edgeStub struct {
	mu    sync.Mutex
	pairs map[[2]string]bool
	err   error
}

func newEdgeStub(pairs ...[2]string) *edgeStub {
	e := &edgeStub{pairs: map[[2]string]bool{}}
	for _, p := range pairs {
		e.pairs[p] = true
	}
	return e
}

func (e *edgeStub) has(collaboratorID, supervisorID string) bool {
	return e.pairs[[2]string{collaboratorID, supervisorID}]
}

func (e *edgeStub) Exists(ctx context.Context, exec sqlx.ExtContext, collaboratorID, supervisorID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return false, e.err
	}
	return e.has(collaboratorID, supervisorID), nil
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func containsStatus(values []models.TimeSheetStatus, v models.TimeSheetStatus) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
