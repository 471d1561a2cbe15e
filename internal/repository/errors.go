package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/timesheet-api/internal/workflow"
)

var (
	// ErrTimeSheetLocked is returned when an entry write targets a sheet that is no longer editable.
	ErrTimeSheetLocked = errors.New("time sheet is not editable")
	// ErrStaleTimeSheet is returned when a status update finds the sheet in another status than expected.
	ErrStaleTimeSheet = errors.New("time sheet status changed concurrently")
	// ErrSelfSupervision is returned when a collaborator is registered as their own supervisor.
	ErrSelfSupervision = errors.New("collaborator cannot supervise themselves")
	// ErrUnknownCollaborator is returned when a relation references a missing collaborator.
	ErrUnknownCollaborator = errors.New("unknown collaborator")
)

const (
	pqCheckViolation      = "23514"
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

// editableParent restricts entry writes to sheets whose status still allows edits.
var editableParent = func() string {
	statuses := workflow.EditableStatuses()
	quoted := make([]string, 0, len(statuses))
	for _, s := range statuses {
		quoted = append(quoted, fmt.Sprintf("'%s'", s))
	}
	return "ts.status IN (" + strings.Join(quoted, ", ") + ")"
}()

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func target(db *sqlx.DB, exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}
