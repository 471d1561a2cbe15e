package models

import "time"

// Collaborator is the staff member who owns time sheets and may supervise others.
type Collaborator struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"fullName"`
	UserID    *string   `db:"user_id" json:"userId,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// SupervisorRelation authorises SupervisorID to review CollaboratorID's time sheets.
type SupervisorRelation struct {
	CollaboratorID   string    `db:"collaborator_id" json:"collaboratorId"`
	SupervisorID     string    `db:"supervisor_id" json:"supervisorId"`
	CollaboratorName string    `db:"collaborator_name" json:"collaboratorName,omitempty"`
	SupervisorName   string    `db:"supervisor_name" json:"supervisorName,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}
