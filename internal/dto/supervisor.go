package dto

// SupervisorEdgeRequest identifies a collaborator to supervisor edge.
type SupervisorEdgeRequest struct {
	CollaboratorID string `json:"collaboratorId" validate:"required"`
	SupervisorID   string `json:"supervisorId" validate:"required,nefield=CollaboratorID"`
}
