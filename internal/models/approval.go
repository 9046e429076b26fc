package models

import "time"

// ReportApproval records the CS and CP decisions on a report. Nil decision fields mean no action yet.
type ReportApproval struct {
	ID            string     `db:"id" json:"id"`
	ReportID      string     `db:"report_id" json:"report_id"`
	CSStudentID   *string    `db:"cs_student_id" json:"cs_student_id,omitempty"`
	CPStudentID   *string    `db:"cp_student_id" json:"cp_student_id,omitempty"`
	ApprovedByCS  *bool      `db:"approved_by_cs" json:"approved_by_cs"`
	ApprovedByCP  *bool      `db:"approved_by_cp" json:"approved_by_cp"`
	CommentsCS    *string    `db:"comments_cs" json:"comments_cs,omitempty"`
	CommentsCP    *string    `db:"comments_cp" json:"comments_cp,omitempty"`
	ApprovedAtCS  *time.Time `db:"approved_at_cs" json:"approved_at_cs,omitempty"`
	ApprovedAtCP  *time.Time `db:"approved_at_cp" json:"approved_at_cp,omitempty"`
	ApprovalCatCS *string    `db:"approval_cat_cs" json:"approval_cat_cs,omitempty"`
	ApprovalCatCP *string    `db:"approval_cat_cp" json:"approval_cat_cp,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// ApprovalAction is one role's recorded decision.
type ApprovalAction struct {
	Approved *bool      `json:"approved"`
	Comments *string    `json:"comments,omitempty"`
	ActedAt  *time.Time `json:"acted_at,omitempty"`
}

// Acted reports whether a decision exists.
func (a ApprovalAction) Acted() bool {
	return a.Approved != nil
}

// Action returns the decision recorded for role. Non-approving roles yield an empty action.
func (a *ReportApproval) Action(role StudentRole) ApprovalAction {
	if a == nil {
		return ApprovalAction{}
	}
	switch role {
	case StudentRoleCS:
		return ApprovalAction{Approved: a.ApprovedByCS, Comments: a.CommentsCS, ActedAt: a.ApprovedAtCS}
	case StudentRoleCP:
		return ApprovalAction{Approved: a.ApprovedByCP, Comments: a.CommentsCP, ActedAt: a.ApprovedAtCP}
	default:
		return ApprovalAction{}
	}
}

// Record writes the decision fields for role.
func (a *ReportApproval) Record(role StudentRole, studentID string, approved bool, comments string, category *string, at time.Time) {
	switch role {
	case StudentRoleCS:
		a.CSStudentID = &studentID
		a.ApprovedByCS = &approved
		a.CommentsCS = &comments
		a.ApprovedAtCS = &at
		a.ApprovalCatCS = category
	case StudentRoleCP:
		a.CPStudentID = &studentID
		a.ApprovedByCP = &approved
		a.CommentsCP = &comments
		a.ApprovedAtCP = &at
		a.ApprovalCatCP = category
	}
	a.UpdatedAt = at
}

// OtherRole returns the counterpart signatory.
func OtherRole(role StudentRole) StudentRole {
	if role == StudentRoleCS {
		return StudentRoleCP
	}
	return StudentRoleCS
}
