package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReportStatus enumerates the lifecycle states of an inspection report.
type ReportStatus string

const (
	ReportStatusDraft       ReportStatus = "DRAFT"
	ReportStatusSubmitted   ReportStatus = "SUBMITTED"
	ReportStatusUnderReview ReportStatus = "UNDER_REVIEW"
	ReportStatusPartial     ReportStatus = "PARTIAL"
	ReportStatusApproved    ReportStatus = "APPROVED"
	ReportStatusReviewed    ReportStatus = "REVIEWED"
	ReportStatusRejected    ReportStatus = "REJECTED"
)

// Resolved reports whether an administrator closed the report.
func (s ReportStatus) Resolved() bool {
	return s == ReportStatusApproved || s == ReportStatusReviewed
}

// DefaultReportCategory is applied when a submission omits its category.
const DefaultReportCategory = "ONTIME"

// EvaluationStatus is the outcome recorded for one inspected item.
type EvaluationStatus string

const (
	EvaluationGood    EvaluationStatus = "GOOD"
	EvaluationBad     EvaluationStatus = "BAD"
	EvaluationFlagged EvaluationStatus = "FLAGGED"
)

// ParseEvaluationStatus normalises raw input. An empty value means not yet recorded.
func ParseEvaluationStatus(raw string) (EvaluationStatus, bool) {
	status := EvaluationStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case "", EvaluationGood, EvaluationBad, EvaluationFlagged:
		return status, true
	default:
		return "", false
	}
}

// ItemEvaluation is one entry of a report's ordered evaluation list.
type ItemEvaluation struct {
	ItemID  string           `json:"itemId"`
	Name    string           `json:"name"`
	Status  EvaluationStatus `json:"status"`
	Comment string           `json:"comment,omitempty"`
}

// Recorded reports whether the item received any terminal status.
func (e ItemEvaluation) Recorded() bool {
	status, _ := ParseEvaluationStatus(string(e.Status))
	return status != ""
}

// Problem reports whether the item was marked BAD or FLAGGED.
func (e ItemEvaluation) Problem() bool {
	status, _ := ParseEvaluationStatus(string(e.Status))
	return status == EvaluationBad || status == EvaluationFlagged
}

// ItemEvaluations is persisted as a JSONB array.
type ItemEvaluations []ItemEvaluation

// Value marshals evaluations to JSON for persistence.
func (e ItemEvaluations) Value() (driver.Value, error) {
	if e == nil {
		e = ItemEvaluations{}
	}
	data, err := json.Marshal([]ItemEvaluation(e))
	if err != nil {
		return nil, fmt.Errorf("marshal item evaluations: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the evaluation list.
func (e *ItemEvaluations) Scan(value interface{}) error {
	if value == nil {
		*e = ItemEvaluations{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ItemEvaluations", value)
	}
	if len(data) == 0 {
		*e = ItemEvaluations{}
		return nil
	}
	var items []ItemEvaluation
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("unmarshal item evaluations: %w", err)
	}
	*e = items
	return nil
}

// CompletionRate is the fraction of items carrying a recorded status.
func (e ItemEvaluations) CompletionRate() float64 {
	if len(e) == 0 {
		return 0
	}
	recorded := 0
	for _, item := range e {
		if item.Recorded() {
			recorded++
		}
	}
	return float64(recorded) / float64(len(e))
}

// HasProblem reports whether any item was marked BAD or FLAGGED.
func (e ItemEvaluations) HasProblem() bool {
	for _, item := range e {
		if item.Problem() {
			return true
		}
	}
	return false
}

// Report is a daily classroom inspection submitted by a student.
type Report struct {
	ID             string          `db:"id" json:"id"`
	Title          string          `db:"title" json:"title"`
	ClassID        string          `db:"class_id" json:"class_id"`
	ReporterID     string          `db:"reporter_id" json:"reporter_id"`
	ItemEvaluated  ItemEvaluations `db:"item_evaluated" json:"item_evaluated"`
	GeneralComment string          `db:"general_comment" json:"general_comment"`
	Category       string          `db:"category" json:"category"`
	Status         ReportStatus    `db:"status" json:"status"`
	SubmissionDate time.Time       `db:"submission_date" json:"submission_date"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`

	ClassName     string `db:"class_name" json:"class_name,omitempty"`
	ReporterName  string `db:"reporter_name" json:"reporter_name,omitempty"`
	ReporterEmail string `db:"reporter_email" json:"-"`

	Approval *ReportApproval `db:"-" json:"approval,omitempty"`
	Reviews  []ReportReview  `db:"-" json:"reviews,omitempty"`
}

// Flagged applies the union rule: rejected, or any problem item.
func (r *Report) Flagged() bool {
	return r.Status == ReportStatusRejected || r.ItemEvaluated.HasProblem()
}

// ReportFilter narrows report listings.
type ReportFilter struct {
	ClassID   string
	Statuses  []ReportStatus
	From      *time.Time
	To        *time.Time
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
