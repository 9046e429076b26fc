package models

import "time"

// ReviewStatus is the administrative decision recorded on a review row.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "PENDING"
	ReviewStatusApproved ReviewStatus = "APPROVED"
	ReviewStatusReviewed ReviewStatus = "REVIEWED"
	ReviewStatusRejected ReviewStatus = "REJECTED"
)

// ReportReview is an append-only audit of administrative decisions.
type ReportReview struct {
	ID         string       `db:"id" json:"id"`
	ReportID   string       `db:"report_id" json:"report_id"`
	AdminID    *string      `db:"admin_id" json:"admin_id,omitempty"`
	Status     ReviewStatus `db:"status" json:"status"`
	Comments   *string      `db:"comments" json:"comments,omitempty"`
	ReviewedAt *time.Time   `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}
