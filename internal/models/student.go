package models

import "time"

// StudentRole is the representative duty a student holds within a class.
type StudentRole string

const (
	StudentRoleCS StudentRole = "CS"
	StudentRoleCP StudentRole = "CP"
	StudentRoleCC StudentRole = "CC"
	StudentRoleWS StudentRole = "WS"
)

// RepresentativeRoles lists the roles counted in representative statistics.
var RepresentativeRoles = []StudentRole{StudentRoleCS, StudentRoleCP, StudentRoleCC, StudentRoleWS}

// Valid reports whether r is a known representative role.
func (r StudentRole) Valid() bool {
	for _, known := range RepresentativeRoles {
		if r == known {
			return true
		}
	}
	return false
}

// CanApprove reports whether the role signs off class reports.
func (r StudentRole) CanApprove() bool {
	return r == StudentRoleCS || r == StudentRoleCP
}

// Student is the profile extension of a STUDENT user.
type Student struct {
	ID          string       `db:"id" json:"id"`
	UserID      string       `db:"user_id" json:"user_id"`
	ClassID     *string      `db:"class_id" json:"class_id,omitempty"`
	StudentRole *StudentRole `db:"student_role" json:"student_role,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// StudentProfile joins a student with its user and class for listings.
type StudentProfile struct {
	Student
	Name       string     `db:"name" json:"name"`
	Email      string     `db:"email" json:"email"`
	UserStatus UserStatus `db:"user_status" json:"status"`
	ClassName  *string    `db:"class_name" json:"class_name,omitempty"`
	JoinedAt   time.Time  `db:"user_created_at" json:"joined_at"`
}
