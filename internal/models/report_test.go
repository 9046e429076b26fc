package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvaluationStatus(t *testing.T) {
	status, ok := ParseEvaluationStatus(" bad ")
	require.True(t, ok)
	assert.Equal(t, EvaluationBad, status)

	status, ok = ParseEvaluationStatus("")
	require.True(t, ok)
	assert.Equal(t, EvaluationStatus(""), status)

	_, ok = ParseEvaluationStatus("broken")
	assert.False(t, ok)
}

func TestItemEvaluationsScanAndRates(t *testing.T) {
	var evals ItemEvaluations
	require.NoError(t, evals.Scan([]byte(`[{"itemId":"i1","name":"Fan","status":"GOOD"},{"itemId":"i2","name":"Lamp","status":"flagged"},{"itemId":"i3","name":"Door","status":""}]`)))
	require.Len(t, evals, 3)

	assert.InDelta(t, 2.0/3.0, evals.CompletionRate(), 1e-9)
	assert.True(t, evals.HasProblem())
	assert.Equal(t, 0.0, ItemEvaluations{}.CompletionRate())

	require.NoError(t, evals.Scan(nil))
	assert.Empty(t, evals)
	assert.Error(t, evals.Scan(42))
}

func TestReportFlaggedUnionRule(t *testing.T) {
	clean := &Report{Status: ReportStatusRejected}
	assert.True(t, clean.Flagged())

	withBad := &Report{Status: ReportStatusSubmitted, ItemEvaluated: ItemEvaluations{{ItemID: "i1", Status: EvaluationBad}}}
	assert.True(t, withBad.Flagged())

	ok := &Report{Status: ReportStatusApproved, ItemEvaluated: ItemEvaluations{{ItemID: "i1", Status: EvaluationGood}}}
	assert.False(t, ok.Flagged())
}

func TestApprovalRecordAndAction(t *testing.T) {
	approval := &ReportApproval{ReportID: "r1"}
	assert.False(t, approval.Action(StudentRoleCS).Acted())

	at := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	cat := "ONTIME"
	approval.Record(StudentRoleCS, "s1", true, "Report approved successfully", &cat, at)

	cs := approval.Action(StudentRoleCS)
	require.True(t, cs.Acted())
	assert.True(t, *cs.Approved)
	assert.Equal(t, "ONTIME", *approval.ApprovalCatCS)
	assert.False(t, approval.Action(StudentRoleCP).Acted())
	assert.False(t, approval.Action(StudentRoleWS).Acted())
	assert.Equal(t, StudentRoleCP, OtherRole(StudentRoleCS))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 25)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	p = NewPagination(1, 10, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.False(t, p.HasPrev)
}
