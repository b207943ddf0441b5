package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Exame Final", Exam.Label())
	assert.Equal(t, "Reprovado por Nota", FailedGrade.Label())
	assert.Equal(t, "Reprovado por Falta", FailedAttendance.Label())
	assert.Equal(t, "Aprovado", Passed.Label())
}

func TestResultJSON(t *testing.T) {
	b, err := json.Marshal(Result{Row: 4, Average: NewScore(60), Status: Exam, FinalGrade: 65})
	require.NoError(t, err)
	assert.JSONEq(t, `{"row":4,"average":60,"status":"Exame Final","finalGrade":65}`, string(b))

	b, err = json.Marshal(Result{Row: 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"row":5,"average":null,"status":"Aprovado","finalGrade":0}`, string(b))
}

func TestNewReport(t *testing.T) {
	r := NewReport("run-1", CourseConfig{TotalClasses: 40, AllowedAbsences: 10}, []Result{
		{Row: 4, Average: NewScore(60), Status: Exam, FinalGrade: 65},
		{Row: 5, Status: Passed},
		{Row: 6, Average: NewScore(20), Status: FailedAttendance},
	})

	assert.Equal(t, 3, r.Students)
	assert.Equal(t, []int{5}, r.Incomplete)
	assert.Equal(t, map[string]int{
		"Exame Final":         1,
		"Aprovado":            1,
		"Reprovado por Nota":  0,
		"Reprovado por Falta": 1,
	}, r.ByStatus)
}
