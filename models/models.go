package models

import (
	"encoding/json"
	"time"
)

// Score is a numeric cell that may be missing (blank or non-numeric)
type Score struct {
	Value float64
	Valid bool
}

// NewScore returns a present score
func NewScore(v float64) Score {
	return Score{Value: v, Valid: true}
}

// Missing reports whether the cell did not hold a number
func (s Score) Missing() bool {
	return !s.Valid
}

// MarshalJSON writes missing scores as null
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// Absences is a count of missed classes that may be missing
type Absences struct {
	Count int
	Valid bool
}

// NewAbsences returns a present absence count
func NewAbsences(n int) Absences {
	return Absences{Count: n, Valid: true}
}

// MarshalJSON writes missing counts as null
func (a Absences) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(a.Count)
}

// StudentRecord is one student row read from the sheet
type StudentRecord struct {
	Row      int      `json:"row"`            // 1-based sheet row, 0 when not sheet-backed
	ID       string   `json:"id,omitempty"`   // Enrollment number, if the sheet has the column
	Name     string   `json:"name,omitempty"` // Student name, if the sheet has the column
	P1       Score    `json:"p1"`
	P2       Score    `json:"p2"`
	P3       Score    `json:"p3"`
	Absences Absences `json:"absences"`
}

// Status is the outcome classification of a student
type Status int

const (
	Passed Status = iota
	Exam
	FailedGrade
	FailedAttendance
)

// Labels expected downstream in the result column
const (
	LabelPassed           = "Aprovado"
	LabelExam             = "Exame Final"
	LabelFailedGrade      = "Reprovado por Nota"
	LabelFailedAttendance = "Reprovado por Falta"
)

// Label returns the sheet label for the status
func (s Status) Label() string {
	switch s {
	case Exam:
		return LabelExam
	case FailedGrade:
		return LabelFailedGrade
	case FailedAttendance:
		return LabelFailedAttendance
	default:
		return LabelPassed
	}
}

func (s Status) String() string {
	return s.Label()
}

// MarshalJSON writes the status as its sheet label
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Label())
}

// AllStatuses lists every status in priority order, highest first
var AllStatuses = []Status{FailedAttendance, FailedGrade, Exam, Passed}

// CourseConfig holds the per-run course values shared by every student
type CourseConfig struct {
	TotalClasses    int `json:"totalClasses"`
	AllowedAbsences int `json:"allowedAbsences"`
}

// Result is the computed outcome for one StudentRecord
type Result struct {
	Row        int    `json:"row"`
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	Average    Score  `json:"average"`
	Status     Status `json:"status"`
	FinalGrade int    `json:"finalGrade"`
}

// Incomplete reports whether the average could not be computed
func (r Result) Incomplete() bool {
	return r.Average.Missing()
}

// Report summarizes one evaluation run
type Report struct {
	RunID        string         `json:"runId"`
	Course       CourseConfig   `json:"course"`
	Students     int            `json:"students"`
	ByStatus     map[string]int `json:"byStatus"`
	Incomplete   []int          `json:"incompleteRows"`
	UpdatedCells int            `json:"updatedCells"`
	ResultRange  string         `json:"resultRange"`
	Results      []Result       `json:"results"`
	StartedAt    time.Time      `json:"startedAt"`
	Duration     time.Duration  `json:"duration"`
}

// NewReport builds the status tally for a set of results
func NewReport(runID string, course CourseConfig, results []Result) *Report {
	r := &Report{
		RunID:      runID,
		Course:     course,
		Students:   len(results),
		ByStatus:   make(map[string]int, len(AllStatuses)),
		Incomplete: []int{},
		Results:    results,
	}
	for _, s := range AllStatuses {
		r.ByStatus[s.Label()] = 0
	}
	for _, res := range results {
		r.ByStatus[res.Status.Label()]++
		if res.Incomplete() {
			r.Incomplete = append(r.Incomplete, res.Row)
		}
	}
	return r
}
