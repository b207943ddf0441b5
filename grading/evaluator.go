// Package grading turns student scores and absences into an outcome status
// and final grade. Everything here is pure and safe to call from any goroutine.
package grading

import (
	"math"

	"gradebook-server-go/models"
)

const (
	// PassingAverage is the exclusive upper bound of the exam band.
	PassingAverage = 70.0
	// ExamAverage is the inclusive lower bound of the exam band.
	ExamAverage = 50.0
	// AbsenceRatio is the share of classes a student may miss.
	AbsenceRatio = 0.25

	// ceilTolerance absorbs float error in the average, so a mean that is
	// exactly 50 or 70 on paper lands on the right side of each bound.
	ceilTolerance = 1e-9
)

// rule assigns status when matches holds. Rules are listed highest priority
// first and the first match wins.
type rule struct {
	status  models.Status
	matches func(in input) bool
}

type input struct {
	average  models.Score
	absences models.Absences
	allowed  int
}

var rules = []rule{
	{
		status: models.FailedAttendance,
		matches: func(in input) bool {
			return in.absences.Valid && in.absences.Count > in.allowed
		},
	},
	{
		status: models.FailedGrade,
		matches: func(in input) bool {
			return in.average.Valid && in.average.Value < ExamAverage-ceilTolerance
		},
	},
	{
		status: models.Exam,
		matches: func(in input) bool {
			return in.average.Valid && in.average.Value >= ExamAverage-ceilTolerance && in.average.Value < PassingAverage-ceilTolerance
		},
	},
}

// NewCourseConfig derives the allowed absences for a course run.
func NewCourseConfig(totalClasses int) models.CourseConfig {
	return models.CourseConfig{
		TotalClasses:    totalClasses,
		AllowedAbsences: AllowedAbsences(totalClasses),
	}
}

// AllowedAbsences is ceil(totalClasses * 0.25).
func AllowedAbsences(totalClasses int) int {
	return int(math.Ceil(float64(totalClasses) * AbsenceRatio))
}

// Average returns the mean of the three scores, missing if any score is.
func Average(p1, p2, p3 models.Score) models.Score {
	if p1.Missing() || p2.Missing() || p3.Missing() {
		return models.Score{}
	}
	return models.NewScore((p1.Value + p2.Value + p3.Value) / 3)
}

// ExamFinalGrade is ceil(35 + average/2).
func ExamFinalGrade(average float64) int {
	return int(math.Ceil(35 + average/2 - ceilTolerance))
}

// Classify returns the status for an average and absence count.
func Classify(average models.Score, absences models.Absences, course models.CourseConfig) models.Status {
	in := input{average: average, absences: absences, allowed: course.AllowedAbsences}
	for _, r := range rules {
		if r.matches(in) {
			return r.status
		}
	}
	return models.Passed
}

// Evaluate computes the outcome of one student.
func Evaluate(rec models.StudentRecord, course models.CourseConfig) models.Result {
	avg := Average(rec.P1, rec.P2, rec.P3)
	status := Classify(avg, rec.Absences, course)

	res := models.Result{
		Row:     rec.Row,
		ID:      rec.ID,
		Name:    rec.Name,
		Average: avg,
		Status:  status,
	}
	if status == models.Exam {
		res.FinalGrade = ExamFinalGrade(avg.Value)
	}
	return res
}

// EvaluateAll evaluates every record, keeping input order and length.
func EvaluateAll(records []models.StudentRecord, course models.CourseConfig) []models.Result {
	results := make([]models.Result, len(records))
	for i, rec := range records {
		results[i] = Evaluate(rec, course)
	}
	return results
}
