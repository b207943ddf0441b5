package grading

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"gradebook-server-go/models"
)

var firstInteger = regexp.MustCompile(`\d+`)

// ParseError is returned when the total-classes cell holds no integer.
// Without it the allowed absences cannot be derived, so the run stops.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no integer found in total classes text %q", e.Input)
}

// ParseTotalClasses extracts the first integer substring of a free-text cell,
// e.g. "Total de aulas no semestre: 60" -> 60.
func ParseTotalClasses(text string) (int, error) {
	match := firstInteger.FindString(text)
	if match == "" {
		return 0, &ParseError{Input: text}
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		// only reachable on overflow
		return 0, &ParseError{Input: text}
	}
	return n, nil
}

// ParseScore converts a cell value into a Score. Blank and non-numeric cells
// become a missing score, never zero.
func ParseScore(cell any) models.Score {
	v, ok := toFloat(cell)
	if !ok {
		return models.Score{}
	}
	return models.NewScore(v)
}

// ParseAbsences converts a cell value into an absence count. Fractional or
// negative values are treated as missing.
func ParseAbsences(cell any) models.Absences {
	v, ok := toFloat(cell)
	if !ok || v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
		return models.Absences{}
	}
	return models.NewAbsences(int(v))
}

func toFloat(cell any) (float64, bool) {
	var v float64
	switch c := cell.(type) {
	case nil:
		return 0, false
	case float64:
		v = c
	case float32:
		v = float64(c)
	case int:
		v = float64(c)
	case int32:
		v = float64(c)
	case int64:
		v = float64(c)
	case json.Number:
		f, err := c.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		s := strings.TrimSpace(c)
		if s == "" {
			return 0, false
		}
		if !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
