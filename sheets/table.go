package sheets

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"gradebook-server-go/grading"
	"gradebook-server-go/models"
)

// Columns names the header cells of the data range.
type Columns struct {
	P1       string
	P2       string
	P3       string
	Absences string
	ID       string // optional
	Name     string // optional
}

// DefaultColumns matches the course sheet headers.
var DefaultColumns = Columns{
	P1:       "P1",
	P2:       "P2",
	P3:       "P3",
	Absences: "Faltas",
	ID:       "Matricula",
	Name:     "Aluno",
}

// ColumnError reports a required header that is not in the header row.
type ColumnError struct {
	Column string
	Header []string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %q not found in header %q", e.Column, e.Header)
}

// ParseTable reads student records from a value grid whose first row is the
// header. firstRow is the sheet row number of the header, used to number
// records. Blank rows produce no record; the remaining records keep their
// sheet row numbers so results stay aligned.
func ParseTable(values [][]any, firstRow int, cols Columns) ([]models.StudentRecord, error) {
	if len(values) == 0 {
		return nil, &ColumnError{Column: cols.P1}
	}

	header := make([]string, len(values[0]))
	index := make(map[string]int, len(values[0]))
	for i, cell := range values[0] {
		header[i] = strings.TrimSpace(fmt.Sprint(cell))
		key := normalizeHeader(header[i])
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	lookup := func(name string, required bool) (int, error) {
		if name == "" && !required {
			return -1, nil
		}
		if i, ok := index[normalizeHeader(name)]; ok {
			return i, nil
		}
		if required {
			return -1, &ColumnError{Column: name, Header: header}
		}
		return -1, nil
	}

	var p1, p2, p3, abs, id, name int
	var err error
	if p1, err = lookup(cols.P1, true); err != nil {
		return nil, err
	}
	if p2, err = lookup(cols.P2, true); err != nil {
		return nil, err
	}
	if p3, err = lookup(cols.P3, true); err != nil {
		return nil, err
	}
	if abs, err = lookup(cols.Absences, true); err != nil {
		return nil, err
	}
	id, _ = lookup(cols.ID, false)
	name, _ = lookup(cols.Name, false)

	body := values[1:]
	for len(body) > 0 && blankRow(body[len(body)-1]) {
		body = body[:len(body)-1]
	}

	records := make([]models.StudentRecord, 0, len(body))
	for i, row := range body {
		if blankRow(row) {
			continue
		}
		records = append(records, models.StudentRecord{
			Row:      firstRow + 1 + i,
			ID:       cellString(row, id),
			Name:     cellString(row, name),
			P1:       grading.ParseScore(cellAt(row, p1)),
			P2:       grading.ParseScore(cellAt(row, p2)),
			P3:       grading.ParseScore(cellAt(row, p3)),
			Absences: grading.ParseAbsences(cellAt(row, abs)),
		})
	}
	return records, nil
}

// ResultValues renders results as {status label, final grade} rows.
func ResultValues(results []models.Result) [][]any {
	values := make([][]any, len(results))
	for i, r := range results {
		values[i] = []any{r.Status.Label(), r.FinalGrade}
	}
	return values
}

// resultGrid places result rows by sheet row inside dst and returns the grid
// together with the narrowed range actually written.
func resultGrid(results []models.Result, dst Range) ([][]any, Range, error) {
	if len(results) == 0 {
		return nil, Range{}, nil
	}
	last := dst.StartRow - 1
	for i, r := range results {
		row := r.Row
		if row == 0 {
			row = dst.StartRow + i
		}
		if row < dst.StartRow || row > dst.EndRow {
			return nil, Range{}, fmt.Errorf("result row %d outside destination %s", row, dst)
		}
		if row > last {
			last = row
		}
	}

	grid := make([][]any, last-dst.StartRow+1)
	for i := range grid {
		grid[i] = []any{"", ""}
	}
	values := ResultValues(results)
	for i, r := range results {
		row := r.Row
		if row == 0 {
			row = dst.StartRow + i
		}
		grid[row-dst.StartRow] = values[i]
	}

	written := dst
	written.EndCol = dst.StartCol + 1
	written.EndRow = last
	return grid, written, nil
}

func cellAt(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

func cellString(row []any, i int) string {
	v := cellAt(row, i)
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func blankRow(row []any) bool {
	for _, c := range row {
		if c != nil && strings.TrimSpace(fmt.Sprint(c)) != "" {
			return false
		}
	}
	return true
}

// normalizeHeader folds case, surrounding spaces and accents,
// so "Matrícula " matches "matricula".
func normalizeHeader(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
