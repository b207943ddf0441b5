package sheets

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Range is a rectangular A1 range, optionally bound to a sheet.
// Columns and rows are 1-based.
type Range struct {
	Sheet    string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// ParseRange parses "Sheet!A3:F27", "'My sheet'!A2" or "B4:C9".
func ParseRange(s string) (Range, error) {
	var r Range
	cells := strings.TrimSpace(s)
	if i := strings.LastIndex(cells, "!"); i >= 0 {
		r.Sheet = unquoteSheet(cells[:i])
		cells = cells[i+1:]
	}
	if cells == "" {
		return Range{}, fmt.Errorf("range %q has no cells", s)
	}

	start, end, found := strings.Cut(cells, ":")
	var err error
	r.StartCol, r.StartRow, err = excelize.CellNameToCoordinates(start)
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	r.EndCol, r.EndRow = r.StartCol, r.StartRow
	if found {
		r.EndCol, r.EndRow, err = excelize.CellNameToCoordinates(end)
		if err != nil {
			return Range{}, fmt.Errorf("invalid range %q: %w", s, err)
		}
	}
	if r.EndCol < r.StartCol || r.EndRow < r.StartRow {
		return Range{}, fmt.Errorf("invalid range %q: end before start", s)
	}
	return r, nil
}

// MustParseRange is ParseRange for constants; it panics on error.
func MustParseRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// String formats the range in A1 notation.
func (r Range) String() string {
	start, _ := excelize.CoordinatesToCellName(r.StartCol, r.StartRow)
	cells := start
	if r.EndCol != r.StartCol || r.EndRow != r.StartRow {
		end, _ := excelize.CoordinatesToCellName(r.EndCol, r.EndRow)
		cells = start + ":" + end
	}
	if r.Sheet == "" {
		return cells
	}
	return quoteSheet(r.Sheet) + "!" + cells
}

// StartCell returns the top-left cell name, without the sheet.
func (r Range) StartCell() string {
	name, _ := excelize.CoordinatesToCellName(r.StartCol, r.StartRow)
	return name
}

// Rows is the number of rows covered.
func (r Range) Rows() int {
	return r.EndRow - r.StartRow + 1
}

// Cols is the number of columns covered.
func (r Range) Cols() int {
	return r.EndCol - r.StartCol + 1
}

// ResultRange returns the two columns right after a data range, skipping
// its header row: "A3:F27" -> "G4:H27".
func ResultRange(data Range) Range {
	return Range{
		Sheet:    data.Sheet,
		StartCol: data.EndCol + 1,
		StartRow: data.StartRow + 1,
		EndCol:   data.EndCol + 2,
		EndRow:   data.EndRow,
	}
}

func unquoteSheet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}

func quoteSheet(s string) string {
	if strings.ContainsAny(s, " '!-:.") {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return s
}
