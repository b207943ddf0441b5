// Package sheets reads student rows from a spreadsheet and writes computed
// results back. Google Sheets and local .xlsx workbooks are supported.
package sheets

import (
	"context"
	"fmt"

	"gradebook-server-go/models"
)

// Fetcher supplies the raw data range and the total-classes cell
type Fetcher interface {
	// FetchRows returns the data range, header row first
	FetchRows(ctx context.Context) ([][]any, error)
	// FetchTotalClassesText returns the free-text total-classes cell
	FetchTotalClassesText(ctx context.Context) (string, error)
}

// Writer persists results next to the data range
type Writer interface {
	// WriteResults writes {status, final grade} per result and returns the
	// number of updated cells
	WriteResults(ctx context.Context, results []models.Result) (int, error)
}

// Sheet is a spreadsheet that is both a Fetcher and a Writer
type Sheet interface {
	Fetcher
	Writer
	Layout() Layout
}

// Layout locates the data, total-classes and result ranges
type Layout struct {
	Data         Range
	TotalClasses Range
	Result       Range
}

// NewLayout parses the three ranges. An empty result range is derived from
// the data range; a total-classes cell without a sheet uses the data sheet.
func NewLayout(data, totalClasses, result string) (Layout, error) {
	var l Layout
	var err error
	if l.Data, err = ParseRange(data); err != nil {
		return Layout{}, fmt.Errorf("data range: %w", err)
	}
	if l.Data.Rows() < 2 {
		return Layout{}, fmt.Errorf("data range %s needs a header row and at least one student row", l.Data)
	}
	if l.TotalClasses, err = ParseRange(totalClasses); err != nil {
		return Layout{}, fmt.Errorf("total classes range: %w", err)
	}
	if l.TotalClasses.Sheet == "" {
		l.TotalClasses.Sheet = l.Data.Sheet
	}
	if result == "" {
		l.Result = ResultRange(l.Data)
	} else {
		if l.Result, err = ParseRange(result); err != nil {
			return Layout{}, fmt.Errorf("result range: %w", err)
		}
		if l.Result.Sheet == "" {
			l.Result.Sheet = l.Data.Sheet
		}
		if l.Result.Cols() < 2 {
			return Layout{}, fmt.Errorf("result range %s needs two columns", l.Result)
		}
	}
	return l, nil
}

// withSheet fills in the sheet name of ranges that have none
func (l Layout) withSheet(sheet string) Layout {
	if l.Data.Sheet == "" {
		l.Data.Sheet = sheet
	}
	if l.TotalClasses.Sheet == "" {
		l.TotalClasses.Sheet = sheet
	}
	if l.Result.Sheet == "" {
		l.Result.Sheet = sheet
	}
	return l
}
