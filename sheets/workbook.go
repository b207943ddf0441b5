package sheets

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"gradebook-server-go/models"
)

// Workbook is a local .xlsx file used as source and sink
type Workbook struct {
	file   *excelize.File
	path   string // empty for in-memory workbooks
	layout Layout
}

// OpenWorkbook opens an .xlsx file; results are saved back to the same path
func OpenWorkbook(path string, layout Layout) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	w, err := newWorkbook(f, layout)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.path = path
	return w, nil
}

// ReadWorkbook loads an .xlsx stream into memory; use WriteTo to get the
// annotated workbook back
func ReadWorkbook(r io.Reader, layout Layout) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	w, err := newWorkbook(f, layout)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

func newWorkbook(f *excelize.File, layout Layout) (*Workbook, error) {
	// Ranges without a sheet refer to the first sheet
	first := f.GetSheetName(0)
	if first == "" {
		return nil, errors.New("excel file does not contain any sheets")
	}
	layout = layout.withSheet(first)
	if idx, err := f.GetSheetIndex(layout.Data.Sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found in workbook", layout.Data.Sheet)
	}
	return &Workbook{file: f, layout: layout}, nil
}

// Layout returns the ranges this workbook reads and writes
func (w *Workbook) Layout() Layout {
	return w.layout
}

// FetchRows returns the data range as raw cell strings, trimming trailing
// empty cells and rows the way the Sheets API does
func (w *Workbook) FetchRows(ctx context.Context) ([][]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := w.layout.Data
	rows := make([][]any, 0, r.Rows())
	for row := r.StartRow; row <= r.EndRow; row++ {
		cells := make([]any, 0, r.Cols())
		for col := r.StartCol; col <= r.EndCol; col++ {
			v, err := w.cell(r.Sheet, col, row)
			if err != nil {
				return nil, err
			}
			cells = append(cells, v)
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		rows = append(rows, cells)
	}
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows, nil
}

// FetchTotalClassesText returns the total-classes cell
func (w *Workbook) FetchTotalClassesText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t := w.layout.TotalClasses
	v, err := w.cell(t.Sheet, t.StartCol, t.StartRow)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// WriteResults sets the result cells and, for file-backed workbooks, saves
func (w *Workbook) WriteResults(ctx context.Context, results []models.Result) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	grid, written, err := resultGrid(results, w.layout.Result)
	if err != nil {
		return 0, err
	}
	for i, values := range grid {
		cell, err := excelize.CoordinatesToCellName(written.StartCol, written.StartRow+i)
		if err != nil {
			return 0, err
		}
		row := values
		if err := w.file.SetSheetRow(written.Sheet, cell, &row); err != nil {
			return 0, fmt.Errorf("failed to write %s!%s: %w", written.Sheet, cell, err)
		}
	}
	if w.path != "" {
		if err := w.file.SaveAs(w.path); err != nil {
			return 0, fmt.Errorf("failed to save workbook %s: %w", w.path, err)
		}
	}
	return len(grid) * 2, nil
}

// WriteTo writes the workbook, including any results, as .xlsx
func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	return w.file.WriteTo(out)
}

// Close releases the workbook
func (w *Workbook) Close() error {
	return w.file.Close()
}

func (w *Workbook) cell(sheet string, col, row int) (any, error) {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	v, err := w.file.GetCellValue(sheet, name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s!%s: %w", sheet, name, err)
	}
	return v, nil
}

// WorkbookFile is a Sheet over an .xlsx path that reopens the file on every
// call, so each run sees the current contents
type WorkbookFile struct {
	path   string
	layout Layout
}

// NewWorkbookFile checks that path opens and resolves the layout's sheet
func NewWorkbookFile(path string, layout Layout) (*WorkbookFile, error) {
	wb, err := OpenWorkbook(path, layout)
	if err != nil {
		return nil, err
	}
	resolved := wb.Layout()
	if err := wb.Close(); err != nil {
		return nil, err
	}
	return &WorkbookFile{path: path, layout: resolved}, nil
}

// Layout returns the ranges this workbook reads and writes
func (w *WorkbookFile) Layout() Layout {
	return w.layout
}

// FetchRows opens the file and reads the data range
func (w *WorkbookFile) FetchRows(ctx context.Context) ([][]any, error) {
	wb, err := OpenWorkbook(w.path, w.layout)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return wb.FetchRows(ctx)
}

// FetchTotalClassesText opens the file and reads the total-classes cell
func (w *WorkbookFile) FetchTotalClassesText(ctx context.Context) (string, error) {
	wb, err := OpenWorkbook(w.path, w.layout)
	if err != nil {
		return "", err
	}
	defer wb.Close()
	return wb.FetchTotalClassesText(ctx)
}

// WriteResults opens the file, writes results and saves it
func (w *WorkbookFile) WriteResults(ctx context.Context, results []models.Result) (int, error) {
	wb, err := OpenWorkbook(w.path, w.layout)
	if err != nil {
		return 0, err
	}
	defer wb.Close()
	return wb.WriteResults(ctx, results)
}
