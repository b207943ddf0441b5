package sheets

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"gradebook-server-go/models"
)

const (
	renderUnformatted = "UNFORMATTED_VALUE"
	renderFormatted   = "FORMATTED_VALUE"
	inputRaw          = "RAW"
)

// GoogleSheets reads and writes a spreadsheet through the Sheets v4 API
type GoogleSheets struct {
	values        *gsheets.SpreadsheetsValuesService
	spreadsheetID string
	layout        Layout
}

// NewGoogleSheets authenticates with a service account credentials file
func NewGoogleSheets(ctx context.Context, credentialsFile, spreadsheetID string, layout Layout, opts ...option.ClientOption) (*GoogleSheets, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	opts = append([]option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}, opts...)
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sheets client: %w", err)
	}
	return &GoogleSheets{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		layout:        layout,
	}, nil
}

// Layout returns the ranges this sheet reads and writes
func (g *GoogleSheets) Layout() Layout {
	return g.layout
}

// FetchRows returns the data range with numbers unformatted
func (g *GoogleSheets) FetchRows(ctx context.Context) ([][]any, error) {
	resp, err := g.values.Get(g.spreadsheetID, g.layout.Data.String()).
		ValueRenderOption(renderUnformatted).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", g.layout.Data, err)
	}
	return resp.Values, nil
}

// FetchTotalClassesText returns the displayed text of the total-classes cell
func (g *GoogleSheets) FetchTotalClassesText(ctx context.Context) (string, error) {
	resp, err := g.values.Get(g.spreadsheetID, g.layout.TotalClasses.String()).
		ValueRenderOption(renderFormatted).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", g.layout.TotalClasses, err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return "", nil
	}
	return fmt.Sprint(resp.Values[0][0]), nil
}

// WriteResults writes all results in a single RAW update
func (g *GoogleSheets) WriteResults(ctx context.Context, results []models.Result) (int, error) {
	grid, written, err := resultGrid(results, g.layout.Result)
	if err != nil {
		return 0, err
	}
	if len(grid) == 0 {
		return 0, nil
	}

	body := &gsheets.ValueRange{
		Range:          written.String(),
		MajorDimension: "ROWS",
		Values:         grid,
	}
	resp, err := g.values.Update(g.spreadsheetID, written.String(), body).
		ValueInputOption(inputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", written, err)
	}
	return int(resp.UpdatedCells), nil
}
