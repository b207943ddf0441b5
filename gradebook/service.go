// Package gradebook runs one evaluation: fetch the sheet, compute every
// student's outcome, write the result columns back.
package gradebook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gradebook-server-go/db"
	"gradebook-server-go/grading"
	"gradebook-server-go/logger"
	"gradebook-server-go/metrics"
	"gradebook-server-go/models"
	"gradebook-server-go/sheets"
)

// ErrRunInProgress is returned when another run is writing the same range
var ErrRunInProgress = errors.New("an evaluation run is already in progress for this sheet")

// Service wires a sheet to the evaluator
type Service struct {
	sheet    sheets.Sheet
	columns  sheets.Columns
	lock     db.Locker
	lockName string
	metrics  *metrics.Metrics
	log      *logger.Logger
	timeout  time.Duration
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithLock guards runs with l under name
func WithLock(l db.Locker, name string) Option {
	return func(s *Service) {
		s.lock = l
		s.lockName = name
	}
}

// WithMetrics records run metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTimeout bounds each run
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithColumns overrides the header names
func WithColumns(c sheets.Columns) Option {
	return func(s *Service) {
		s.columns = c
	}
}

// NewService creates a Service for sheet
func NewService(sheet sheets.Sheet, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		sheet:   sheet,
		columns: sheets.DefaultColumns,
		lock:    db.NoopLock{},
		log:     log.WithModule("gradebook"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lockName == "" {
		s.lockName = sheet.Layout().Result.String()
	}
	return s
}

// Run performs one fetch -> evaluate -> write pass. Nothing is written
// unless every step before the write succeeds.
func (s *Service) Run(ctx context.Context) (*models.Report, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	log := s.log.WithRunID(runID)
	start := s.now()

	release, err := s.lock.Acquire(ctx, s.lockName)
	if err != nil {
		if errors.Is(err, db.ErrLockHeld) {
			s.metrics.RecordRun("locked", s.now().Sub(start))
			log.Warn("Run skipped, lock held", "lock", s.lockName)
			return nil, ErrRunInProgress
		}
		s.metrics.RecordRun("error", s.now().Sub(start))
		log.WithError(err).Error("Failed to acquire run lock")
		return nil, err
	}
	defer release()

	report, err := s.run(ctx, runID, log)
	elapsed := s.now().Sub(start)
	if err != nil {
		s.metrics.RecordRun("error", elapsed)
		log.WithError(err).Error("Evaluation run failed", "duration", elapsed)
		return nil, err
	}

	report.StartedAt = start
	report.Duration = elapsed
	s.metrics.RecordRun("success", elapsed)
	s.metrics.RecordResults(report.Results)
	log.Info("Evaluation run complete",
		"students", report.Students,
		"updated_cells", report.UpdatedCells,
		"incomplete", len(report.Incomplete),
		"duration", elapsed,
	)
	return report, nil
}

func (s *Service) run(ctx context.Context, runID string, log *logger.Logger) (*models.Report, error) {
	layout := s.sheet.Layout()

	log.Info("Fetching data from sheet", "range", layout.Data.String())
	report, err := EvaluateSheet(ctx, s.sheet, layout, s.columns)
	if err != nil {
		return nil, err
	}
	report.RunID = runID
	for _, row := range report.Incomplete {
		log.Warn("Average missing, grade rules skipped", "row", row)
	}

	log.Info("Updating the sheet with results", "range", layout.Result.String())
	n, err := s.sheet.WriteResults(ctx, report.Results)
	if err != nil {
		return nil, fmt.Errorf("write results: %w", err)
	}
	report.UpdatedCells = n
	return report, nil
}

// EvaluateSheet fetches and evaluates without writing
func EvaluateSheet(ctx context.Context, f sheets.Fetcher, layout sheets.Layout, cols sheets.Columns) (*models.Report, error) {
	text, err := f.FetchTotalClassesText(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch total classes: %w", err)
	}
	total, err := grading.ParseTotalClasses(text)
	if err != nil {
		return nil, err
	}
	course := grading.NewCourseConfig(total)

	rows, err := f.FetchRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch rows: %w", err)
	}
	records, err := sheets.ParseTable(rows, layout.Data.StartRow, cols)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", layout.Data, err)
	}

	report := models.NewReport("", course, grading.EvaluateAll(records, course))
	report.ResultRange = layout.Result.String()
	return report, nil
}
