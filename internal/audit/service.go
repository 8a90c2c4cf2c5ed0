// Package audit runs the inventory collector and the risk evaluator together
// and shapes their output into reports.
package audit

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/extperm/internal/inventory"
	"github.com/jmerrifield20/extperm/internal/risk"
	"go.uber.org/zap"
)

// ErrValidation is returned for malformed ad-hoc evaluation input.
type ErrValidation struct{ Msg string }

func (e *ErrValidation) Error() string { return e.Msg }

// ReportHook is an optional callback invoked after every audit run.
type ReportHook func(r *Report, fetchErr error)

// Explanation is the weight and annotation of a single permission.
type Explanation struct {
	Permission string           `json:"permission"`
	Weight     int              `json:"weight"`
	Known      bool             `json:"known"`
	Annotation *risk.Annotation `json:"annotation,omitempty"`
}

// Service performs audits. It holds no per-run state and may be used concurrently.
type Service struct {
	collector *inventory.Collector
	table     *risk.Table
	onReport  ReportHook
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates an audit Service. A nil table selects risk.DefaultTable().
func NewService(collector *inventory.Collector, table *risk.Table, logger *zap.Logger) *Service {
	if table == nil {
		table = risk.DefaultTable()
	}
	return &Service{
		collector: collector,
		table:     table,
		logger:    logger,
		now:       time.Now,
	}
}

// SetReportHook configures the callback invoked after every run.
func (s *Service) SetReportHook(fn ReportHook) {
	s.onReport = fn
}

// Table returns the weight table the service scores with.
func (s *Service) Table() *risk.Table { return s.table }

// Run fetches the inventory once and evaluates every extension independently.
// It never fails: a failed fetch yields an empty report with Error set.
// Extensions are ordered by score, highest first, then by name.
func (s *Service) Run(ctx context.Context) *Report {
	report := &Report{
		ID:          uuid.New(),
		GeneratedAt: s.now().UTC(),
		Extensions:  []ExtensionReport{},
	}

	resp, err := s.collector.Collect(ctx)
	if err != nil {
		report.Error = resp.Error
		s.logger.Warn("audit: inventory unavailable",
			zap.String("report_id", report.ID.String()),
			zap.Error(err),
		)
		s.finish(report, err)
		return report
	}

	for _, rec := range resp.Extensions {
		report.Extensions = append(report.Extensions, s.evaluate(rec))
	}
	sort.SliceStable(report.Extensions, func(i, j int) bool {
		a, b := report.Extensions[i], report.Extensions[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Name < b.Name
	})
	for _, e := range report.Extensions {
		report.Summary.add(e.Tier)
	}

	s.logger.Info("audit: completed",
		zap.String("report_id", report.ID.String()),
		zap.Int("extensions", report.Summary.Total),
		zap.Int("critical", report.Summary.Critical),
		zap.Int("high", report.Summary.High),
	)
	s.finish(report, nil)
	return report
}

func (s *Service) finish(r *Report, err error) {
	if s.onReport != nil {
		s.onReport(r, err)
	}
}

func (s *Service) evaluate(rec inventory.Record) ExtensionReport {
	hosts := rec.HostPermissions
	if hosts == nil {
		hosts = []string{}
	}
	icons := rec.Icons
	if icons == nil {
		icons = []inventory.Icon{}
	}
	return ExtensionReport{
		ID:              rec.ID,
		Name:            rec.Name,
		Version:         rec.Version,
		HostPermissions: hosts,
		Icons:           icons,
		Assessment:      s.table.Evaluate(rec),
	}
}

// EvaluateRecord scores an ad-hoc record that did not come from the inventory.
func (s *Service) EvaluateRecord(rec inventory.Record) (*ExtensionReport, error) {
	if strings.TrimSpace(rec.Name) == "" {
		return nil, &ErrValidation{Msg: "name is required"}
	}
	for _, p := range rec.Permissions {
		if strings.TrimSpace(p) == "" {
			return nil, &ErrValidation{Msg: "permissions must not contain empty entries"}
		}
	}
	r := s.evaluate(rec)
	return &r, nil
}

// Explain returns the weight and, when curated, the annotation for permission.
func (s *Service) Explain(permission string) Explanation {
	w, known := s.table.Weight(permission)
	e := Explanation{Permission: permission, Weight: w, Known: known}
	if a, ok := s.table.AnnotationFor(permission); ok {
		e.Annotation = &a
	}
	return e
}
