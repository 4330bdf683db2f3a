// Package reporting builds the HTML generation report from a dataset.
package reporting

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gridlake/internal/domain"
	"gridlake/internal/engine"
	"gridlake/internal/frame"
	"gridlake/internal/report"
)

// DefaultWindowHours is the rolling-mean window used when none is given.
const DefaultWindowHours = 24

// Service renders reports.
type Service struct {
	engine   *engine.Engine
	datasets domain.DatasetRepository
	logger   *slog.Logger
}

// NewService creates a reporting service.
func NewService(e *engine.Engine, datasets domain.DatasetRepository, logger *slog.Logger) *Service {
	return &Service{
		engine:   e,
		datasets: datasets,
		logger:   logger.With("component", "reporting-service"),
	}
}

// Generate writes a full HTML report for the dataset to w. The dataset
// must carry the canonical generation columns.
func (s *Service) Generate(ctx context.Context, datasetName string, windowHours int, w io.Writer) error {
	if windowHours <= 0 {
		windowHours = DefaultWindowHours
	}

	ds, err := s.datasets.GetByName(ctx, datasetName)
	if err != nil {
		return err
	}

	totals, err := s.sourceTotals(ctx, ds.Name)
	if err != nil {
		return err
	}
	trends, err := s.rollingTrends(ctx, ds.Name, windowHours)
	if err != nil {
		return err
	}

	data := report.Data{
		Dataset:     *ds,
		Totals:      totals,
		Trends:      trends,
		WindowHours: windowHours,
		GeneratedAt: time.Now().UTC(),
	}
	if err := report.Render(w, data); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	s.logger.Info("report generated", "dataset", ds.Name, "sources", len(totals))
	return nil
}

func (s *Service) sourceTotals(ctx context.Context, table string) ([]report.SourceTotal, error) {
	ops := []domain.Op{
		{
			Kind:       domain.OpGroupBy,
			By:         []string{"source"},
			Aggregates: []domain.Aggregation{{Func: domain.AggSum, Column: "generation_gwh", As: "total_gwh"}},
		},
		{
			Kind: domain.OpSort,
			Keys: []domain.SortKey{{Column: "total_gwh", Desc: true}},
		},
	}
	f, err := s.runPipeline(ctx, table, ops)
	if err != nil {
		return nil, err
	}

	srcIdx := f.ColumnIndex("source")
	valIdx := f.ColumnIndex("total_gwh")
	if srcIdx < 0 || valIdx < 0 {
		return nil, fmt.Errorf("totals frame missing expected columns")
	}

	totals := make([]report.SourceTotal, 0, f.RowCount)
	for i, row := range f.Rows {
		v, ok := f.Float(i, valIdx)
		if !ok {
			continue
		}
		totals = append(totals, report.SourceTotal{
			Source:   fmt.Sprintf("%v", row[srcIdx]),
			TotalGWh: v,
		})
	}
	return totals, nil
}

func (s *Service) rollingTrends(ctx context.Context, table string, windowHours int) ([]report.TrendSeries, error) {
	// Readings are summed into hourly buckets before the rolling mean so
	// the window spans windowHours hours even when the raw series carries
	// more than one reading per hour.
	ops := []domain.Op{
		{
			Kind:       domain.OpDerive,
			Name:       "ts_hour",
			Expression: "date_trunc('hour', ts)",
		},
		{
			Kind:       domain.OpGroupBy,
			By:         []string{"source", "ts_hour"},
			Aggregates: []domain.Aggregation{{Func: domain.AggSum, Column: "generation_gwh", As: "hourly_gwh"}},
		},
		{
			Kind:    domain.OpRename,
			Renames: map[string]string{"ts_hour": "ts"},
		},
		{
			Kind:       domain.OpRolling,
			By:         []string{"source"},
			OrderBy:    []string{"ts"},
			Window:     windowHours,
			Aggregates: []domain.Aggregation{{Func: domain.AggAvg, Column: "hourly_gwh", As: "rolling_gwh"}},
		},
		{
			Kind: domain.OpSort,
			Keys: []domain.SortKey{{Column: "source"}, {Column: "ts"}},
		},
	}
	f, err := s.runPipeline(ctx, table, ops)
	if err != nil {
		return nil, err
	}

	srcIdx := f.ColumnIndex("source")
	tsIdx := f.ColumnIndex("ts")
	valIdx := f.ColumnIndex("rolling_gwh")
	if srcIdx < 0 || tsIdx < 0 || valIdx < 0 {
		return nil, fmt.Errorf("trend frame missing expected columns")
	}

	var (
		series  []report.TrendSeries
		current *report.TrendSeries
	)
	for i, row := range f.Rows {
		src := fmt.Sprintf("%v", row[srcIdx])
		ts, err := cellTime(row[tsIdx])
		if err != nil {
			return nil, err
		}
		v, ok := f.Float(i, valIdx)
		if !ok {
			continue
		}
		if current == nil || current.Source != src {
			series = append(series, report.TrendSeries{Source: src})
			current = &series[len(series)-1]
		}
		current.Points = append(current.Points, report.TrendPoint{Timestamp: ts, Value: v})
	}
	return series, nil
}

func (s *Service) runPipeline(ctx context.Context, table string, ops []domain.Op) (*domain.Frame, error) {
	sqlText, err := frame.Compile(table, ops)
	if err != nil {
		return nil, err
	}
	return s.engine.Query(ctx, sqlText)
}

func cellTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", t)
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}
