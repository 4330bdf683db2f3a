package reporting

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridlake/internal/domain"
	"gridlake/internal/engine"
)

type mockDatasetRepo struct {
	getByNameFn func(ctx context.Context, name string) (*domain.Dataset, error)
}

func (m *mockDatasetRepo) Create(ctx context.Context, d *domain.Dataset) (*domain.Dataset, error) {
	panic("not used")
}

func (m *mockDatasetRepo) GetByName(ctx context.Context, name string) (*domain.Dataset, error) {
	return m.getByNameFn(ctx, name)
}

func (m *mockDatasetRepo) List(ctx context.Context) ([]domain.Dataset, error) { panic("not used") }

func (m *mockDatasetRepo) UpdateRowCount(ctx context.Context, name string, rows int64) error {
	panic("not used")
}

func (m *mockDatasetRepo) Delete(ctx context.Context, name string) error { panic("not used") }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func seededEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.Open("", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	ctx := context.Background()
	require.NoError(t, e.Exec(ctx, `CREATE TABLE generation (ts TIMESTAMP, source VARCHAR, generation_gwh DOUBLE)`))
	require.NoError(t, e.Exec(ctx, `INSERT INTO generation VALUES
		('2024-01-01 00:00:00', 'wind', 12.0),
		('2024-01-01 01:00:00', 'wind', 14.0),
		('2024-01-01 02:00:00', 'wind', 10.0),
		('2024-01-01 00:00:00', 'solar', 0.0),
		('2024-01-01 01:00:00', 'solar', 2.0),
		('2024-01-01 00:00:00', 'gas', 30.0)`))
	return e
}

func TestService_Generate(t *testing.T) {
	e := seededEngine(t)
	repo := &mockDatasetRepo{
		getByNameFn: func(_ context.Context, name string) (*domain.Dataset, error) {
			return &domain.Dataset{ID: "ds-1", Name: "generation", RowCount: 6}, nil
		},
	}
	svc := NewService(e, repo, testLogger())

	var buf bytes.Buffer
	require.NoError(t, svc.Generate(context.Background(), "generation", 2, &buf))
	html := buf.String()

	assert.Contains(t, html, "Generation Report")
	assert.Contains(t, html, "Rolling mean (2h window)")
	// Bar chart carries one bar per source.
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("<rect")))
	// Trend chart carries one line per source.
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("<polyline")))
	assert.Contains(t, html, ">gas</td>")
	assert.Contains(t, html, ">36.00</td>") // wind total
}

func TestService_Generate_UnknownDataset(t *testing.T) {
	e := seededEngine(t)
	repo := &mockDatasetRepo{
		getByNameFn: func(_ context.Context, name string) (*domain.Dataset, error) {
			return nil, domain.ErrNotFound("dataset %s not found", name)
		},
	}
	svc := NewService(e, repo, testLogger())

	var buf bytes.Buffer
	err := svc.Generate(context.Background(), "missing", 0, &buf)
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Zero(t, buf.Len())
}

func TestService_SourceTotals(t *testing.T) {
	e := seededEngine(t)
	svc := NewService(e, &mockDatasetRepo{}, testLogger())

	totals, err := svc.sourceTotals(context.Background(), "generation")

	require.NoError(t, err)
	require.Len(t, totals, 3)
	assert.Equal(t, "wind", totals[0].Source)
	assert.Equal(t, 36.0, totals[0].TotalGWh)
	assert.Equal(t, "gas", totals[1].Source)
}

func TestService_RollingTrends(t *testing.T) {
	e := seededEngine(t)
	svc := NewService(e, &mockDatasetRepo{}, testLogger())

	trends, err := svc.rollingTrends(context.Background(), "generation", 2)

	require.NoError(t, err)
	require.Len(t, trends, 3)

	var wind []float64
	for _, s := range trends {
		if s.Source != "wind" {
			continue
		}
		for _, p := range s.Points {
			wind = append(wind, p.Value)
		}
	}
	// Window of 2 hours: 12, (12+14)/2, (14+10)/2.
	assert.Equal(t, []float64{12.0, 13.0, 12.0}, wind)
}

func TestService_RollingTrends_BucketsSubHourlyReadings(t *testing.T) {
	e := seededEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Exec(ctx, `CREATE TABLE halfhourly (ts TIMESTAMP, source VARCHAR, generation_gwh DOUBLE)`))
	require.NoError(t, e.Exec(ctx, `INSERT INTO halfhourly VALUES
		('2024-01-01 00:00:00', 'wind', 5.0),
		('2024-01-01 00:30:00', 'wind', 7.0),
		('2024-01-01 01:00:00', 'wind', 6.0),
		('2024-01-01 01:30:00', 'wind', 4.0)`))
	svc := NewService(e, &mockDatasetRepo{}, testLogger())

	trends, err := svc.rollingTrends(ctx, "halfhourly", 2)

	require.NoError(t, err)
	require.Len(t, trends, 1)
	require.Len(t, trends[0].Points, 2)
	// Half-hour readings collapse to hourly sums (12, 10) before the
	// 2-hour window averages them: 12, (12+10)/2.
	assert.Equal(t, 12.0, trends[0].Points[0].Value)
	assert.Equal(t, 11.0, trends[0].Points[1].Value)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), trends[0].Points[0].Timestamp.UTC())
}
