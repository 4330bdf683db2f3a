// Package report renders a standalone HTML summary of a generation
// dataset: headline figures, per-source totals with a bar chart, and a
// rolling-mean trend line per source.
package report

import (
	"fmt"
	"io"
	"time"

	"gridlake/internal/domain"

	. "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"
)

// SourceTotal is one bar in the totals chart.
type SourceTotal struct {
	Source   string
	TotalGWh float64
}

// TrendPoint is one observation on a trend line.
type TrendPoint struct {
	Timestamp time.Time
	Value     float64
}

// TrendSeries is the rolling-mean trend for a single source.
type TrendSeries struct {
	Source string
	Points []TrendPoint
}

// Data holds everything the report template needs.
type Data struct {
	Dataset     domain.Dataset
	Totals      []SourceTotal
	Trends      []TrendSeries
	WindowHours int
	GeneratedAt time.Time
}

// Render writes the full HTML document to w.
func Render(w io.Writer, data Data) error {
	return page(data).Render(w)
}

func page(data Data) Node {
	return html.HTML(
		html.Lang("en"),
		html.Head(
			html.Meta(html.Charset("utf-8")),
			html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
			html.TitleEl(Text(data.Dataset.Name+" | Gridlake Report")),
			html.StyleEl(Raw(reportCSS)),
		),
		html.Body(
			html.Main(html.Class("report"),
				html.Header(
					html.H1(Text("Generation Report")),
					html.P(html.Class("muted"), Text(fmt.Sprintf(
						"Dataset %s (%d rows), generated %s",
						data.Dataset.Name,
						data.Dataset.RowCount,
						data.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"),
					))),
				),
				html.Section(
					html.H2(Text("Total generation by source")),
					barChart(data.Totals),
					totalsTable(data.Totals),
				),
				html.Section(
					html.H2(Text(fmt.Sprintf("Rolling mean (%dh window)", data.WindowHours))),
					lineChart(data.Trends),
				),
			),
		),
	)
}

func totalsTable(totals []SourceTotal) Node {
	rows := make([]Node, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, html.Tr(
			html.Td(Text(t.Source)),
			html.Td(html.Class("num"), Text(fmt.Sprintf("%.2f", t.TotalGWh))),
		))
	}
	return html.Table(
		html.THead(html.Tr(html.Th(Text("Source")), html.Th(html.Class("num"), Text("Total GWh")))),
		html.TBody(Group(rows)),
	)
}

const reportCSS = `
body { font-family: Inter, system-ui, sans-serif; margin: 0; background: #f6f8fa; color: #1f2328; }
.report { max-width: 860px; margin: 0 auto; padding: 2rem 1rem; }
.report h1 { margin-bottom: 0.25rem; }
.report h2 { margin-top: 2rem; font-size: 1.1rem; }
.muted { color: #59636e; }
.report section { background: #fff; border: 1px solid #d1d9e0; border-radius: 6px; padding: 1rem 1.5rem; margin-top: 1rem; }
table { border-collapse: collapse; margin-top: 1rem; width: 100%; }
th, td { text-align: left; padding: 0.35rem 0.75rem; border-bottom: 1px solid #d1d9e0; }
td.num, th.num { text-align: right; font-variant-numeric: tabular-nums; }
svg { display: block; margin-top: 0.5rem; }
`
