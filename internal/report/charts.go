package report

import (
	"fmt"
	"strings"

	. "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"
)

const (
	chartWidth   = 760
	chartHeight  = 280
	chartPadLeft = 60
	chartPadBot  = 40
	chartPadTop  = 16
)

var seriesColors = []string{"#0969da", "#1a7f37", "#bc4c00", "#8250df", "#cf222e", "#6e7781"}

func svgEl(children ...Node) Node {
	return El("svg",
		Attr("xmlns", "http://www.w3.org/2000/svg"),
		Attr("viewBox", fmt.Sprintf("0 0 %d %d", chartWidth, chartHeight)),
		Attr("width", fmt.Sprintf("%d", chartWidth)),
		Attr("role", "img"),
		Group(children),
	)
}

func svgText(x, y float64, anchor, content string) Node {
	return El("text",
		Attr("x", coord(x)), Attr("y", coord(y)),
		Attr("text-anchor", anchor),
		Attr("font-size", "12"), Attr("fill", "#59636e"),
		Text(content),
	)
}

func axisLine(x1, y1, x2, y2 float64) Node {
	return El("line",
		Attr("x1", coord(x1)), Attr("y1", coord(y1)),
		Attr("x2", coord(x2)), Attr("y2", coord(y2)),
		Attr("stroke", "#d1d9e0"),
	)
}

func coord(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

// barChart draws one bar per source, scaled to the largest total.
func barChart(totals []SourceTotal) Node {
	if len(totals) == 0 {
		return html.P(Text("No data."))
	}

	maxVal := totals[0].TotalGWh
	for _, t := range totals {
		if t.TotalGWh > maxVal {
			maxVal = t.TotalGWh
		}
	}
	if maxVal <= 0 {
		maxVal = 1
	}

	plotW := float64(chartWidth - chartPadLeft - 16)
	plotH := float64(chartHeight - chartPadTop - chartPadBot)
	baseY := float64(chartHeight - chartPadBot)
	slot := plotW / float64(len(totals))
	barW := slot * 0.6

	nodes := []Node{
		axisLine(chartPadLeft, chartPadTop, chartPadLeft, baseY),
		axisLine(chartPadLeft, baseY, float64(chartWidth-16), baseY),
		svgText(chartPadLeft-8, chartPadTop+4, "end", fmt.Sprintf("%.0f", maxVal)),
		svgText(chartPadLeft-8, baseY+4, "end", "0"),
	}
	for i, t := range totals {
		h := t.TotalGWh / maxVal * plotH
		x := float64(chartPadLeft) + slot*float64(i) + (slot-barW)/2
		nodes = append(nodes,
			El("rect",
				Attr("x", coord(x)), Attr("y", coord(baseY-h)),
				Attr("width", coord(barW)), Attr("height", coord(h)),
				Attr("fill", seriesColors[i%len(seriesColors)]),
			),
			svgText(x+barW/2, baseY+16, "middle", t.Source),
			svgText(x+barW/2, baseY-h-6, "middle", fmt.Sprintf("%.1f", t.TotalGWh)),
		)
	}
	return svgEl(nodes...)
}

// lineChart draws one polyline per series over a shared time axis.
func lineChart(series []TrendSeries) Node {
	var minT, maxT int64
	minV, maxV := 0.0, 0.0
	count := 0
	for _, s := range series {
		for _, p := range s.Points {
			ts := p.Timestamp.Unix()
			if count == 0 {
				minT, maxT = ts, ts
				minV, maxV = p.Value, p.Value
			} else {
				if ts < minT {
					minT = ts
				}
				if ts > maxT {
					maxT = ts
				}
				if p.Value < minV {
					minV = p.Value
				}
				if p.Value > maxV {
					maxV = p.Value
				}
			}
			count++
		}
	}
	if count == 0 {
		return html.P(Text("No data."))
	}
	if maxT == minT {
		maxT = minT + 1
	}
	if maxV == minV {
		maxV = minV + 1
	}

	plotW := float64(chartWidth - chartPadLeft - 16)
	plotH := float64(chartHeight - chartPadTop - chartPadBot)
	baseY := float64(chartHeight - chartPadBot)

	scaleX := func(ts int64) float64 {
		return float64(chartPadLeft) + float64(ts-minT)/float64(maxT-minT)*plotW
	}
	scaleY := func(v float64) float64 {
		return baseY - (v-minV)/(maxV-minV)*plotH
	}

	nodes := []Node{
		axisLine(chartPadLeft, chartPadTop, chartPadLeft, baseY),
		axisLine(chartPadLeft, baseY, float64(chartWidth-16), baseY),
		svgText(chartPadLeft-8, chartPadTop+4, "end", fmt.Sprintf("%.1f", maxV)),
		svgText(chartPadLeft-8, baseY+4, "end", fmt.Sprintf("%.1f", minV)),
	}
	for i, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		pts := make([]string, 0, len(s.Points))
		for _, p := range s.Points {
			pts = append(pts, coord(scaleX(p.Timestamp.Unix()))+","+coord(scaleY(p.Value)))
		}
		color := seriesColors[i%len(seriesColors)]
		last := s.Points[len(s.Points)-1]
		nodes = append(nodes,
			El("polyline",
				Attr("points", strings.Join(pts, " ")),
				Attr("fill", "none"),
				Attr("stroke", color),
				Attr("stroke-width", "2"),
			),
			El("text",
				Attr("x", coord(scaleX(last.Timestamp.Unix())+4)),
				Attr("y", coord(scaleY(last.Value)+4)),
				Attr("font-size", "12"), Attr("fill", color),
				Text(s.Source),
			),
		)
	}
	return svgEl(nodes...)
}
