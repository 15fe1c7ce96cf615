// Package statistics renders the hourly snapshot history as charts for the admin dashboard.
package statistics

import (
	"bytes"
	"fmt"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Chart layout constants.
const (
	// HoursToShow is the number of hourly points on the x-axis.
	HoursToShow = 24

	titleFontSize   = 12.0
	xAxisFontSize   = 10.0
	yAxisFontSize   = 12.0
	xAxisRotation   = 45.0
	gridLineWidth   = 1.0
	seriesLineWidth = 3.0
	seriesDotWidth  = 4.0
	padding         = 20
	paddingVertical = 30
)

// ChartBuilder creates charts from hourly snapshots.
type ChartBuilder struct {
	stats map[time.Time]*types.HourlyStats
	end   time.Time
}

// NewChartBuilder indexes the snapshots by hour. The chart covers the
// HoursToShow hours ending at the hour containing now.
func NewChartBuilder(stats []*types.HourlyStats, now time.Time) *ChartBuilder {
	indexed := make(map[time.Time]*types.HourlyStats, len(stats))
	for _, stat := range stats {
		indexed[stat.Timestamp.UTC().Truncate(time.Hour)] = stat
	}

	return &ChartBuilder{
		stats: indexed,
		end:   now.UTC().Truncate(time.Hour),
	}
}

// BuildActivity renders submission counters as a PNG.
func (b *ChartBuilder) BuildActivity() (*bytes.Buffer, error) {
	xValues := b.xValues()

	graph := &chart.Chart{
		Title:      "Submission Activity (24h)",
		TitleStyle: chart.Style{FontSize: titleFontSize},
		Background: backgroundStyle(),
		XAxis:      b.xAxis(),
		YAxis:      yAxis(),
		Series: []chart.Series{
			series("Reports", xValues, b.values(func(s *types.HourlyStats) int64 { return s.TotalReports }), chart.ColorBlue),
			series("Validated", xValues, b.values(func(s *types.HourlyStats) int64 { return s.ValidatedReports }), chart.ColorGreen),
			series("Uploads", xValues, b.values(func(s *types.HourlyStats) int64 { return s.TotalUploads }), chart.ColorOrange),
			series("Approved", xValues, b.values(func(s *types.HourlyStats) int64 { return s.ApprovedUploads }), chart.ColorCyan),
			series("Pending", xValues, b.values(func(s *types.HourlyStats) int64 { return s.PendingAnalyses }), chart.ColorRed),
		},
	}

	return render(graph)
}

// BuildPoints renders registered users and credited points as a PNG.
func (b *ChartBuilder) BuildPoints() (*bytes.Buffer, error) {
	xValues := b.xValues()

	graph := &chart.Chart{
		Title:      "Users and Points (24h)",
		TitleStyle: chart.Style{FontSize: titleFontSize},
		Background: backgroundStyle(),
		XAxis:      b.xAxis(),
		YAxis:      yAxis(),
		Series: []chart.Series{
			series("Users", xValues, b.values(func(s *types.HourlyStats) int64 { return s.TotalUsers }), chart.ColorBlue),
			series("Points", xValues, b.values(func(s *types.HourlyStats) int64 { return s.PointsCredited }), chart.ColorGreen),
		},
	}

	return render(graph)
}

func render(graph *chart.Chart) (*bytes.Buffer, error) {
	graph.Elements = []chart.Renderable{chart.Legend(graph)}
	graph.YAxis.Range = yRange(graph.Series)

	buf := new(bytes.Buffer)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	return buf, nil
}

// yRange starts the axis at zero. A flat history still gets a non-empty range.
func yRange(all []chart.Series) *chart.ContinuousRange {
	highest := 0.0
	for _, s := range all {
		if cs, ok := s.(chart.ContinuousSeries); ok {
			for _, v := range cs.YValues {
				highest = max(highest, v)
			}
		}
	}

	return &chart.ContinuousRange{Min: 0, Max: max(highest*1.1, 1)}
}

func (b *ChartBuilder) xValues() []float64 {
	xValues := make([]float64, HoursToShow)
	for i := range HoursToShow {
		xValues[i] = float64(i)
	}
	return xValues
}

// values extracts one counter per hour, oldest first. Missing hours are zero.
func (b *ChartBuilder) values(field func(*types.HourlyStats) int64) []float64 {
	values := make([]float64, HoursToShow)

	for i := range HoursToShow {
		hour := b.end.Add(time.Duration(i-HoursToShow+1) * time.Hour)
		if stat, ok := b.stats[hour]; ok {
			values[i] = float64(field(stat))
		}
	}

	return values
}

func (b *ChartBuilder) xAxis() chart.XAxis {
	gridLines := make([]chart.GridLine, HoursToShow)
	ticks := make([]chart.Tick, HoursToShow)

	for i := range HoursToShow {
		gridLines[i] = chart.GridLine{Value: float64(i)}
		ticks[i] = chart.Tick{
			Value: float64(i),
			Label: fmt.Sprintf("%dh ago", HoursToShow-1-i),
		}
	}

	return chart.XAxis{
		Style: chart.Style{
			FontSize:            xAxisFontSize,
			TextRotationDegrees: xAxisRotation,
		},
		GridMajorStyle: chart.Style{
			StrokeColor: chart.ColorAlternateGray,
			StrokeWidth: gridLineWidth,
		},
		GridLines:    gridLines,
		Ticks:        ticks,
		TickPosition: chart.TickPositionUnderTick,
	}
}

func yAxis() chart.YAxis {
	return chart.YAxis{
		Style: chart.Style{FontSize: yAxisFontSize},
		GridMajorStyle: chart.Style{
			StrokeColor: chart.ColorAlternateGray,
			StrokeWidth: gridLineWidth,
		},
		ValueFormatter: func(v any) string {
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%.0f", f)
			}
			return ""
		},
	}
}

func backgroundStyle() chart.Style {
	return chart.Style{
		Padding: chart.Box{
			Top:    paddingVertical,
			Left:   padding,
			Right:  padding,
			Bottom: paddingVertical,
		},
	}
}

func series(name string, xValues, yValues []float64, color drawing.Color) chart.Series {
	return chart.ContinuousSeries{
		Name:    name,
		XValues: xValues,
		YValues: yValues,
		Style: chart.Style{
			StrokeColor: color,
			StrokeWidth: seriesLineWidth,
			DotColor:    color,
			DotWidth:    seriesDotWidth,
		},
	}
}
