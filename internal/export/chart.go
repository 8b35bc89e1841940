package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/HerbHall/sshcheck/pkg/models"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoChartData is returned when no result carries a measured response time.
var ErrNoChartData = errors.New("no measured response times to chart")

var categoryColors = map[models.Category]drawing.Color{
	models.CategorySuccess: {R: 40, G: 167, B: 69, A: 255},
	models.CategoryDanger:  {R: 220, G: 53, B: 69, A: 255},
	models.CategoryWarning: {R: 255, G: 193, B: 7, A: 255},
	models.CategoryError:   {R: 114, G: 28, B: 36, A: 255},
}

// WriteChart renders a PNG bar chart of response time per server, bars
// colored by status category. Unmeasured results are skipped.
func WriteChart(w io.Writer, results []models.CheckResult) error {
	var bars []chart.Value
	var peak float64
	for i := range results {
		r := &results[i]
		if !r.Measured {
			continue
		}
		ms := r.ResponseTimeMs()
		if ms > peak {
			peak = ms
		}
		color := categoryColors[r.Status.Category()]
		bars = append(bars, chart.Value{
			Label: r.Server,
			Value: ms,
			Style: chart.Style{
				FillColor:   color,
				StrokeColor: color,
				StrokeWidth: 1,
			},
		})
	}
	if len(bars) == 0 {
		return ErrNoChartData
	}
	if peak <= 0 {
		peak = 1
	}

	width := 120 + 60*len(bars)
	if width < 600 {
		width = 600
	}

	graph := chart.BarChart{
		Title: "SSH Response Time (ms)",
		TitleStyle: chart.Style{
			FontSize: 14,
		},
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		Width:      width,
		Height:     400,
		BarWidth:   40,
		BarSpacing: 20,
		XAxis: chart.Style{
			FontSize: 8,
		},
		YAxis: chart.YAxis{
			Style: chart.Style{
				StrokeColor: drawing.ColorBlack,
				FontSize:    10,
			},
			Range: &chart.ContinuousRange{Min: 0, Max: peak * 1.1},
		},
		Bars: bars,
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
