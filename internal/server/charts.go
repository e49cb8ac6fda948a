package server

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ayusman/hypnosonore/internal/app"
	"github.com/ayusman/hypnosonore/internal/gesture"
)

// HistorySource returns recent metrics, oldest first. *app.App satisfies it.
type HistorySource interface {
	History() []app.Sample
	Thresholds() gesture.Thresholds
}

// MetricsChartHandler renders the metrics history as an HTML line chart
// with the activate thresholds drawn as mark lines.
type MetricsChartHandler struct {
	source HistorySource
}

// NewMetricsChartHandler creates a MetricsChartHandler.
func NewMetricsChartHandler(source HistorySource) *MetricsChartHandler {
	return &MetricsChartHandler{source: source}
}

func (h *MetricsChartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	samples := h.source.History()
	t := h.source.Thresholds()

	x := make([]string, len(samples))
	series := make(map[string][]opts.LineData, 5)
	var names []string
	for i, s := range samples {
		x[i] = s.Time.Format("15:04:05.000")
		for _, f := range s.Metrics.Fields() {
			if i == 0 {
				names = append(names, f.Name)
			}
			if !s.Face {
				series[f.Name] = append(series[f.Name], opts.LineData{Value: nil})
				continue
			}
			series[f.Name] = append(series[f.Name], opts.LineData{Value: f.Value})
		}
	}

	marks := map[string]float64{
		"pitch":      t.Nod.Activate,
		"yaw":        t.Turn.Activate,
		"mouthWidth": t.Smile.WidthActivate,
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Face metrics", Theme: "dark", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: "Face metrics", Subtitle: fmt.Sprintf("samples=%d at %s", len(samples), time.Now().Format(time.RFC3339))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	line.SetXAxis(x)
	for _, name := range names {
		seriesOpts := []charts.SeriesOpts{charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})}
		if v, ok := marks[name]; ok {
			seriesOpts = append(seriesOpts, charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: name + " activate", YAxis: v}))
		}
		line.AddSeries(name, series[name], seriesOpts...)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		http.Error(w, fmt.Sprintf("render error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
