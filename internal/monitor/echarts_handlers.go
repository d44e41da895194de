package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/forager/internal/httputil"
)

// handleTrajectory renders the driven path, home estimates and current goal
// as an HTML scatter chart.
func (ws *WebServer) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	path := ws.tracker.Path()
	if len(path) == 0 {
		httputil.NotFound(w, "no path recorded yet")
		return
	}

	maxAbs := 0.0
	extend := func(x, y float64) {
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(x), math.Abs(y)))
	}

	searching := make([]opts.ScatterData, 0, len(path))
	carrying := make([]opts.ScatterData, 0)
	for _, p := range path {
		extend(p.X, p.Y)
		d := opts.ScatterData{Value: []interface{}{p.X, p.Y}, Name: p.State}
		if p.Carrying {
			carrying = append(carrying, d)
		} else {
			searching = append(searching, d)
		}
	}

	homes := ws.tracker.Homes()
	homeData := make([]opts.ScatterData, 0, len(homes))
	for _, h := range homes {
		extend(h.X, h.Y)
		homeData = append(homeData, opts.ScatterData{Value: []interface{}{h.X, h.Y}})
	}

	var goalData []opts.ScatterData
	snap, ok := ws.tracker.Latest()
	if ok {
		extend(snap.Goal.X, snap.Goal.Y)
		goalData = append(goalData, opts.ScatterData{Value: []interface{}{snap.Goal.X, snap.Goal.Y}, Name: "goal"})
	}

	// Square, symmetric axes so the path is not distorted.
	pad := maxAbs * 1.1
	if pad == 0 {
		pad = 1.0
	}

	subtitle := fmt.Sprintf("points=%d home samples=%d", len(path), len(homes))
	if ok {
		subtitle = fmt.Sprintf("%s state=%s protocol=%s delivered=%d", subtitle, snap.State, snap.Protocol, snap.Delivered)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Forager trajectory", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: ws.titleName(), Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("searching", searching, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	scatter.AddSeries("carrying", carrying, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	scatter.AddSeries("home estimate", homeData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	scatter.AddSeries("goal", goalData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (ws *WebServer) titleName() string {
	if ws.name == "" {
		return "Trajectory"
	}
	return ws.name + " trajectory"
}
