package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/forager/internal/security"
)

var (
	searchColor = color.RGBA{R: 49, G: 104, B: 142, A: 255}
	carryColor  = color.RGBA{R: 53, G: 183, B: 121, A: 255}
	homeColor   = color.RGBA{R: 220, G: 60, B: 40, A: 255}
)

// PathPlotter renders a tracker's path and home estimates to a PNG.
type PathPlotter struct {
	tracker *Tracker
	title   string
}

func NewPathPlotter(tracker *Tracker, title string) *PathPlotter {
	return &PathPlotter{tracker: tracker, title: title}
}

// Save writes the plot to dir/name, creating dir if needed. name is
// sanitised into a plain file name. It returns the written file path. An
// empty path is not an error; nothing is written.
func (pp *PathPlotter) Save(dir, name string) (string, error) {
	path := pp.tracker.Path()
	if len(path) == 0 {
		logf("no path recorded, skipping plot")
		return "", nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = pp.title
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	p.Add(plotter.NewGrid())

	// Split the path into runs of constant carrying so the line colour
	// shows which legs were driven with an item.
	var (
		segment  plotter.XYs
		carrying = path[0].Carrying
		legend   = map[bool]bool{}
	)
	flush := func() error {
		if len(segment) < 2 {
			return nil
		}
		line, err := plotter.NewLine(segment)
		if err != nil {
			return err
		}
		line.Width = vg.Points(1)
		line.Color = searchColor
		label := "searching"
		if carrying {
			line.Color = carryColor
			label = "carrying"
		}
		p.Add(line)
		if !legend[carrying] {
			legend[carrying] = true
			p.Legend.Add(label, line)
		}
		return nil
	}
	for _, pt := range path {
		if pt.Carrying != carrying {
			last := segment[len(segment)-1]
			if err := flush(); err != nil {
				return "", err
			}
			// Start the next leg where the previous ended.
			segment = plotter.XYs{last}
			carrying = pt.Carrying
		}
		segment = append(segment, plotter.XY{X: pt.X, Y: pt.Y})
	}
	if err := flush(); err != nil {
		return "", err
	}

	if homes := pp.tracker.Homes(); len(homes) > 0 {
		pts := make(plotter.XYs, len(homes))
		for i, h := range homes {
			pts[i] = plotter.XY{X: h.X, Y: h.Y}
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return "", err
		}
		scatter.GlyphStyle.Color = homeColor
		scatter.GlyphStyle.Shape = draw.CrossGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
		p.Legend.Add("home estimate", scatter)
	}

	out := filepath.Join(dir, security.SanitizeFilename(name))
	if err := security.ValidatePathWithinDirectory(out, dir); err != nil {
		return "", err
	}
	if err := p.Save(8*vg.Inch, 8*vg.Inch, out); err != nil {
		return "", fmt.Errorf("failed to save plot: %w", err)
	}
	logf("saved path plot to %s (%d points)", out, len(path))
	return out, nil
}
