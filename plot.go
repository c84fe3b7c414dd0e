/*
Copyright © 2026 the Entrain authors.
This file is part of Entrain.

Entrain is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Entrain is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Entrain.  If not, see <http://www.gnu.org/licenses/>.
*/

package entrain

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// OperatingPoint is one evaluated (rate, head) point for overlaying on
// a chart plot.
type OperatingPoint struct {
	Rate float64 // [m³/h]
	Head float64 // [J/kg]
	Flag ChartAreaFlag
}

// PlotChart renders a compressor chart: one head-vs-rate line per
// measured curve, the surge and stonewall envelopes, and optionally the
// operating points of a run.
func PlotChart(c *CompressorChart, points []OperatingPoint, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Actual rate (m³/h)"
	p.Y.Label.Text = "Polytropic head (J/kg)"

	var args []interface{}
	for _, cv := range c.Curves {
		xy := make(plotter.XYs, len(cv.Rate))
		for i := range cv.Rate {
			xy[i].X = cv.Rate[i]
			xy[i].Y = cv.Head[i]
		}
		args = append(args, fmt.Sprintf("%.0f rpm", cv.Speed), xy)
	}
	// The surge and stonewall lines are the chart's rate envelopes as
	// functions of head, sampled at each curve's end point heads.
	surge := make(plotter.XYs, len(c.Curves))
	stonewall := make(plotter.XYs, len(c.Curves))
	for i, cv := range c.Curves {
		surge[i].Y = cv.MaxHead()
		surge[i].X = c.MinRateAtHead(cv.MaxHead())
		stonewall[i].Y = cv.MinHead()
		stonewall[i].X = c.MaxRateAtHead(cv.MinHead())
	}
	if len(c.Curves) > 1 {
		args = append(args, "surge", surge, "stonewall", stonewall)
	}
	if err := plotutil.AddLinePoints(p, args...); err != nil {
		return nil, fmt.Errorf("entrain: plotting chart curves: %v", err)
	}

	if len(points) > 0 {
		xy := make(plotter.XYs, len(points))
		for i, pt := range points {
			xy[i].X = pt.Rate
			xy[i].Y = pt.Head
		}
		if err := plotutil.AddScatters(p, "operating points", xy); err != nil {
			return nil, fmt.Errorf("entrain: plotting operating points: %v", err)
		}
	}
	p.Y.Min = 0
	return p, nil
}

// SaveChartPlot renders a chart to an image file; the format follows
// the file extension (png, svg, pdf).
func SaveChartPlot(c *CompressorChart, points []OperatingPoint, title, filename string) error {
	p, err := PlotChart(c, points, title)
	if err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 4.5*vg.Inch, filename)
}
