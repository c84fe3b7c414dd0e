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
	"math"
	"testing"
)

const testTolerance = 1e-8

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func absDifferent(a, b float64) bool {
	if math.Abs(a-b) > testTolerance {
		return true
	}
	return false
}

// testCurve is a 7500 rpm curve with a realistic drooping head shape.
func testCurve() *ChartCurve {
	c, err := NewChartCurve(7500,
		[]float64{1000, 2000, 3000, 4000},
		[]float64{140e3, 135e3, 120e3, 90e3},
		[]float64{0.72, 0.75, 0.74, 0.70})
	if err != nil {
		panic(err)
	}
	return c
}

// testChart is a three-curve chart built from testCurve by fan-law
// scaling: rate scales with speed and head with speed squared.
func testChart() *CompressorChart {
	return scaledTestChart(1)
}

// scaledTestChart scales the rate axis of every curve by rateScale,
// moving the whole envelope without changing its shape.
func scaledTestChart(rateScale float64) *CompressorChart {
	base := testCurve()
	var curves []*ChartCurve
	for _, sf := range []float64{0.8, 1, 1.2} {
		rate := make([]float64, len(base.Rate))
		head := make([]float64, len(base.Head))
		for i := range base.Rate {
			rate[i] = base.Rate[i] * sf * rateScale
			head[i] = base.Head[i] * sf * sf
		}
		c, err := NewChartCurve(base.Speed*sf, rate, head, base.Efficiency)
		if err != nil {
			panic(err)
		}
		curves = append(curves, c)
	}
	chart, err := NewCompressorChart(curves)
	if err != nil {
		panic(err)
	}
	return chart
}

func TestNewChartCurve(t *testing.T) {
	// Unsorted input is sorted by rate.
	c, err := NewChartCurve(7500,
		[]float64{3000, 1000, 2000},
		[]float64{120e3, 140e3, 135e3},
		[]float64{0.74, 0.72, 0.75})
	if err != nil {
		t.Fatal(err)
	}
	if c.MinRate() != 1000 || c.MaxRate() != 3000 {
		t.Errorf("rate range = [%g, %g]; want [1000, 3000]", c.MinRate(), c.MaxRate())
	}
	if c.MaxHead() != 140e3 || c.MinHead() != 120e3 {
		t.Errorf("head range = [%g, %g]; want [120000, 140000]", c.MinHead(), c.MaxHead())
	}

	if _, err := NewChartCurve(7500, []float64{1000}, []float64{140e3}, []float64{0.72}); err == nil {
		t.Error("single-point curve should be rejected")
	}
	if _, err := NewChartCurve(7500, []float64{1000, 2000}, []float64{140e3, 135e3}, []float64{0.72, 1.5}); err == nil {
		t.Error("efficiency above 1 should be rejected")
	}
}

func TestCurveInterpolation(t *testing.T) {
	c := testCurve()
	if h := c.HeadAtRate(2500); different(h, 127.5e3, testTolerance) {
		t.Errorf("head at 2500 = %g; want 127500", h)
	}
	if e := c.EfficiencyAtRate(2500); different(e, 0.745, testTolerance) {
		t.Errorf("efficiency at 2500 = %g; want 0.745", e)
	}
	// Clamping outside the measured range.
	if h := c.HeadAtRate(500); h != 140e3 {
		t.Errorf("head below range = %g; want 140000", h)
	}
	if h := c.HeadAtRate(5000); h != 90e3 {
		t.Errorf("head above range = %g; want 90000", h)
	}
}

func TestRateAtHead(t *testing.T) {
	c := testCurve()
	// Round trip through the monotone part of the curve.
	for _, rate := range []float64{1000, 1500, 2500, 3500, 4000} {
		head := c.HeadAtRate(rate)
		if back := c.RateAtHead(head); different(back, rate, 1e-12) {
			t.Errorf("RateAtHead(HeadAtRate(%g)) = %g", rate, back)
		}
	}
	// Clamps.
	if r := c.RateAtHead(200e3); r != c.MinRate() {
		t.Errorf("rate above surge head = %g; want %g", r, c.MinRate())
	}
	if r := c.RateAtHead(10e3); r != c.MaxRate() {
		t.Errorf("rate below stonewall head = %g; want %g", r, c.MaxRate())
	}
}

func TestRateAtHeadFlatSegment(t *testing.T) {
	c, err := NewChartCurve(7500,
		[]float64{1000, 2000, 3000},
		[]float64{140e3, 140e3, 120e3},
		[]float64{0.72, 0.75, 0.74})
	if err != nil {
		t.Fatal(err)
	}
	// Over a flat head segment the inversion must pick the lowest rate.
	if r := c.RateAtHead(140e3); r != 1000 {
		t.Errorf("rate over flat segment = %g; want 1000", r)
	}
}

func TestEvaluateCapacityInternal(t *testing.T) {
	c := testCurve()
	r := c.EvaluateCapacity(2500, c.HeadAtRate(2500), false)
	if !r.Feasible() {
		t.Fatalf("internal point should be feasible: %+v", r)
	}
	if r.RateHasRecirc || r.PressureIsChoked || r.PressureIsBelowMinimum {
		t.Errorf("internal point should carry no correction flags: %+v", r)
	}
	if different(r.ASVCorrectedRate, 2500, testTolerance) {
		t.Errorf("corrected rate = %g; want 2500", r.ASVCorrectedRate)
	}
}

func TestEvaluateCapacityRecirculation(t *testing.T) {
	c := testCurve()
	head := c.HeadAtRate(2500)
	r := c.EvaluateCapacity(500, head, false)
	if !r.RateHasRecirc {
		t.Fatal("rate below minimum should be corrected by recirculation")
	}
	if different(r.ASVCorrectedRate, c.RateAtHead(head), testTolerance) {
		t.Errorf("corrected rate = %g; want %g", r.ASVCorrectedRate, c.RateAtHead(head))
	}
	if !r.Feasible() {
		t.Errorf("recirculation-corrected point should stay feasible: %+v", r)
	}
	// The correction is idempotent: re-evaluating the corrected point
	// yields the same result without the recirculation flag.
	r2 := c.EvaluateCapacity(r.ASVCorrectedRate, head, false)
	if r2.RateHasRecirc {
		t.Error("corrected point should not need recirculation again")
	}
	if absDifferent(r2.ASVCorrectedRate, r.ASVCorrectedRate) {
		t.Errorf("correction not idempotent: %g then %g", r.ASVCorrectedRate, r2.ASVCorrectedRate)
	}
}

func TestEvaluateCapacityChoking(t *testing.T) {
	c := testCurve()
	// The curve delivers more head at rate 2500 than requested.
	r := c.EvaluateCapacity(2500, 100e3, true)
	if !r.PressureIsChoked {
		t.Fatal("head below delivered should be choked when extrapolation is on")
	}
	if different(r.ChokeCorrectedHead, c.HeadAtRate(2500), testTolerance) {
		t.Errorf("choke-corrected head = %g; want %g", r.ChokeCorrectedHead, c.HeadAtRate(2500))
	}
	r = c.EvaluateCapacity(2500, 100e3, false)
	if !r.PressureIsBelowMinimum {
		t.Error("head below delivered should be flagged when extrapolation is off")
	}
	if r.Feasible() {
		t.Error("below-minimum pressure point should not be feasible")
	}
}

func TestEvaluateCapacityExceeded(t *testing.T) {
	c := testCurve()
	r := c.EvaluateCapacity(2000, 150e3, false)
	if !r.HeadExceedsMaximum {
		t.Error("head above the curve should be flagged")
	}
	r = c.EvaluateCapacity(5000, 100e3, false)
	if !r.RateExceedsMaximum {
		t.Error("rate beyond the envelope at the requested head should be flagged")
	}
	if r.Feasible() {
		t.Error("rate-exceeded point should not be feasible")
	}
}

func TestCompressorChartSpeedRange(t *testing.T) {
	c := testChart()
	if c.MinimumSpeed() != 6000 || c.MaximumSpeed() != 9000 {
		t.Errorf("speed range = [%g, %g]; want [6000, 9000]", c.MinimumSpeed(), c.MaximumSpeed())
	}
	b := c.SpeedBoundary()
	if !b.Contains(7500) || b.Contains(9500) {
		t.Errorf("speed boundary %+v misclassifies", b)
	}
}

func TestCurveAtSpeed(t *testing.T) {
	c := testChart()
	// An exact speed returns the measured curve.
	cv, err := c.CurveAtSpeed(7500)
	if err != nil {
		t.Fatal(err)
	}
	if cv != c.Curves[1] {
		t.Error("exact speed should return the measured curve")
	}
	// A speed between curves blends the envelopes.
	cv, err = c.CurveAtSpeed(6750)
	if err != nil {
		t.Fatal(err)
	}
	if different(cv.MinRate(), c.MinRateAtSpeed(6750), testTolerance) {
		t.Errorf("interpolated surge rate = %g; want %g", cv.MinRate(), c.MinRateAtSpeed(6750))
	}
	if different(cv.MaxRate(), c.MaxRateAtSpeed(6750), testTolerance) {
		t.Errorf("interpolated stonewall rate = %g; want %g", cv.MaxRate(), c.MaxRateAtSpeed(6750))
	}
	if cv.MaxHead() >= c.Curves[1].MaxHead() || cv.MaxHead() <= c.Curves[0].MaxHead() {
		t.Errorf("interpolated surge head %g outside bracketing heads (%g, %g)",
			cv.MaxHead(), c.Curves[0].MaxHead(), c.Curves[1].MaxHead())
	}
	if _, err := c.CurveAtSpeed(5000); err == nil {
		t.Error("speed below the chart range should be an error")
	}
}

func TestAreaFlag(t *testing.T) {
	c := testChart()
	cases := []struct {
		speed, rate float64
		want        ChartAreaFlag
	}{
		{7500, 2500, InternalPoint},
		{6750, c.MinRateAtSpeed(6750) * 1.1, InternalPoint},
		{7500, 500, BelowMinimumFlowRate},
		{7500, 5000, AboveMaximumFlowRate},
		{5000, 2000, BelowMinimumSpeed},
		{5000, 500, BelowMinimumSpeedAndBelowMinimumFlowRate},
		{5000, 4000, BelowMinimumSpeedAndAboveMaximumFlowRate},
		{9500, 2500, AboveMaximumSpeed},
		{9500, 500, AboveMaximumSpeedAndBelowMinimumFlowRate},
		{9500, 6000, AboveMaximumSpeedAndAboveMaximumFlowRate},
		{7500, 0, NoFlowRate},
	}
	for _, tc := range cases {
		if got := c.AreaFlag(tc.speed, tc.rate); got != tc.want {
			t.Errorf("AreaFlag(%g, %g) = %v; want %v", tc.speed, tc.rate, got, tc.want)
		}
	}
	// Classification is pure: repeated calls agree.
	if a, b := c.AreaFlag(7500, 2500), c.AreaFlag(7500, 2500); a != b {
		t.Errorf("AreaFlag not repeatable: %v then %v", a, b)
	}
}

func TestExtrapolateFinite(t *testing.T) {
	c := testChart()
	// Probe a grid covering inside and far outside the envelope; the
	// extrapolation surfaces must stay finite everywhere.
	for _, speed := range []float64{5000, 6000, 7000, 7500, 8200, 9000, 10000} {
		for _, rate := range []float64{200, 800, 2500, 4800, 6000, 9000} {
			head, eff := c.Extrapolate(speed, rate)
			if math.IsNaN(head) || math.IsInf(head, 0) {
				t.Errorf("Extrapolate(%g, %g) head = %g", speed, rate, head)
			}
			if math.IsNaN(eff) || math.IsInf(eff, 0) {
				t.Errorf("Extrapolate(%g, %g) efficiency = %g", speed, rate, eff)
			}
		}
	}
}

func TestExtrapolateSingleCurve(t *testing.T) {
	chart, err := NewCompressorChart([]*ChartCurve{testCurve()})
	if err != nil {
		t.Fatal(err)
	}
	head, eff := chart.Extrapolate(7500, 2500)
	if different(head, 127.5e3, testTolerance) {
		t.Errorf("single-curve head = %g; want 127500", head)
	}
	if different(eff, 0.745, testTolerance) {
		t.Errorf("single-curve efficiency = %g; want 0.745", eff)
	}
}

func TestNewCompressorChartDuplicateSpeed(t *testing.T) {
	a := testCurve()
	b := testCurve()
	if _, err := NewCompressorChart([]*ChartCurve{a, b}); err == nil {
		t.Error("duplicate curve speeds should be rejected")
	}
}
