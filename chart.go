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
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// ChartCurve is the measured performance of a compressor at one shaft
// speed [rpm]: polytropic head [J/kg] and efficiency [fraction] as
// functions of actual volumetric rate [m³/h]. Points are sorted and
// deduplicated by rate at construction; head is expected to fall as
// rate rises (surge side to stonewall side).
type ChartCurve struct {
	Speed      float64
	Rate       []float64
	Head       []float64
	Efficiency []float64
}

// NewChartCurve validates and normalizes one chart curve. A curve needs
// at least two distinct rate points. A head that rises with rate is
// physically suspect but tolerated with a warning.
func NewChartCurve(speed float64, rate, head, efficiency []float64) (*ChartCurve, error) {
	if len(rate) != len(head) || len(rate) != len(efficiency) {
		return nil, fmt.Errorf("entrain: chart curve arrays must have equal lengths; got rate=%d head=%d efficiency=%d",
			len(rate), len(head), len(efficiency))
	}
	if speed < 0 {
		return nil, fmt.Errorf("entrain: chart curve speed must be non-negative; got %g", speed)
	}
	type pt struct{ r, h, e float64 }
	points := make([]pt, 0, len(rate))
	for i := range rate {
		points = append(points, pt{rate[i], head[i], efficiency[i]})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].r < points[j].r })
	// Deduplicate by rate, keeping the first occurrence.
	dedup := points[:0]
	for i, p := range points {
		if i > 0 && p.r == dedup[len(dedup)-1].r {
			continue
		}
		dedup = append(dedup, p)
	}
	if len(dedup) < 2 {
		return nil, fmt.Errorf("entrain: chart curve needs at least two distinct rate points; got %d", len(dedup))
	}
	c := &ChartCurve{
		Speed:      speed,
		Rate:       make([]float64, len(dedup)),
		Head:       make([]float64, len(dedup)),
		Efficiency: make([]float64, len(dedup)),
	}
	for i, p := range dedup {
		if p.e <= 0 || p.e > 1 {
			return nil, fmt.Errorf("entrain: chart curve efficiency must be in (0,1]; got %g at rate %g", p.e, p.r)
		}
		c.Rate[i] = p.r
		c.Head[i] = p.h
		c.Efficiency[i] = p.e
	}
	for i := 1; i < len(c.Head); i++ {
		if c.Head[i] > c.Head[i-1] {
			logrus.WithFields(logrus.Fields{
				"speed": speed, "rate": c.Rate[i],
			}).Warn("entrain: chart curve head increases with rate")
			break
		}
	}
	return c, nil
}

// MinRate returns the lowest measured rate (the surge point).
func (c *ChartCurve) MinRate() float64 { return c.Rate[0] }

// MaxRate returns the highest measured rate (the stonewall point).
func (c *ChartCurve) MaxRate() float64 { return c.Rate[len(c.Rate)-1] }

// MaxHead returns the head at the surge point.
func (c *ChartCurve) MaxHead() float64 { return c.Head[0] }

// MinHead returns the head at the stonewall point.
func (c *ChartCurve) MinHead() float64 { return c.Head[len(c.Head)-1] }

// HeadAtRate returns the polytropic head delivered at the given rate,
// clamped to the measured rate range.
func (c *ChartCurve) HeadAtRate(rate float64) float64 {
	return interpolate(rate, c.Rate, c.Head)
}

// EfficiencyAtRate returns the polytropic efficiency at the given rate,
// clamped to the measured rate range.
func (c *ChartCurve) EfficiencyAtRate(rate float64) float64 {
	return interpolate(rate, c.Rate, c.Efficiency)
}

// RateAtHead inverts head-vs-rate: the rate at which the curve delivers
// the given head. Heads above the surge head clamp to the minimum rate
// and heads below the stonewall head clamp to the maximum rate. The
// inversion relies on head being non-increasing with rate; over any
// flat segment the lowest rate is returned.
func (c *ChartCurve) RateAtHead(head float64) float64 {
	if head >= c.Head[0] {
		return c.Rate[0]
	}
	last := len(c.Head) - 1
	if head <= c.Head[last] {
		return c.Rate[last]
	}
	for i := 1; i <= last; i++ {
		if head >= c.Head[i] {
			h0, h1 := c.Head[i-1], c.Head[i]
			if h0 == h1 {
				return c.Rate[i-1]
			}
			frac := (head - h0) / (h1 - h0)
			return c.Rate[i-1] + frac*(c.Rate[i]-c.Rate[i-1])
		}
	}
	return c.Rate[last]
}

// CapacityResult is the outcome of evaluating a requested (rate, head)
// operating point against a single curve's capacity.
type CapacityResult struct {
	// ASVCorrectedRate is the requested rate raised, if necessary, to
	// the minimum the curve allows at the requested head.
	ASVCorrectedRate float64
	// ChokeCorrectedHead is the requested head raised, if allowed, to
	// the head the curve delivers at the corrected rate.
	ChokeCorrectedHead float64
	// Head and Efficiency are the curve values at the corrected point.
	Head       float64
	Efficiency float64

	RateHasRecirc          bool
	PressureIsChoked       bool
	PressureIsBelowMinimum bool
	RateExceedsMaximum     bool
	HeadExceedsMaximum     bool
}

// Feasible reports whether the corrected point lies on the curve's
// deliverable envelope.
func (r CapacityResult) Feasible() bool {
	return !r.RateExceedsMaximum && !r.HeadExceedsMaximum && !r.PressureIsBelowMinimum
}

// EvaluateCapacity classifies a requested (rate, head) point against
// the curve and corrects it onto the deliverable envelope where
// possible. Rates below the minimum allowed at the requested head are
// raised to that minimum (anti-surge recirculation). Heads below what
// the curve delivers at the corrected rate are either raised to the
// delivered head (extrapolate=true: the surplus pressure is choked
// away) or flagged as below minimum. Rates beyond the maximum for the
// corrected head make the point infeasible; the caller reports NaN
// power for such points but the corrected values remain defined so that
// iterative callers can keep probing.
func (c *ChartCurve) EvaluateCapacity(rate, head float64, extrapolate bool) CapacityResult {
	r := CapacityResult{ASVCorrectedRate: rate, ChokeCorrectedHead: head}

	minRate := c.RateAtHead(head)
	if rate < minRate {
		r.ASVCorrectedRate = minRate
		r.RateHasRecirc = true
	}

	delivered := c.HeadAtRate(r.ASVCorrectedRate)
	if head < delivered && !onCurve(head, delivered) {
		if extrapolate {
			r.ChokeCorrectedHead = delivered
			r.PressureIsChoked = true
		} else {
			r.PressureIsBelowMinimum = true
		}
	}

	r.Head = c.HeadAtRate(r.ASVCorrectedRate)
	r.Efficiency = c.EfficiencyAtRate(r.ASVCorrectedRate)

	maxRate := c.RateAtHead(r.ChokeCorrectedHead)
	if r.ASVCorrectedRate > maxRate && !onCurve(r.ASVCorrectedRate, maxRate) &&
		r.Head < r.ChokeCorrectedHead {
		r.RateExceedsMaximum = true
	}

	if head > r.Head && !onCurve(head, r.Head) {
		r.HeadExceedsMaximum = true
	}
	return r
}

// onCurve absorbs floating-point noise when comparing a corrected rate
// against the envelope it was just projected onto.
func onCurve(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

// CompressorChart is the capacity envelope of one compression stage: an
// immutable set of curves at distinct speeds. Charts with at least two
// curves carry piecewise-linear extrapolation surfaces for head and
// efficiency, bounded by the convex hull of all measured points, used
// when solvers probe outside the measured envelope.
type CompressorChart struct {
	Curves []*ChartCurve // ascending speed

	headSurface       *hullSurface
	efficiencySurface *hullSurface
}

// NewCompressorChart builds a chart from one or more curves with
// distinct speeds.
func NewCompressorChart(curves []*ChartCurve) (*CompressorChart, error) {
	if len(curves) == 0 {
		return nil, fmt.Errorf("entrain: compressor chart needs at least one curve")
	}
	sorted := make([]*ChartCurve, len(curves))
	copy(sorted, curves)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Speed < sorted[j].Speed })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Speed == sorted[i-1].Speed {
			return nil, fmt.Errorf("entrain: compressor chart has duplicate curves at speed %g", sorted[i].Speed)
		}
	}
	c := &CompressorChart{Curves: sorted}
	if len(sorted) > 1 {
		var headPts, effPts []hullPoint
		for _, cv := range sorted {
			for i := range cv.Rate {
				headPts = append(headPts, hullPoint{x: cv.Rate[i], y: cv.Speed, z: cv.Head[i]})
				effPts = append(effPts, hullPoint{x: cv.Rate[i], y: cv.Speed, z: cv.Efficiency[i]})
			}
		}
		c.headSurface = newHullSurface(headPts)
		c.efficiencySurface = newHullSurface(effPts)
	}
	return c, nil
}

// MinimumSpeed returns the lowest curve speed.
func (c *CompressorChart) MinimumSpeed() float64 { return c.Curves[0].Speed }

// MaximumSpeed returns the highest curve speed.
func (c *CompressorChart) MaximumSpeed() float64 { return c.Curves[len(c.Curves)-1].Speed }

// SpeedBoundary returns the chart's speed range as a search interval.
func (c *CompressorChart) SpeedBoundary() Boundary {
	return Boundary{Min: c.MinimumSpeed(), Max: c.MaximumSpeed()}
}

// MinRateAtSpeed returns the surge-line rate at the given speed,
// interpolated between curves and clamped to the speed range.
func (c *CompressorChart) MinRateAtSpeed(speed float64) float64 {
	return c.envelopeRate(speed, (*ChartCurve).MinRate)
}

// MaxRateAtSpeed returns the stonewall rate at the given speed,
// interpolated between curves and clamped to the speed range.
func (c *CompressorChart) MaxRateAtSpeed(speed float64) float64 {
	return c.envelopeRate(speed, (*ChartCurve).MaxRate)
}

func (c *CompressorChart) envelopeRate(speed float64, rate func(*ChartCurve) float64) float64 {
	speeds := make([]float64, len(c.Curves))
	rates := make([]float64, len(c.Curves))
	for i, cv := range c.Curves {
		speeds[i] = cv.Speed
		rates[i] = rate(cv)
	}
	return interpolate(speed, speeds, rates)
}

// MinRateAtHead returns the surge-line rate as a function of head,
// built from the surge point of every curve.
func (c *CompressorChart) MinRateAtHead(head float64) float64 {
	heads := make([]float64, len(c.Curves))
	rates := make([]float64, len(c.Curves))
	for i, cv := range c.Curves {
		heads[i] = cv.MaxHead()
		rates[i] = cv.MinRate()
	}
	return interpolate(head, heads, rates)
}

// MaxRateAtHead returns the stonewall rate as a function of head, built
// from the stonewall point of every curve.
func (c *CompressorChart) MaxRateAtHead(head float64) float64 {
	heads := make([]float64, len(c.Curves))
	rates := make([]float64, len(c.Curves))
	for i, cv := range c.Curves {
		heads[i] = cv.MinHead()
		rates[i] = cv.MaxRate()
	}
	return interpolate(head, heads, rates)
}

// CurveAtSpeed returns the curve describing the chart at the given
// speed. Speeds matching a measured curve return that curve; speeds
// strictly between two curves return a synthetic curve built by
// fractional-distance interpolation: corresponding positions along each
// bracketing curve's rate envelope are blended, which keeps the
// synthetic curve's surge and stonewall points consistent with the
// interpolated envelopes. Speeds outside the chart range are an error;
// callers must validate against SpeedBoundary first.
func (c *CompressorChart) CurveAtSpeed(speed float64) (*ChartCurve, error) {
	if speed < c.MinimumSpeed() || speed > c.MaximumSpeed() {
		return nil, fmt.Errorf("entrain: speed %g outside chart range [%g, %g]",
			speed, c.MinimumSpeed(), c.MaximumSpeed())
	}
	var lo, hi *ChartCurve
	for _, cv := range c.Curves {
		if cv.Speed == speed {
			return cv, nil
		}
		if cv.Speed < speed {
			lo = cv
		} else {
			hi = cv
			break
		}
	}
	frac := (speed - lo.Speed) / (hi.Speed - lo.Speed)
	n := len(lo.Rate)
	if len(hi.Rate) > n {
		n = len(hi.Rate)
	}
	curve := &ChartCurve{
		Speed:      speed,
		Rate:       make([]float64, n),
		Head:       make([]float64, n),
		Efficiency: make([]float64, n),
	}
	for j := 0; j < n; j++ {
		u := float64(j) / float64(n-1)
		rLo := lo.MinRate() + u*(lo.MaxRate()-lo.MinRate())
		rHi := hi.MinRate() + u*(hi.MaxRate()-hi.MinRate())
		curve.Rate[j] = (1-frac)*rLo + frac*rHi
		curve.Head[j] = (1-frac)*lo.HeadAtRate(rLo) + frac*hi.HeadAtRate(rHi)
		curve.Efficiency[j] = (1-frac)*lo.EfficiencyAtRate(rLo) + frac*hi.EfficiencyAtRate(rHi)
	}
	return curve, nil
}

// AreaFlag classifies an operating point against the chart envelope.
// It is a pure function of the point and the chart.
func (c *CompressorChart) AreaFlag(speed, rate float64) ChartAreaFlag {
	if rate == 0 || math.IsNaN(rate) {
		return NoFlowRate
	}
	switch {
	case speed < c.MinimumSpeed():
		switch {
		case rate < c.Curves[0].MinRate():
			return BelowMinimumSpeedAndBelowMinimumFlowRate
		case rate > c.Curves[0].MaxRate():
			return BelowMinimumSpeedAndAboveMaximumFlowRate
		}
		return BelowMinimumSpeed
	case speed > c.MaximumSpeed():
		top := c.Curves[len(c.Curves)-1]
		switch {
		case rate < top.MinRate():
			return AboveMaximumSpeedAndBelowMinimumFlowRate
		case rate > top.MaxRate():
			return AboveMaximumSpeedAndAboveMaximumFlowRate
		}
		return AboveMaximumSpeed
	case rate < c.MinRateAtSpeed(speed):
		return BelowMinimumFlowRate
	case rate > c.MaxRateAtSpeed(speed):
		return AboveMaximumFlowRate
	}
	return InternalPoint
}

// Extrapolate returns head and efficiency at a point that may lie
// outside the measured envelope, using the hull-bounded surfaces. The
// result is always finite so gradient-based iteration over infeasible
// probe points stays well behaved; feasibility is reported separately
// through AreaFlag. Single-curve charts extrapolate along their one
// curve.
func (c *CompressorChart) Extrapolate(speed, rate float64) (head, efficiency float64) {
	if c.headSurface == nil {
		cv := c.Curves[0]
		return cv.HeadAtRate(rate), cv.EfficiencyAtRate(rate)
	}
	return c.headSurface.At(rate, speed), c.efficiencySurface.At(rate, speed)
}

// interpolate linearly interpolates y(x) over sorted xs, clamping x to
// the sampled range. xs may be ascending or descending.
func interpolate(x float64, xs, ys []float64) float64 {
	n := len(xs)
	if n == 1 {
		return ys[0]
	}
	if xs[0] > xs[n-1] { // descending: flip the lookup
		rx := make([]float64, n)
		ry := make([]float64, n)
		for i := range xs {
			rx[n-1-i] = xs[i]
			ry[n-1-i] = ys[i]
		}
		return interpolate(x, rx, ry)
	}
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	i := sort.SearchFloat64s(xs, x)
	if xs[i] == x {
		return ys[i]
	}
	frac := (x - xs[i-1]) / (xs[i] - xs[i-1])
	return ys[i-1] + frac*(ys[i]-ys[i-1])
}
