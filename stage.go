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

	"github.com/sirupsen/logrus"
)

// rGas is the universal gas constant [J/(mol·K)].
const rGas = 8.314462618

// StageConfig describes one physical compression stage. It is supplied
// once at train construction and never mutated.
type StageConfig struct {
	Chart *CompressorChart
	// InletTemperature [K] is the temperature the inter-stage cooler
	// conditions the inlet stream to.
	InletTemperature float64
	// PressureDropAhead [Pa] is a fixed pressure loss (scrubber,
	// cooler, piping) upstream of the stage inlet.
	PressureDropAhead float64
	// RemoveLiquid removes condensed liquid from the inlet stream
	// after cooling.
	RemoveLiquid bool
	// ControlMarginFraction shifts the usable minimum flow up by this
	// fraction of the rate range, reserving surge-control margin.
	ControlMarginFraction float64
}

// Stage evaluates one compression stage: choke, cooling, liquid
// removal, anti-surge recirculation, compression and de-recirculation.
type Stage struct {
	StageConfig
	Log logrus.FieldLogger
}

// NewStage validates a stage configuration.
func NewStage(cfg StageConfig) (*Stage, error) {
	if cfg.Chart == nil {
		return nil, fmt.Errorf("entrain: stage needs a compressor chart")
	}
	if cfg.InletTemperature <= 0 {
		return nil, fmt.Errorf("entrain: stage inlet temperature must be positive; got %g K", cfg.InletTemperature)
	}
	if cfg.PressureDropAhead < 0 {
		return nil, fmt.Errorf("entrain: stage pressure drop must be non-negative; got %g Pa", cfg.PressureDropAhead)
	}
	if cfg.ControlMarginFraction < 0 || cfg.ControlMarginFraction >= 1 {
		return nil, fmt.Errorf("entrain: stage control margin must be in [0,1); got %g", cfg.ControlMarginFraction)
	}
	return &Stage{StageConfig: cfg, Log: logrus.StandardLogger()}, nil
}

// StageResult is the immutable outcome of evaluating one stage at one
// time step. All derived values are computed eagerly at construction.
type StageResult struct {
	// Inlet is the conditioned inlet stream (after choke, cooling and
	// liquid removal); Outlet is the true discharge stream after the
	// recirculated mass is removed again.
	Inlet, Outlet Stream

	Speed                float64 // [rpm]
	Power                float64 // [W]; NaN when the point is infeasible
	PolytropicHead       float64 // [J/kg]
	PolytropicEfficiency float64 // [fraction]
	// ActualRate is the volumetric rate through the compressor
	// including recirculation [m³/h].
	ActualRate float64
	// RecirculationRate is the recirculated mass rate [kg/h] and
	// RecirculationLoss the power spent compressing it [W].
	RecirculationRate float64
	RecirculationLoss float64
	// LiquidRemoved is the mass rate of liquid taken out upstream of
	// compression [kg/h].
	LiquidRemoved float64

	ChartArea ChartAreaFlag
	Valid     bool
}

// conditionInlet applies the pressure-drop choke, isobaric cooling to
// the configured inlet temperature, and optional liquid removal.
func (st *Stage) conditionInlet(inlet Stream) (Stream, float64, error) {
	p := inlet.Pressure - st.PressureDropAhead
	if p <= 0 {
		return Stream{}, 0, fmt.Errorf("entrain: stage pressure drop %g Pa exceeds inlet pressure %g Pa",
			st.PressureDropAhead, inlet.Pressure)
	}
	conditioned, err := inlet.FlashPT(p, st.InletTemperature)
	if err != nil {
		return Stream{}, 0, err
	}
	var liquid float64
	if st.RemoveLiquid {
		dry, props, frac, err := conditioned.Fluid.RemoveLiquid(conditioned.Properties)
		if err != nil {
			return Stream{}, 0, err
		}
		liquid = frac * conditioned.MassRate
		// The stream continues with the dry composition, so downstream
		// stages do not condense the same liquid again.
		conditioned.Fluid = dry
		conditioned.Properties = props
		conditioned.MassRate -= liquid
	}
	return conditioned, liquid, nil
}

// Evaluate runs the stage at the given shaft speed. Recirculation may
// be requested either as a fraction of the stage's available headroom
// (asvFraction in [0,1]) or as an explicit additional mass rate
// (asvMassRate [kg/h]), but not both. Independent of any requested
// recirculation, the anti-surge valve always raises the effective flow
// to at least the chart minimum at the evaluated speed.
//
// A speed outside the chart's speed range is a contract violation and
// returns an error; callers must validate against the chart's
// SpeedBoundary before evaluating. All other degeneracies are reported
// through the result's ChartArea flag and a NaN power, never an error,
// so that time-series evaluation can continue past infeasible steps.
func (st *Stage) Evaluate(inlet Stream, speed, asvFraction, asvMassRate float64) (StageResult, error) {
	if !st.Chart.SpeedBoundary().Contains(speed) {
		return StageResult{}, fmt.Errorf("entrain: speed %g rpm outside chart range [%g, %g]",
			speed, st.Chart.MinimumSpeed(), st.Chart.MaximumSpeed())
	}
	if asvFraction < 0 || asvFraction > 1 {
		return StageResult{}, fmt.Errorf("entrain: recirculation fraction must be in [0,1]; got %g", asvFraction)
	}
	if asvFraction > 0 && asvMassRate > 0 {
		return StageResult{}, fmt.Errorf("entrain: recirculation requested both as fraction (%g) and mass rate (%g kg/h)",
			asvFraction, asvMassRate)
	}

	conditioned, liquid, err := st.conditionInlet(inlet)
	if err != nil {
		return StageResult{}, err
	}

	if conditioned.MassRate == 0 {
		// The compressor is off; this is never a failure.
		return StageResult{
			Inlet:     conditioned,
			Outlet:    conditioned,
			Speed:     speed,
			ChartArea: NoFlowRate,
			Valid:     true,
		}, nil
	}

	curve, err := st.Chart.CurveAtSpeed(speed)
	if err != nil {
		return StageResult{}, err
	}
	rateRange := curve.MaxRate() - curve.MinRate()
	minRate := curve.MinRate() + st.ControlMarginFraction*rateRange

	flag := st.Chart.AreaFlag(speed, conditioned.ActualRate())

	massThrough := conditioned.MassRate + asvMassRate
	if asvFraction > 0 {
		headroom := curve.MaxRate()*conditioned.Density - massThrough
		if headroom > 0 {
			massThrough += asvFraction * headroom
		}
	}
	rate := massThrough / conditioned.Density
	if rate < minRate {
		rate = minRate
		massThrough = rate * conditioned.Density
		if flag == InternalPoint {
			flag = BelowMinimumFlowRate
		}
	}

	var head, eff float64
	feasible := rate <= curve.MaxRate()
	if feasible {
		head = curve.HeadAtRate(rate)
		eff = curve.EfficiencyAtRate(rate)
	} else {
		// Beyond the stonewall: the point is infeasible but the
		// extrapolated values keep downstream iteration continuous.
		// Far outside the envelope the extrapolated head can go
		// negative; the compressor then adds no head at all.
		head, eff = st.Chart.Extrapolate(speed, rate)
		if head < 0 {
			head = 0
		}
		if eff <= 0.01 {
			eff = 0.01
		}
		if flag == InternalPoint || flag == BelowMinimumFlowRate {
			flag = AboveMaximumFlowRate
		}
	}

	deltaH := head / eff
	p2, err := st.dischargePressure(conditioned, head, eff)
	if err != nil {
		return StageResult{}, err
	}
	compressed, err := conditioned.WithMassRate(massThrough).FlashPH(p2, deltaH)
	if err != nil {
		return StageResult{}, err
	}

	recirc := massThrough - conditioned.MassRate
	res := StageResult{
		Inlet:                conditioned,
		Outlet:               compressed.WithMassRate(conditioned.MassRate),
		Speed:                speed,
		Power:                massThrough / 3600 * deltaH,
		PolytropicHead:       head,
		PolytropicEfficiency: eff,
		ActualRate:           rate,
		RecirculationRate:    recirc,
		RecirculationLoss:    recirc / 3600 * deltaH,
		LiquidRemoved:        liquid,
		ChartArea:            flag,
		Valid:                flag.Valid(),
	}
	if !feasible {
		res.Power = math.NaN()
		res.Valid = false
	}
	return res, nil
}

// dischargePressure finds the outlet pressure produced by the given
// polytropic head. A closed-form estimate from inlet properties seeds a
// bracketed root search that matches the head recomputed with averaged
// inlet/outlet compressibility and heat-capacity ratio.
func (st *Stage) dischargePressure(in Stream, head, eff float64) (float64, error) {
	if head <= 0 {
		return in.Pressure, nil
	}
	n1 := (in.Kappa - 1) / in.Kappa / eff // (n-1)/n for the polytropic path
	specific := in.Z * rGas * in.Temperature / in.MolarMass
	estimate := in.Pressure * math.Pow(head*n1/specific+1, 1/n1)

	var flashErr error
	f := func(p2 float64) float64 {
		out, err := in.Fluid.FlashPH(p2, head/eff, in.Properties)
		if err != nil {
			flashErr = err
			return math.NaN()
		}
		zAvg := (in.Z + out.Z) / 2
		kAvg := (in.Kappa + out.Kappa) / 2
		m1 := (kAvg - 1) / kAvg / eff
		calc := zAvg * rGas * in.Temperature / in.MolarMass / m1 *
			(math.Pow(p2/in.Pressure, m1) - 1)
		return calc - head
	}
	b := Boundary{Min: math.Max(in.Pressure*1.000001, estimate/2), Max: estimate * 4}
	p2, _ := FindRoot(f, b, in.Pressure*1e-6, st.Log)
	if flashErr != nil {
		return 0, flashErr
	}
	return p2, nil
}

// maxRecirculationMass returns the additional mass rate [kg/h] that
// brings the stage to its stonewall rate at the given speed, given the
// conditioned inlet stream.
func (st *Stage) maxRecirculationMass(conditioned Stream, speed float64) float64 {
	curve, err := st.Chart.CurveAtSpeed(speed)
	if err != nil {
		return 0
	}
	headroom := curve.MaxRate()*conditioned.Density - conditioned.MassRate
	if headroom < 0 {
		return 0
	}
	return headroom
}

// requiredHead estimates the polytropic head lifting the conditioned
// stream to the target pressure, using the curve efficiency at the
// stream's own rate. It is the closed-form inverse of the discharge
// pressure estimate.
func (st *Stage) requiredHead(curve *ChartCurve, in Stream, target float64) float64 {
	eff := curve.EfficiencyAtRate(in.ActualRate())
	n1 := (in.Kappa - 1) / in.Kappa / eff
	specific := in.Z * rGas * in.Temperature / in.MolarMass
	return specific / n1 * (math.Pow(target/in.Pressure, n1) - 1)
}

// EvaluateWithTargetDischargePressure finds the recirculation mass rate
// at which the stage discharge pressure meets the target. Recirculation
// raises the rate through the compressor, lowering head and therefore
// discharge pressure, so the decision is three-way: if zero
// recirculation already discharges at or below the target there is
// nothing to do; if the curve cannot come down to the head the target
// needs, even at the stonewall, the maximum-recirculation result is
// returned as best effort; otherwise the exact rate is found by root
// search.
func (st *Stage) EvaluateWithTargetDischargePressure(inlet Stream, speed float64, target FloatConstraint) (StageResult, error) {
	r0, err := st.Evaluate(inlet, speed, 0, 0)
	if err != nil {
		return StageResult{}, err
	}
	if r0.Outlet.Pressure <= target.Value+target.AbsTol {
		return r0, nil
	}
	conditioned, _, err := st.conditionInlet(inlet)
	if err != nil {
		return StageResult{}, err
	}
	curve, err := st.Chart.CurveAtSpeed(speed)
	if err != nil {
		return StageResult{}, err
	}
	maxMass := st.maxRecirculationMass(conditioned, speed)

	cp := curve.EvaluateCapacity(conditioned.ActualRate(),
		st.requiredHead(curve, conditioned, target.Value), false)
	if cp.PressureIsBelowMinimum || !cp.Feasible() {
		// The target needs less head than the curve delivers at any
		// rate; maximum recirculation is the best effort.
		return st.Evaluate(inlet, speed, 0, maxMass)
	}

	f := func(asv float64) float64 {
		r, err := st.Evaluate(inlet, speed, 0, asv)
		if err != nil {
			return math.NaN()
		}
		return r.Outlet.Pressure - target.Value
	}
	asv, _ := FindRoot(f, Boundary{Min: 0, Max: maxMass}, maxMass*1e-6, st.Log)
	return st.Evaluate(inlet, speed, 0, asv)
}
