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

// Version gives the version number.
const Version = "0.3.0"

// pressureRelTol is the relative tolerance used when comparing realized
// pressures against requested targets.
const pressureRelTol = 1e-3

// TrainConfig describes a compressor train: an ordered list of stages
// mechanically coupled on one shaft.
type TrainConfig struct {
	Stages []StageConfig
	// FixedSpeed pins the shaft to one speed [rpm]; zero means the
	// shaft speed is a free variable within the chart envelopes.
	FixedSpeed float64
	// MaximumPower [W]; zero means unlimited.
	MaximumPower float64
	// PressureControl selects the policy used when the discharge
	// target is below what the train delivers at minimum speed.
	PressureControl PressureControlPolicy
	// MaximumDischargePressure [Pa]; zero means unlimited.
	MaximumDischargePressure float64
	// InterstageTargetStage is the number of leading stages upstream
	// of an interstage pressure target (an export stream taken off
	// mid-train); zero means no interstage target.
	InterstageTargetStage int
	// InterstagePressureControl is the policy applied to whichever
	// sub-train must be re-solved at the common shaft speed when an
	// interstage target splits the train. Defaults to PressureControl.
	InterstagePressureControl PressureControlPolicy
}

// Train is a compressor train model. A Train carries no mutable state
// between evaluations; the shaft speed solved for one time step is
// threaded through the call graph explicitly and discarded, so separate
// Train instances may evaluate different time steps concurrently.
type Train struct {
	TrainConfig
	Stages []*Stage
	Fluid  FluidService
	Log    logrus.FieldLogger
}

// NewTrain builds a train from its configuration and the fluid service
// evaluating the (fixed) composition flowing through it.
func NewTrain(cfg TrainConfig, fluid FluidService) (*Train, error) {
	if len(cfg.Stages) == 0 {
		return nil, fmt.Errorf("entrain: train needs at least one stage")
	}
	if fluid == nil {
		return nil, fmt.Errorf("entrain: train needs a fluid service")
	}
	if cfg.InterstageTargetStage < 0 || cfg.InterstageTargetStage >= len(cfg.Stages) && cfg.InterstageTargetStage != 0 {
		return nil, fmt.Errorf("entrain: interstage target stage %d outside train of %d stages",
			cfg.InterstageTargetStage, len(cfg.Stages))
	}
	t := &Train{TrainConfig: cfg, Fluid: fluid, Log: logrus.StandardLogger()}
	for i, sc := range cfg.Stages {
		st, err := NewStage(sc)
		if err != nil {
			return nil, fmt.Errorf("entrain: stage %d: %v", i, err)
		}
		t.Stages = append(t.Stages, st)
	}
	b := t.SpeedBoundary()
	if b.Min > b.Max {
		return nil, fmt.Errorf("entrain: stage charts share no common speed range (min %g > max %g)", b.Min, b.Max)
	}
	if cfg.FixedSpeed != 0 && !b.Contains(cfg.FixedSpeed) {
		return nil, fmt.Errorf("entrain: fixed speed %g rpm outside common chart range [%g, %g]",
			cfg.FixedSpeed, b.Min, b.Max)
	}
	return t, nil
}

// SpeedBoundary returns the speed interval on which every stage chart
// is defined: the common shaft can only run where all stages have
// capacity data.
func (t *Train) SpeedBoundary() Boundary {
	b := Boundary{Min: math.Inf(-1), Max: math.Inf(1)}
	for _, st := range t.Stages {
		sb := st.Chart.SpeedBoundary()
		b.Min = math.Max(b.Min, sb.Min)
		b.Max = math.Min(b.Max, sb.Max)
	}
	return b
}

// BoundaryConditions are the per-time-step inputs to a train
// evaluation.
type BoundaryConditions struct {
	SuctionPressure    float64 // [Pa] target
	DischargePressure  float64 // [Pa] target
	InterstagePressure float64 // [Pa] target; 0 = none
	InletTemperature   float64 // [K]
	MassRate           float64 // [kg/h]
}

// TrainResult is the immutable, eagerly computed outcome of evaluating
// a train for one time step.
type TrainResult struct {
	Stages []StageResult

	Speed             float64 // [rpm]
	Power             float64 // [W]; NaN if any stage is infeasible
	RecirculationLoss float64 // [W]
	Inlet, Outlet     Stream

	// Solved pressure-control actions.
	UpstreamDeltaPressure   float64 // [Pa]
	DownstreamDeltaPressure float64 // [Pa]
	CommonRecirculation     float64 // [kg/h]

	TargetStatus TargetPressureStatus
	Failure      FailureStatus
	Valid        bool
}

// ChartAreaStatus returns the first non-internal chart area flag among
// the stages, or InternalPoint when every stage operates inside its
// envelope.
func (r *TrainResult) ChartAreaStatus() ChartAreaFlag {
	for _, s := range r.Stages {
		if s.ChartArea != InternalPoint {
			return s.ChartArea
		}
	}
	return InternalPoint
}

// EvaluateAtSpeed chains the stages left to right at the given shaft
// speed, each stage's outlet becoming the next stage's inlet.
// asvFractions, when non-nil, requests per-stage recirculation as a
// fraction of each stage's headroom; commonRecirculation adds a mass
// rate [kg/h] recirculated around the whole train. Power aggregates as
// the sum of stage powers, so one infeasible stage (NaN) invalidates
// the train result for the time step.
func (t *Train) EvaluateAtSpeed(inlet Stream, speed float64, asvFractions []float64, commonRecirculation float64) (TrainResult, error) {
	if asvFractions != nil && len(asvFractions) != len(t.Stages) {
		return TrainResult{}, fmt.Errorf("entrain: got %d recirculation fractions for %d stages",
			len(asvFractions), len(t.Stages))
	}
	res := TrainResult{
		Speed:               speed,
		Inlet:               inlet,
		CommonRecirculation: commonRecirculation,
		Valid:               true,
	}
	cur := inlet
	if commonRecirculation > 0 {
		cur = cur.WithMassRate(inlet.MassRate + commonRecirculation)
	}
	for i, st := range t.Stages {
		var frac float64
		if asvFractions != nil {
			frac = asvFractions[i]
		}
		sr, err := st.Evaluate(cur, speed, frac, 0)
		if err != nil {
			return TrainResult{}, fmt.Errorf("entrain: stage %d: %v", i, err)
		}
		res.Stages = append(res.Stages, sr)
		res.Power += sr.Power
		res.RecirculationLoss += sr.RecirculationLoss
		if !sr.Valid {
			res.Valid = false
		}
		cur = sr.Outlet
	}
	if commonRecirculation > 0 {
		// The common loop returns its mass to the suction side; the
		// power spent on it is lost.
		for _, sr := range res.Stages {
			if sr.PolytropicEfficiency > 0 {
				res.RecirculationLoss += commonRecirculation / 3600 *
					sr.PolytropicHead / sr.PolytropicEfficiency
			}
		}
		cur = cur.WithMassRate(inlet.MassRate)
	}
	res.Outlet = cur
	return res, nil
}

// EvaluateSingleTimestep solves the train for one time step: it finds
// the shaft speed, and any pressure-control action, that satisfies the
// boundary conditions, then classifies the outcome. Infeasible
// conditions are reported through the result's status fields, never as
// an error; errors are reserved for contract violations and fluid
// service failures.
func (t *Train) EvaluateSingleTimestep(bc BoundaryConditions) (TrainResult, error) {
	if bc.MassRate < 0 {
		return TrainResult{}, fmt.Errorf("entrain: negative mass rate %g kg/h", bc.MassRate)
	}
	if bc.SuctionPressure <= 0 || bc.DischargePressure <= 0 {
		return TrainResult{}, fmt.Errorf("entrain: pressure targets must be positive; got suction %g Pa, discharge %g Pa",
			bc.SuctionPressure, bc.DischargePressure)
	}
	inlet, err := NewStream(t.Fluid, bc.SuctionPressure, bc.InletTemperature, bc.MassRate)
	if err != nil {
		return TrainResult{}, err
	}

	if bc.MassRate == 0 {
		// The train is off. Zero power, no failure.
		return TrainResult{
			Inlet:  inlet,
			Outlet: inlet,
			Valid:  true,
		}, nil
	}

	var res TrainResult
	if t.InterstageTargetStage > 0 && bc.InterstagePressure > 0 {
		res, err = t.evaluateWithInterstageTarget(inlet, bc)
	} else {
		res, err = t.solvePressure(inlet, bc.DischargePressure)
	}
	if err != nil {
		return TrainResult{}, err
	}
	t.classify(&res, bc)
	return res, nil
}

// solvePressure runs the two-step pressure-control algorithm against a
// discharge pressure target.
func (t *Train) solvePressure(inlet Stream, dischargeTarget float64) (TrainResult, error) {
	b := t.SpeedBoundary()
	if t.FixedSpeed != 0 {
		b = Boundary{Min: t.FixedSpeed, Max: t.FixedSpeed}
	}
	solver := &PressureControlSolver{
		Train:    t,
		Policy:   t.PressureControl,
		Boundary: b,
		Log:      t.Log,
	}
	target := FloatConstraint{Value: dischargeTarget, AbsTol: dischargeTarget * pressureRelTol}
	sol, res, err := solver.Solve(inlet, target)
	if err != nil {
		return TrainResult{}, err
	}
	res.Speed = sol.Configuration.Speed
	res.UpstreamDeltaPressure = sol.Configuration.UpstreamDeltaPressure
	res.DownstreamDeltaPressure = sol.Configuration.DownstreamDeltaPressure
	if !sol.Success {
		res.Valid = false
	}
	return res, nil
}

// evaluateWithInterstageTarget handles a train with a mid-train
// pressure target by splitting it at the target stage into two
// sub-trains, solving each for its own pressure pair, and reconciling:
// the sub-train needing the higher shaft speed sets the common speed
// and the other is re-solved at that speed under pressure control.
func (t *Train) evaluateWithInterstageTarget(inlet Stream, bc BoundaryConditions) (TrainResult, error) {
	k := t.InterstageTargetStage
	interControl := t.InterstagePressureControl
	if interControl == NoPressureControl {
		interControl = t.PressureControl
	}
	front, err := t.subTrain(0, k, interControl)
	if err != nil {
		return TrainResult{}, err
	}
	back, err := t.subTrain(k, len(t.Stages), interControl)
	if err != nil {
		return TrainResult{}, err
	}

	frontRes, err := front.solvePressure(inlet, bc.InterstagePressure)
	if err != nil {
		return TrainResult{}, err
	}
	backRes, err := back.solvePressure(frontRes.Outlet, bc.DischargePressure)
	if err != nil {
		return TrainResult{}, err
	}

	// The common shaft must run at the higher of the two solved
	// speeds; re-solve the slower sub-train pinned to it. When the
	// front is the slower one its re-solved outlet changes the back
	// sub-train's inlet, so the back is re-solved pinned as well.
	common := math.Max(frontRes.Speed, backRes.Speed)
	if frontRes.Speed < common {
		front.FixedSpeed = front.SpeedBoundary().Clamp(common)
		frontRes, err = front.solvePressure(inlet, bc.InterstagePressure)
		if err != nil {
			return TrainResult{}, err
		}
		back.FixedSpeed = back.SpeedBoundary().Clamp(common)
		backRes, err = back.solvePressure(frontRes.Outlet, bc.DischargePressure)
	} else if backRes.Speed < common {
		back.FixedSpeed = back.SpeedBoundary().Clamp(common)
		backRes, err = back.solvePressure(frontRes.Outlet, bc.DischargePressure)
	}
	if err != nil {
		return TrainResult{}, err
	}

	res := TrainResult{
		Stages:                  append(append([]StageResult{}, frontRes.Stages...), backRes.Stages...),
		Speed:                   common,
		Power:                   frontRes.Power + backRes.Power,
		RecirculationLoss:       frontRes.RecirculationLoss + backRes.RecirculationLoss,
		Inlet:                   inlet,
		Outlet:                  backRes.Outlet,
		UpstreamDeltaPressure:   frontRes.UpstreamDeltaPressure + backRes.UpstreamDeltaPressure,
		DownstreamDeltaPressure: frontRes.DownstreamDeltaPressure + backRes.DownstreamDeltaPressure,
		CommonRecirculation:     frontRes.CommonRecirculation + backRes.CommonRecirculation,
		Valid:                   frontRes.Valid && backRes.Valid,
	}
	return res, nil
}

// subTrain builds an independent train over stages [from, to) sharing
// this train's fluid service.
func (t *Train) subTrain(from, to int, control PressureControlPolicy) (*Train, error) {
	cfg := TrainConfig{
		Stages:          t.TrainConfig.Stages[from:to],
		FixedSpeed:      t.FixedSpeed,
		PressureControl: control,
	}
	sub, err := NewTrain(cfg, t.Fluid)
	if err != nil {
		return nil, err
	}
	sub.Log = t.Log
	return sub, nil
}

// classify fills in the derived status fields of a completed
// evaluation. Statuses are read-only conclusions; they never feed back
// into the solvers.
func (t *Train) classify(res *TrainResult, bc BoundaryConditions) {
	res.TargetStatus = t.checkTargetPressures(res, bc)
	res.Failure = NoFailure
	switch {
	case res.ChartAreaStatus() == AboveMaximumFlowRate:
		res.Failure = RateAboveMaximumFlowRate
	case res.Outlet.Pressure < bc.DischargePressure*(1-pressureRelTol):
		res.Failure = TargetDischargePressureTooHigh
	case res.Outlet.Pressure > bc.DischargePressure*(1+pressureRelTol) &&
		t.PressureControl != DownstreamChoke:
		res.Failure = TargetDischargePressureTooLow
	}
	if t.MaximumPower > 0 && res.Power > t.MaximumPower {
		res.Failure = AboveMaximumPower
		res.Valid = false
	}
	if res.Failure != NoFailure {
		res.Valid = false
	}
	// An invalid evaluation with no attributable cause means a solver
	// stopped short of its target.
	if !res.Valid && res.Failure == NoFailure {
		res.Failure = SolverNotConverged
	}
}

// checkTargetPressures compares the realized suction, interstage and
// discharge pressures against the requested targets within a fixed
// relative tolerance.
func (t *Train) checkTargetPressures(res *TrainResult, bc BoundaryConditions) TargetPressureStatus {
	deviates := func(realized, target float64) float64 {
		if target == 0 {
			return 0
		}
		d := (realized - target) / target
		if math.Abs(d) <= pressureRelTol {
			return 0
		}
		return d
	}
	realizedSuction := bc.SuctionPressure - res.UpstreamDeltaPressure
	if d := deviates(realizedSuction, bc.SuctionPressure); d > 0 {
		return AboveTargetSuctionPressure
	} else if d < 0 && t.PressureControl != UpstreamChoke {
		return BelowTargetSuctionPressure
	}
	if bc.InterstagePressure > 0 && t.InterstageTargetStage > 0 &&
		t.InterstageTargetStage <= len(res.Stages) {
		realized := res.Stages[t.InterstageTargetStage-1].Outlet.Pressure
		if d := deviates(realized, bc.InterstagePressure); d > 0 {
			return AboveTargetInterstagePressure
		} else if d < 0 {
			return BelowTargetInterstagePressure
		}
	}
	if d := deviates(res.Outlet.Pressure, bc.DischargePressure); d > 0 {
		if t.PressureControl != DownstreamChoke {
			return AboveTargetDischargePressure
		}
	} else if d < 0 {
		return BelowTargetDischargePressure
	}
	return TargetPressuresMet
}
