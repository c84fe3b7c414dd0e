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

// speedAbsTol is the absolute resolution [rpm] of speed searches.
const speedAbsTol = 1e-3

// SpeedConfiguration is the unknown solved by the speed solver.
type SpeedConfiguration struct {
	Speed float64 // [rpm]
}

// RecirculationConfiguration is the unknown solved by the ASV solvers:
// either a shared headroom fraction or a common-loop mass rate,
// depending on the solver.
type RecirculationConfiguration struct {
	RecirculationRate float64
}

// PressureControlConfiguration is the full set of unknowns solved by
// the pressure control solver.
type PressureControlConfiguration struct {
	Speed                   float64 // [rpm]
	RecirculationRate       float64
	UpstreamDeltaPressure   float64 // [Pa]
	DownstreamDeltaPressure float64 // [Pa]
}

// Solution is the outcome of a solver run. Success=false still carries
// the best-effort configuration found; a solver never returns a bare
// failure with no data.
type Solution[C any] struct {
	Success       bool
	Configuration C
}

// SpeedSolver finds the shaft speed at which a train delivers a target
// discharge pressure, by binary search over the speed boundary.
// Capacity shortfalls at a probed speed never abort the search: each
// stage recirculates internally to its minimum flow, so the objective
// stays defined at every probe point.
type SpeedSolver struct {
	Train    *Train
	Boundary Boundary
	Target   FloatConstraint // discharge pressure [Pa]
	Log      logrus.FieldLogger
}

// Solve returns the speed configuration and the train evaluation at the
// solved speed. Discharge pressure rises with shaft speed, so the
// smallest speed delivering at least the target is located; when even
// the maximum speed falls short, Success is false and the configuration
// is pinned at the boundary maximum.
func (s *SpeedSolver) Solve(inlet Stream) (Solution[SpeedConfiguration], TrainResult, error) {
	var evalErr error
	eval := func(speed float64) (TrainResult, bool) {
		r, err := s.Train.EvaluateAtSpeed(inlet, speed, nil, 0)
		if err != nil {
			evalErr = err
			return TrainResult{}, false
		}
		return r, true
	}
	speed := BisectLowest(s.Boundary, speedAbsTol, func(sp float64) bool {
		r, ok := eval(sp)
		return ok && r.Outlet.Pressure >= s.Target.Value
	}, s.Log)
	if evalErr != nil {
		return Solution[SpeedConfiguration]{}, TrainResult{}, evalErr
	}
	res, ok := eval(speed)
	if !ok {
		return Solution[SpeedConfiguration]{}, TrainResult{}, evalErr
	}
	return Solution[SpeedConfiguration]{
		Success:       s.Target.SatisfiedBy(res.Outlet.Pressure) || res.Outlet.Pressure > s.Target.Value,
		Configuration: SpeedConfiguration{Speed: speed},
	}, res, nil
}

// PressureControlSolver composes the speed solver with a pressure
// control policy into the two-step train solve.
//
// Step A searches speed alone, with zero requested recirculation; if
// the evaluation at the found speed already meets the target within
// tolerance the solver returns immediately. This short-circuit is a
// hard invariant: the pressure control policy runs at most once per
// Solve call, and only in Step B.
//
// Step B runs when the target is below what the train delivers at the
// boundary minimum speed: exactly one policy application lowers the
// delivered pressure to the target. A target above what the train
// delivers at maximum speed is unreachable by any policy; the solver
// reports Success=false with the configuration pinned at maximum speed.
type PressureControlSolver struct {
	Train    *Train
	Policy   PressureControlPolicy
	Boundary Boundary
	Log      logrus.FieldLogger
}

// Solve runs the two-step algorithm. The returned TrainResult is the
// evaluation at the solved configuration; on Success=false it is the
// best-effort evaluation at the boundary.
func (s *PressureControlSolver) Solve(inlet Stream, target FloatConstraint) (Solution[PressureControlConfiguration], TrainResult, error) {
	speedSolver := &SpeedSolver{Train: s.Train, Boundary: s.Boundary, Target: target, Log: s.Log}
	spdSol, res, err := speedSolver.Solve(inlet)
	if err != nil {
		return Solution[PressureControlConfiguration]{}, TrainResult{}, err
	}
	cfg := PressureControlConfiguration{Speed: spdSol.Configuration.Speed}

	if target.SatisfiedBy(res.Outlet.Pressure) {
		return Solution[PressureControlConfiguration]{Success: true, Configuration: cfg}, res, nil
	}
	if res.Outlet.Pressure < target.Value {
		// Saturated below target even at maximum speed; nothing lifts
		// the ceiling. Report the boundary configuration as found.
		cfg.Speed = s.Boundary.Max
		return Solution[PressureControlConfiguration]{Success: false, Configuration: cfg}, res, nil
	}

	// Step B: the train over-delivers at the solved (minimum
	// reachable) speed; one policy application brings it down.
	return s.applyPolicy(inlet, cfg.Speed, target, res)
}

// applyPolicy dispatches the single Step-B policy application.
func (s *PressureControlSolver) applyPolicy(inlet Stream, speed float64, target FloatConstraint, baseline TrainResult) (Solution[PressureControlConfiguration], TrainResult, error) {
	cfg := PressureControlConfiguration{Speed: speed}
	switch s.Policy {
	case NoPressureControl:
		return Solution[PressureControlConfiguration]{Success: false, Configuration: cfg}, baseline, nil

	case DownstreamChoke:
		// The surplus pressure is choked away downstream of the train;
		// the train itself keeps running at the over-delivering point.
		cfg.DownstreamDeltaPressure = baseline.Outlet.Pressure - target.Value
		success := true
		if s.Train.MaximumDischargePressure > 0 &&
			baseline.Outlet.Pressure > s.Train.MaximumDischargePressure {
			success = false
		}
		return Solution[PressureControlConfiguration]{Success: success, Configuration: cfg}, baseline, nil

	case UpstreamChoke:
		return s.solveUpstreamChoke(inlet, speed, target, baseline)

	case IndividualASVRate:
		asv := &IndividualASVRateSolver{Train: s.Train, Speed: speed, Log: s.Log}
		sol, res, err := asv.FindSolution(target, inlet)
		if err != nil {
			return Solution[PressureControlConfiguration]{}, TrainResult{}, err
		}
		cfg.RecirculationRate = sol.Configuration.RecirculationRate
		return Solution[PressureControlConfiguration]{Success: sol.Success, Configuration: cfg}, res, nil

	case IndividualASVPressure:
		asv := &IndividualASVPressureSolver{Train: s.Train, Speed: speed, Log: s.Log}
		sol, res, err := asv.FindSolution(target, inlet)
		if err != nil {
			return Solution[PressureControlConfiguration]{}, TrainResult{}, err
		}
		cfg.RecirculationRate = sol.Configuration.RecirculationRate
		return Solution[PressureControlConfiguration]{Success: sol.Success, Configuration: cfg}, res, nil

	case CommonASV:
		asv := &CommonASVSolver{Train: s.Train, Speed: speed, Log: s.Log}
		sol, res, err := asv.FindSolution(target, inlet)
		if err != nil {
			return Solution[PressureControlConfiguration]{}, TrainResult{}, err
		}
		cfg.RecirculationRate = sol.Configuration.RecirculationRate
		return Solution[PressureControlConfiguration]{Success: sol.Success, Configuration: cfg}, res, nil
	}
	return Solution[PressureControlConfiguration]{}, TrainResult{},
		fmt.Errorf("entrain: unknown pressure control policy %v", s.Policy)
}

// solveUpstreamChoke finds the suction pressure reduction at which the
// train, running at the given speed, discharges exactly at the target.
// A deep reduction can push the train outside the region the fluid
// service can evaluate; such reductions count as infeasible rather
// than fatal, and the root search runs over the feasible prefix of
// reductions only.
func (s *PressureControlSolver) solveUpstreamChoke(inlet Stream, speed float64, target FloatConstraint, baseline TrainResult) (Solution[PressureControlConfiguration], TrainResult, error) {
	cfg := PressureControlConfiguration{Speed: speed}
	eval := func(dp float64) (TrainResult, bool) {
		choked, err := inlet.FlashPT(inlet.Pressure-dp, inlet.Temperature)
		if err != nil {
			return TrainResult{}, false
		}
		r, err := s.Train.EvaluateAtSpeed(choked, speed, nil, 0)
		if err != nil {
			return TrainResult{}, false
		}
		return r, true
	}
	// Zero reduction reproduces the baseline evaluation, so the
	// feasible prefix is never empty.
	b := Boundary{Min: 0, Max: inlet.Pressure * 0.9}
	dpMax := BisectHighest(b, inlet.Pressure*1e-6, func(dp float64) bool {
		_, ok := eval(dp)
		return ok
	}, s.Log)
	f := func(dp float64) float64 {
		r, ok := eval(dp)
		if !ok {
			return math.NaN()
		}
		return r.Outlet.Pressure - target.Value
	}
	dp, _ := FindRoot(f, Boundary{Min: 0, Max: dpMax}, inlet.Pressure*1e-6, s.Log)
	res, ok := eval(dp)
	if !ok {
		// The solved reduction itself cannot be evaluated; fall back to
		// the unchoked baseline.
		return Solution[PressureControlConfiguration]{Success: false, Configuration: cfg}, baseline, nil
	}
	cfg.UpstreamDeltaPressure = dp
	return Solution[PressureControlConfiguration]{
		Success:       target.SatisfiedBy(res.Outlet.Pressure),
		Configuration: cfg,
	}, res, nil
}
