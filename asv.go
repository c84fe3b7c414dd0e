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

	"github.com/sirupsen/logrus"
)

// IndividualASVRateSolver wraps every stage of a train in its own
// recirculation loop and finds the recirculation bringing the train
// discharge pressure down to a target. To keep the search
// one-dimensional regardless of the number of stages, all stages share
// a single fraction of their individual recirculation headroom; the
// trade is optimality for robustness.
type IndividualASVRateSolver struct {
	Train *Train
	Speed float64 // [rpm]
	Log   logrus.FieldLogger
}

// FindSolution locates the shared headroom fraction in [0, 1] at which
// the train discharges at the target pressure. With zero requested
// recirculation every stage still recirculates just enough to stay
// within its own capacity; if the discharge is above target even when
// every stage recirculates at full headroom, the failure is reported
// with maximum recirculation as the best-effort configuration.
func (s *IndividualASVRateSolver) FindSolution(target FloatConstraint, inlet Stream) (Solution[RecirculationConfiguration], TrainResult, error) {
	eval := func(frac float64) (TrainResult, error) {
		fracs := make([]float64, len(s.Train.Stages))
		for i := range fracs {
			fracs[i] = frac
		}
		return s.Train.EvaluateAtSpeed(inlet, s.Speed, fracs, 0)
	}

	r0, err := eval(0)
	if err != nil {
		return Solution[RecirculationConfiguration]{}, TrainResult{}, err
	}
	if r0.Outlet.Pressure <= target.Value+target.AbsTol {
		return Solution[RecirculationConfiguration]{
			Success:       target.SatisfiedBy(r0.Outlet.Pressure),
			Configuration: RecirculationConfiguration{RecirculationRate: 0},
		}, r0, nil
	}

	r1, err := eval(1)
	if err != nil {
		return Solution[RecirculationConfiguration]{}, TrainResult{}, err
	}
	if r1.Outlet.Pressure > target.Value+target.AbsTol {
		// Even full recirculation cannot pull the pressure down.
		return Solution[RecirculationConfiguration]{
			Success:       false,
			Configuration: RecirculationConfiguration{RecirculationRate: 1},
		}, r1, nil
	}

	var evalErr error
	frac := BisectLowest(Boundary{Min: 0, Max: 1}, 1e-6, func(f float64) bool {
		r, err := eval(f)
		if err != nil {
			evalErr = err
			return true
		}
		return r.Outlet.Pressure <= target.Value
	}, s.Log)
	if evalErr != nil {
		return Solution[RecirculationConfiguration]{}, TrainResult{}, evalErr
	}
	res, err := eval(frac)
	if err != nil {
		return Solution[RecirculationConfiguration]{}, TrainResult{}, err
	}
	return Solution[RecirculationConfiguration]{
		Success:       target.SatisfiedBy(res.Outlet.Pressure),
		Configuration: RecirculationConfiguration{RecirculationRate: frac},
	}, res, nil
}

// CommonASVSolver wraps the whole train in one recirculation loop: a
// mass rate drawn from the discharge side and returned to the suction
// side, riding through every stage.
type CommonASVSolver struct {
	Train *Train
	Speed float64 // [rpm]
	Log   logrus.FieldLogger
}

// maxRecirculation estimates the loop mass rate [kg/h] that drives the
// first stage to its stonewall; recirculating more than that cannot
// help any stage.
func (s *CommonASVSolver) maxRecirculation(inlet Stream) (float64, error) {
	st := s.Train.Stages[0]
	conditioned, _, err := st.conditionInlet(inlet)
	if err != nil {
		return 0, err
	}
	return st.maxRecirculationMass(conditioned, s.Speed), nil
}

// FindSolution locates the common-loop mass rate at which the train
// discharges at the target pressure.
func (s *CommonASVSolver) FindSolution(target FloatConstraint, inlet Stream) (Solution[RecirculationConfiguration], TrainResult, error) {
	maxMass, err := s.maxRecirculation(inlet)
	if err != nil {
		return Solution[RecirculationConfiguration]{}, TrainResult{}, err
	}
	eval := func(mass float64) (TrainResult, error) {
		return s.Train.EvaluateAtSpeed(inlet, s.Speed, nil, mass)
	}

	r0, err := eval(0)
	if err != nil {
		return Solution[RecirculationConfiguration]{}, TrainResult{}, err
	}
	if r0.Outlet.Pressure <= target.Value+target.AbsTol {
		return Solution[RecirculationConfiguration]{
			Success:       target.SatisfiedBy(r0.Outlet.Pressure),
			Configuration: RecirculationConfiguration{RecirculationRate: 0},
		}, r0, nil
	}

	rMax, err := eval(maxMass)
	if err != nil {
		return Solution[RecirculationConfiguration]{}, TrainResult{}, err
	}
	if rMax.Outlet.Pressure > target.Value+target.AbsTol {
		return Solution[RecirculationConfiguration]{
			Success:       false,
			Configuration: RecirculationConfiguration{RecirculationRate: maxMass},
		}, rMax, nil
	}

	var evalErr error
	f := func(mass float64) float64 {
		r, err := eval(mass)
		if err != nil {
			evalErr = err
			return math.NaN()
		}
		return r.Outlet.Pressure - target.Value
	}
	mass, _ := FindRoot(f, Boundary{Min: 0, Max: maxMass}, math.Max(maxMass*1e-6, 1e-9), s.Log)
	if evalErr != nil {
		return Solution[RecirculationConfiguration]{}, TrainResult{}, evalErr
	}
	res, err := eval(mass)
	if err != nil {
		return Solution[RecirculationConfiguration]{}, TrainResult{}, err
	}
	return Solution[RecirculationConfiguration]{
		Success:       target.SatisfiedBy(res.Outlet.Pressure),
		Configuration: RecirculationConfiguration{RecirculationRate: mass},
	}, res, nil
}

// IndividualASVPressureSolver recirculates flow around each stage
// separately so that every stage delivers an equal share of the train
// pressure ratio, using the per-stage target-pressure search.
type IndividualASVPressureSolver struct {
	Train *Train
	Speed float64 // [rpm]
	Log   logrus.FieldLogger
}

// FindSolution chains the stages, giving each a discharge target that
// splits the remaining pressure ratio evenly over the remaining stages.
func (s *IndividualASVPressureSolver) FindSolution(target FloatConstraint, inlet Stream) (Solution[RecirculationConfiguration], TrainResult, error) {
	res := TrainResult{
		Speed: s.Speed,
		Inlet: inlet,
		Valid: true,
	}
	cur := inlet
	n := len(s.Train.Stages)
	var totalRecirc float64
	for i, st := range s.Train.Stages {
		remaining := float64(n - i)
		ratio := math.Pow(target.Value/cur.Pressure, 1/remaining)
		stageTarget := FloatConstraint{
			Value:  cur.Pressure * ratio,
			AbsTol: cur.Pressure * ratio * pressureRelTol,
		}
		sr, err := st.EvaluateWithTargetDischargePressure(cur, s.Speed, stageTarget)
		if err != nil {
			return Solution[RecirculationConfiguration]{}, TrainResult{}, err
		}
		res.Stages = append(res.Stages, sr)
		res.Power += sr.Power
		res.RecirculationLoss += sr.RecirculationLoss
		totalRecirc += sr.RecirculationRate
		if !sr.Valid {
			res.Valid = false
		}
		cur = sr.Outlet
	}
	res.Outlet = cur
	return Solution[RecirculationConfiguration]{
		Success:       target.SatisfiedBy(cur.Pressure),
		Configuration: RecirculationConfiguration{RecirculationRate: totalRecirc},
	}, res, nil
}
