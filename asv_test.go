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

import "testing"

const asvTestSpeed = 7500

// asvPressureRange returns the discharge pressures the train delivers
// at asvTestSpeed with zero and with full per-stage recirculation; any
// target between the two is reachable by an ASV policy.
func asvPressureRange(t *testing.T, tr *Train, inlet Stream) (full, none float64) {
	t.Helper()
	fracs := make([]float64, len(tr.Stages))
	r0, err := tr.EvaluateAtSpeed(inlet, asvTestSpeed, fracs, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := range fracs {
		fracs[i] = 1
	}
	r1, err := tr.EvaluateAtSpeed(inlet, asvTestSpeed, fracs, 0)
	if err != nil {
		t.Fatal(err)
	}
	if r1.Outlet.Pressure >= r0.Outlet.Pressure {
		t.Fatalf("recirculation should lower the discharge pressure; got %g -> %g",
			r0.Outlet.Pressure, r1.Outlet.Pressure)
	}
	return r1.Outlet.Pressure, r0.Outlet.Pressure
}

func TestIndividualASVRateSolver(t *testing.T) {
	tr := testTrain(t, IndividualASVRate)
	inlet := testInletAtRate(t, 2500)
	full, none := asvPressureRange(t, tr, inlet)
	target := (full + none) / 2

	solver := &IndividualASVRateSolver{Train: tr, Speed: asvTestSpeed}
	sol, res, err := solver.FindSolution(FloatConstraint{Value: target, AbsTol: target * pressureRelTol}, inlet)
	if err != nil {
		t.Fatal(err)
	}
	if !sol.Success {
		t.Fatalf("reachable target should succeed: %+v", sol)
	}
	frac := sol.Configuration.RecirculationRate
	if frac <= 0 || frac >= 1 {
		t.Errorf("headroom fraction = %g outside (0, 1)", frac)
	}
	if different(res.Outlet.Pressure, target, 2*pressureRelTol) {
		t.Errorf("discharge = %g; want %g", res.Outlet.Pressure, target)
	}
	if res.RecirculationLoss <= 0 {
		t.Errorf("recirculation loss = %g; want positive", res.RecirculationLoss)
	}
}

func TestIndividualASVRateSolverUnreachable(t *testing.T) {
	tr := testTrain(t, IndividualASVRate)
	inlet := testInletAtRate(t, 2500)
	full, _ := asvPressureRange(t, tr, inlet)
	target := full * 0.8 // below even full recirculation

	solver := &IndividualASVRateSolver{Train: tr, Speed: asvTestSpeed}
	sol, _, err := solver.FindSolution(FloatConstraint{Value: target, AbsTol: target * pressureRelTol}, inlet)
	if err != nil {
		t.Fatal(err)
	}
	if sol.Success {
		t.Error("target below full recirculation should not succeed")
	}
	if sol.Configuration.RecirculationRate != 1 {
		t.Errorf("best-effort fraction = %g; want 1", sol.Configuration.RecirculationRate)
	}
}

func TestIndividualASVRateSolverNoActionNeeded(t *testing.T) {
	tr := testTrain(t, IndividualASVRate)
	inlet := testInletAtRate(t, 2500)
	_, none := asvPressureRange(t, tr, inlet)

	solver := &IndividualASVRateSolver{Train: tr, Speed: asvTestSpeed}
	sol, _, err := solver.FindSolution(FloatConstraint{Value: none, AbsTol: none * pressureRelTol}, inlet)
	if err != nil {
		t.Fatal(err)
	}
	if !sol.Success || sol.Configuration.RecirculationRate != 0 {
		t.Errorf("on-target discharge should need no recirculation: %+v", sol)
	}
}

func TestCommonASVSolver(t *testing.T) {
	tr := testTrain(t, CommonASV)
	inlet := testInletAtRate(t, 2500)

	solver := &CommonASVSolver{Train: tr, Speed: asvTestSpeed}
	maxMass, err := solver.maxRecirculation(inlet)
	if err != nil {
		t.Fatal(err)
	}
	if maxMass <= 0 {
		t.Fatalf("loop headroom = %g kg/h; want positive", maxMass)
	}
	r0, err := tr.EvaluateAtSpeed(inlet, asvTestSpeed, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	rMax, err := tr.EvaluateAtSpeed(inlet, asvTestSpeed, nil, maxMass)
	if err != nil {
		t.Fatal(err)
	}
	target := (r0.Outlet.Pressure + rMax.Outlet.Pressure) / 2

	sol, res, err := solver.FindSolution(FloatConstraint{Value: target, AbsTol: target * pressureRelTol}, inlet)
	if err != nil {
		t.Fatal(err)
	}
	if !sol.Success {
		t.Fatalf("reachable target should succeed: %+v", sol)
	}
	mass := sol.Configuration.RecirculationRate
	if mass <= 0 || mass >= maxMass {
		t.Errorf("loop mass = %g kg/h outside (0, %g)", mass, maxMass)
	}
	if different(res.Outlet.Pressure, target, 2*pressureRelTol) {
		t.Errorf("discharge = %g; want %g", res.Outlet.Pressure, target)
	}
	if res.CommonRecirculation != mass {
		t.Errorf("result records loop mass %g; configuration says %g", res.CommonRecirculation, mass)
	}
}

func TestIndividualASVPressureSolver(t *testing.T) {
	tr := testTrain(t, IndividualASVPressure)
	inlet := testInletAtRate(t, 2500)
	full, none := asvPressureRange(t, tr, inlet)
	target := (full + none) / 2

	solver := &IndividualASVPressureSolver{Train: tr, Speed: asvTestSpeed}
	sol, res, err := solver.FindSolution(FloatConstraint{Value: target, AbsTol: target * 5e-3}, inlet)
	if err != nil {
		t.Fatal(err)
	}
	if !sol.Success {
		t.Fatalf("reachable target should succeed: %+v", sol)
	}
	if different(res.Outlet.Pressure, target, 1e-2) {
		t.Errorf("discharge = %g; want %g", res.Outlet.Pressure, target)
	}
	// The equal-pressure-ratio split puts both stages under the same
	// ratio, so both stages should recirculate.
	if len(res.Stages) != 2 {
		t.Fatalf("got %d stage results; want 2", len(res.Stages))
	}
	if sol.Configuration.RecirculationRate <= 0 {
		t.Errorf("total recirculation = %g kg/h; want positive", sol.Configuration.RecirculationRate)
	}
}
