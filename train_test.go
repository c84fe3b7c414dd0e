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

// testTrain is a two-stage train. The second stage's chart is shifted
// to lower rates because compression shrinks the volumetric rate
// between stages.
func testTrain(t *testing.T, policy PressureControlPolicy) *Train {
	t.Helper()
	cfg := TrainConfig{
		Stages: []StageConfig{
			{Chart: testChart(), InletTemperature: testInletTemp},
			{Chart: scaledTestChart(0.6), InletTemperature: testInletTemp},
		},
		PressureControl: policy,
	}
	tr, err := NewTrain(cfg, idealGas{})
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func trainBC(massRate, discharge float64) BoundaryConditions {
	return BoundaryConditions{
		SuctionPressure:   testSuction,
		DischargePressure: discharge,
		InletTemperature:  testInletTemp,
		MassRate:          massRate,
	}
}

// dischargeAtSpeed evaluates the train at a shaft speed with no
// requested recirculation and returns the delivered discharge pressure.
func dischargeAtSpeed(t *testing.T, tr *Train, inlet Stream, speed float64) float64 {
	t.Helper()
	r, err := tr.EvaluateAtSpeed(inlet, speed, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	return r.Outlet.Pressure
}

func TestNewTrainValidation(t *testing.T) {
	if _, err := NewTrain(TrainConfig{}, idealGas{}); err == nil {
		t.Error("empty train should be rejected")
	}
	if _, err := NewTrain(TrainConfig{
		Stages:     []StageConfig{{Chart: testChart(), InletTemperature: testInletTemp}},
		FixedSpeed: 5000,
	}, idealGas{}); err == nil {
		t.Error("fixed speed outside the chart range should be rejected")
	}
}

func TestTrainSpeedBoundary(t *testing.T) {
	tr := testTrain(t, DownstreamChoke)
	b := tr.SpeedBoundary()
	if b.Min != 6000 || b.Max != 9000 {
		t.Errorf("speed boundary = [%g, %g]; want [6000, 9000]", b.Min, b.Max)
	}
}

func TestTrainZeroMassRate(t *testing.T) {
	tr := testTrain(t, DownstreamChoke)
	res, err := tr.EvaluateSingleTimestep(trainBC(0, 100e5))
	if err != nil {
		t.Fatal(err)
	}
	if res.Power != 0 {
		t.Errorf("zero-rate power = %g; want 0", res.Power)
	}
	if !res.Valid || res.Failure != NoFailure {
		t.Errorf("zero-rate result should be valid with no failure; got valid %v, %v",
			res.Valid, res.Failure)
	}
}

func TestTrainInputValidation(t *testing.T) {
	tr := testTrain(t, DownstreamChoke)
	if _, err := tr.EvaluateSingleTimestep(trainBC(-1, 100e5)); err == nil {
		t.Error("negative mass rate should be an error")
	}
	if _, err := tr.EvaluateSingleTimestep(BoundaryConditions{
		SuctionPressure: 0, DischargePressure: 100e5, InletTemperature: testInletTemp, MassRate: 1,
	}); err == nil {
		t.Error("zero suction pressure should be an error")
	}
}

func TestTrainEvaluateAtSpeed(t *testing.T) {
	tr := testTrain(t, DownstreamChoke)
	inlet := testInletAtRate(t, 2500)
	res, err := tr.EvaluateAtSpeed(inlet, 7500, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Stages) != 2 {
		t.Fatalf("got %d stage results; want 2", len(res.Stages))
	}
	if sum := res.Stages[0].Power + res.Stages[1].Power; different(res.Power, sum, 1e-12) {
		t.Errorf("train power %g is not the sum of stage powers %g", res.Power, sum)
	}
	// Stages chain: the second stage sees the first stage's discharge.
	if absDifferent(res.Stages[1].Inlet.Pressure, res.Stages[0].Outlet.Pressure) {
		t.Errorf("stage 2 inlet pressure %g; want stage 1 outlet %g",
			res.Stages[1].Inlet.Pressure, res.Stages[0].Outlet.Pressure)
	}
	if res.Outlet.Pressure <= res.Stages[0].Outlet.Pressure {
		t.Error("second stage should raise the pressure further")
	}
	if _, err := tr.EvaluateAtSpeed(inlet, 7500, []float64{0.5}, 0); err == nil {
		t.Error("wrong recirculation fraction count should be an error")
	}
}

func TestTrainCommonRecirculation(t *testing.T) {
	tr := testTrain(t, DownstreamChoke)
	inlet := testInletAtRate(t, 2500)
	base, err := tr.EvaluateAtSpeed(inlet, 7500, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	loop := inlet.MassRate * 0.2
	res, err := tr.EvaluateAtSpeed(inlet, 7500, nil, loop)
	if err != nil {
		t.Fatal(err)
	}
	// The loop returns its mass to the suction side.
	if absDifferent(res.Outlet.MassRate, inlet.MassRate) {
		t.Errorf("outlet mass rate = %g; want %g", res.Outlet.MassRate, inlet.MassRate)
	}
	if res.RecirculationLoss <= base.RecirculationLoss {
		t.Errorf("common-loop recirculation loss %g not above baseline %g",
			res.RecirculationLoss, base.RecirculationLoss)
	}
	if res.Outlet.Pressure >= base.Outlet.Pressure {
		t.Errorf("recirculation should lower the discharge pressure; got %g >= %g",
			res.Outlet.Pressure, base.Outlet.Pressure)
	}
}

func TestTrainMeetsDischargeTarget(t *testing.T) {
	tr := testTrain(t, DownstreamChoke)
	inlet := testInletAtRate(t, 2500)
	target := dischargeAtSpeed(t, tr, inlet, 7500)

	res, err := tr.EvaluateSingleTimestep(trainBC(inlet.MassRate, target))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid {
		t.Fatalf("reachable target should give a valid result: %+v", res)
	}
	if res.Failure != NoFailure {
		t.Errorf("failure = %v; want %v", res.Failure, NoFailure)
	}
	if res.TargetStatus != TargetPressuresMet {
		t.Errorf("target status = %v; want %v", res.TargetStatus, TargetPressuresMet)
	}
	if math.Abs(res.Speed-7500) > 1 {
		t.Errorf("solved speed = %g; want about 7500", res.Speed)
	}
	if different(res.Outlet.Pressure, target, 2*pressureRelTol) {
		t.Errorf("discharge = %g; want %g", res.Outlet.Pressure, target)
	}
}

func TestTrainTargetTooHigh(t *testing.T) {
	tr := testTrain(t, DownstreamChoke)
	inlet := testInletAtRate(t, 2500)
	target := 2 * dischargeAtSpeed(t, tr, inlet, tr.SpeedBoundary().Max)

	res, err := tr.EvaluateSingleTimestep(trainBC(inlet.MassRate, target))
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Error("unreachable target should not be valid")
	}
	if res.Failure != TargetDischargePressureTooHigh {
		t.Errorf("failure = %v; want %v", res.Failure, TargetDischargePressureTooHigh)
	}
	if res.Speed != tr.SpeedBoundary().Max {
		t.Errorf("speed = %g; want pinned at boundary maximum %g", res.Speed, tr.SpeedBoundary().Max)
	}
}

func TestTrainDownstreamChoke(t *testing.T) {
	tr := testTrain(t, DownstreamChoke)
	inlet := testInletAtRate(t, 2500)
	minDelivery := dischargeAtSpeed(t, tr, inlet, tr.SpeedBoundary().Min)
	target := 0.7 * minDelivery

	res, err := tr.EvaluateSingleTimestep(trainBC(inlet.MassRate, target))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid || res.Failure != NoFailure {
		t.Fatalf("choked solution should be valid; got valid %v, %v", res.Valid, res.Failure)
	}
	if res.Speed != tr.SpeedBoundary().Min {
		t.Errorf("speed = %g; want boundary minimum %g", res.Speed, tr.SpeedBoundary().Min)
	}
	want := minDelivery - target
	if different(res.DownstreamDeltaPressure, want, 1e-6) {
		t.Errorf("downstream choke = %g Pa; want %g", res.DownstreamDeltaPressure, want)
	}
}

func TestTrainNoPressureControl(t *testing.T) {
	tr := testTrain(t, NoPressureControl)
	inlet := testInletAtRate(t, 2500)
	target := 0.7 * dischargeAtSpeed(t, tr, inlet, tr.SpeedBoundary().Min)

	res, err := tr.EvaluateSingleTimestep(trainBC(inlet.MassRate, target))
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Error("over-delivery without pressure control should not be valid")
	}
	if res.Failure != TargetDischargePressureTooLow {
		t.Errorf("failure = %v; want %v", res.Failure, TargetDischargePressureTooLow)
	}
}

func TestTrainUpstreamChoke(t *testing.T) {
	tr := testTrain(t, UpstreamChoke)
	inlet := testInletAtRate(t, 2500)
	target := 0.9 * dischargeAtSpeed(t, tr, inlet, tr.SpeedBoundary().Min)

	res, err := tr.EvaluateSingleTimestep(trainBC(inlet.MassRate, target))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid || res.Failure != NoFailure {
		t.Fatalf("upstream-choked solution should be valid; got valid %v, %v", res.Valid, res.Failure)
	}
	if res.UpstreamDeltaPressure <= 0 {
		t.Errorf("upstream choke = %g Pa; want positive", res.UpstreamDeltaPressure)
	}
	if different(res.Outlet.Pressure, target, 2*pressureRelTol) {
		t.Errorf("discharge = %g; want %g", res.Outlet.Pressure, target)
	}
}

func TestTrainMaximumPower(t *testing.T) {
	tr := testTrain(t, DownstreamChoke)
	tr.MaximumPower = 1e3 // far below any feasible operating point
	inlet := testInletAtRate(t, 2500)
	target := dischargeAtSpeed(t, tr, inlet, 7500)

	res, err := tr.EvaluateSingleTimestep(trainBC(inlet.MassRate, target))
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Error("power-limited result should not be valid")
	}
	if res.Failure != AboveMaximumPower {
		t.Errorf("failure = %v; want %v", res.Failure, AboveMaximumPower)
	}
}

func TestTrainFixedSpeed(t *testing.T) {
	tr := testTrain(t, DownstreamChoke)
	tr.FixedSpeed = 7500
	inlet := testInletAtRate(t, 2500)
	target := 0.8 * dischargeAtSpeed(t, tr, inlet, 7500)

	res, err := tr.EvaluateSingleTimestep(trainBC(inlet.MassRate, target))
	if err != nil {
		t.Fatal(err)
	}
	if res.Speed != 7500 {
		t.Errorf("speed = %g; want fixed 7500", res.Speed)
	}
	if !res.Valid {
		t.Error("fixed-speed choked solution should be valid")
	}
	if res.DownstreamDeltaPressure <= 0 {
		t.Errorf("downstream choke = %g Pa; want positive", res.DownstreamDeltaPressure)
	}
}

func TestTrainInterstageTarget(t *testing.T) {
	tr := testTrain(t, DownstreamChoke)
	tr.InterstageTargetStage = 1
	inlet := testInletAtRate(t, 2500)

	// Take the targets from a known consistent operating point so both
	// sub-trains solve to about the same shaft speed.
	base, err := tr.EvaluateAtSpeed(inlet, 7200, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	bc := trainBC(inlet.MassRate, base.Outlet.Pressure)
	bc.InterstagePressure = base.Stages[0].Outlet.Pressure

	res, err := tr.EvaluateSingleTimestep(bc)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Stages) != 2 {
		t.Fatalf("got %d stage results; want 2", len(res.Stages))
	}
	if !tr.SpeedBoundary().Contains(res.Speed) {
		t.Errorf("speed %g outside boundary %+v", res.Speed, tr.SpeedBoundary())
	}
	if math.Abs(res.Speed-7200) > 10 {
		t.Errorf("solved speed = %g; want about 7200", res.Speed)
	}
	if different(res.Outlet.Pressure, base.Outlet.Pressure, 0.01) {
		t.Errorf("discharge = %g; want about %g", res.Outlet.Pressure, base.Outlet.Pressure)
	}
}

func TestTrainInterstageCommonShaftSpeed(t *testing.T) {
	// An interstage target below the front sub-train's natural delivery
	// makes the back sub-train set the shaft speed. Both sub-trains must
	// report the reconciled common speed on every stage, whichever side
	// was re-solved.
	tr := testTrain(t, DownstreamChoke)
	tr.InterstageTargetStage = 1
	inlet := testInletAtRate(t, 2500)

	base, err := tr.EvaluateAtSpeed(inlet, 7200, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	bc := trainBC(inlet.MassRate, base.Outlet.Pressure)
	bc.InterstagePressure = 0.9 * base.Stages[0].Outlet.Pressure

	res, err := tr.EvaluateSingleTimestep(bc)
	if err != nil {
		t.Fatal(err)
	}
	for i, sr := range res.Stages {
		if sr.Speed != res.Speed {
			t.Errorf("stage %d ran at %g rpm; train reports common speed %g", i, sr.Speed, res.Speed)
		}
	}
	if !tr.SpeedBoundary().Contains(res.Speed) {
		t.Errorf("speed %g outside boundary %+v", res.Speed, tr.SpeedBoundary())
	}
}

func TestTrainInterstageTargetUnreachable(t *testing.T) {
	// An interstage target above anything the front sub-train can
	// deliver leaves its solver saturated at the speed boundary; the
	// overall result reports the shortfall instead of failing silently.
	tr := testTrain(t, DownstreamChoke)
	tr.InterstageTargetStage = 1
	inlet := testInletAtRate(t, 2500)

	top, err := tr.EvaluateAtSpeed(inlet, tr.SpeedBoundary().Max, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	bc := trainBC(inlet.MassRate, top.Outlet.Pressure)
	bc.InterstagePressure = 2 * top.Stages[0].Outlet.Pressure

	res, err := tr.EvaluateSingleTimestep(bc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Error("unreachable interstage target should not be valid")
	}
	if res.TargetStatus != BelowTargetInterstagePressure {
		t.Errorf("target status = %v; want %v", res.TargetStatus, BelowTargetInterstagePressure)
	}
	if res.Failure != SolverNotConverged {
		t.Errorf("failure = %v; want %v", res.Failure, SolverNotConverged)
	}
}

func TestTrainDeepTargetAllPolicies(t *testing.T) {
	// A target far below the minimum-speed delivery pushes every control
	// policy deep into its search space, where trial points can fall
	// outside the region the fluid service can evaluate. The evaluation
	// must degrade to a classified result, never a hard error.
	for p := NoPressureControl; p <= CommonASV; p++ {
		tr := testTrain(t, p)
		inlet := testInletAtRate(t, 2500)
		target := 0.5 * dischargeAtSpeed(t, tr, inlet, tr.SpeedBoundary().Min)

		res, err := tr.EvaluateSingleTimestep(trainBC(inlet.MassRate, target))
		if err != nil {
			t.Fatalf("%v: %v", p, err)
		}
		if len(res.Stages) != 2 {
			t.Errorf("%v: got %d stage results; want 2", p, len(res.Stages))
		}
		if p == UpstreamChoke && res.UpstreamDeltaPressure <= 0 {
			t.Errorf("%v: upstream choke = %g Pa; want positive", p, res.UpstreamDeltaPressure)
		}
	}
}
