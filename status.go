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

// ChartAreaFlag classifies an operating point's position relative to a
// compressor chart's feasible envelope. Exactly one flag is assigned to
// every evaluated point.
type ChartAreaFlag int

const (
	NotCalculated ChartAreaFlag = iota
	InternalPoint
	BelowMinimumFlowRate
	AboveMaximumFlowRate
	BelowMinimumSpeed
	BelowMinimumSpeedAndBelowMinimumFlowRate
	BelowMinimumSpeedAndAboveMaximumFlowRate
	AboveMaximumSpeed
	AboveMaximumSpeedAndBelowMinimumFlowRate
	AboveMaximumSpeedAndAboveMaximumFlowRate
	NoFlowRate
)

var chartAreaFlagNames = []string{
	"NOT_CALCULATED",
	"INTERNAL_POINT",
	"BELOW_MINIMUM_FLOW_RATE",
	"ABOVE_MAXIMUM_FLOW_RATE",
	"BELOW_MINIMUM_SPEED",
	"BELOW_MINIMUM_SPEED_AND_BELOW_MINIMUM_FLOW_RATE",
	"BELOW_MINIMUM_SPEED_AND_ABOVE_MAXIMUM_FLOW_RATE",
	"ABOVE_MAXIMUM_SPEED",
	"ABOVE_MAXIMUM_SPEED_AND_BELOW_MINIMUM_FLOW_RATE",
	"ABOVE_MAXIMUM_SPEED_AND_ABOVE_MAXIMUM_FLOW_RATE",
	"NO_FLOW_RATE",
}

func (f ChartAreaFlag) String() string {
	if f < 0 || int(f) >= len(chartAreaFlagNames) {
		return "UNKNOWN"
	}
	return chartAreaFlagNames[f]
}

// Valid reports whether a point with this flag represents a physically
// realizable operating condition. Points below the minimum flow rate are
// valid because the anti-surge valve recirculates enough flow to reach
// the minimum; points beyond the stonewall or the speed range are not.
func (f ChartAreaFlag) Valid() bool {
	switch f {
	case InternalPoint, BelowMinimumFlowRate, NoFlowRate:
		return true
	}
	return false
}

// TargetPressureStatus compares the realized pressures of a train
// evaluation to the requested targets. It is derived after an evaluation
// completes and never drives control flow inside the solvers.
type TargetPressureStatus int

const (
	TargetPressuresNotCalculated TargetPressureStatus = iota
	TargetPressuresMet
	AboveTargetSuctionPressure
	BelowTargetSuctionPressure
	AboveTargetDischargePressure
	BelowTargetDischargePressure
	AboveTargetInterstagePressure
	BelowTargetInterstagePressure
)

var targetPressureStatusNames = []string{
	"NOT_CALCULATED",
	"TARGET_PRESSURES_MET",
	"ABOVE_TARGET_SUCTION_PRESSURE",
	"BELOW_TARGET_SUCTION_PRESSURE",
	"ABOVE_TARGET_DISCHARGE_PRESSURE",
	"BELOW_TARGET_DISCHARGE_PRESSURE",
	"ABOVE_TARGET_INTERSTAGE_PRESSURE",
	"BELOW_TARGET_INTERSTAGE_PRESSURE",
}

func (s TargetPressureStatus) String() string {
	if s < 0 || int(s) >= len(targetPressureStatusNames) {
		return "UNKNOWN"
	}
	return targetPressureStatusNames[s]
}

// FailureStatus summarizes why a train evaluation did not produce a
// fully valid result for a time step.
type FailureStatus int

const (
	NoFailure FailureStatus = iota
	TargetDischargePressureTooHigh
	TargetDischargePressureTooLow
	RateAboveMaximumFlowRate
	AboveMaximumPower
	SolverNotConverged
)

var failureStatusNames = []string{
	"NO_FAILURE",
	"TARGET_DISCHARGE_PRESSURE_TOO_HIGH",
	"TARGET_DISCHARGE_PRESSURE_TOO_LOW",
	"RATE_ABOVE_MAXIMUM_FLOW_RATE",
	"ABOVE_MAXIMUM_POWER",
	"SOLVER_NOT_CONVERGED",
}

func (s FailureStatus) String() string {
	if s < 0 || int(s) >= len(failureStatusNames) {
		return "UNKNOWN"
	}
	return failureStatusNames[s]
}

// PressureControlPolicy selects the strategy used to lower the train
// discharge pressure when the target is below what the train delivers at
// minimum shaft speed.
type PressureControlPolicy int

const (
	// NoPressureControl leaves an unreachable target unreconciled.
	NoPressureControl PressureControlPolicy = iota
	// DownstreamChoke lets the discharge pressure exceed the target;
	// the excess is assumed choked downstream of the train.
	DownstreamChoke
	// UpstreamChoke reduces the suction pressure until the discharge
	// target is met.
	UpstreamChoke
	// IndividualASVRate recirculates flow around each stage separately,
	// all stages sharing one fraction of their recirculation headroom.
	IndividualASVRate
	// IndividualASVPressure recirculates flow around each stage so that
	// every stage meets an equal share of the train pressure ratio.
	IndividualASVPressure
	// CommonASV recirculates flow around the whole train in one loop.
	CommonASV
)

var pressureControlPolicyNames = []string{
	"NONE",
	"DOWNSTREAM_CHOKE",
	"UPSTREAM_CHOKE",
	"INDIVIDUAL_ASV_RATE",
	"INDIVIDUAL_ASV_PRESSURE",
	"COMMON_ASV",
}

func (p PressureControlPolicy) String() string {
	if p < 0 || int(p) >= len(pressureControlPolicyNames) {
		return "UNKNOWN"
	}
	return pressureControlPolicyNames[p]
}
