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

package timeseries

import (
	"fmt"
	"math"
	"time"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/ctessum/sparse"

	"github.com/energymodel/entrain"
)

// RunResult accumulates the per-time-step results of simulating one
// compressor train over a time vector. Per-stage quantities are stored
// as [time step × stage] matrices.
type RunResult struct {
	Times  []time.Time
	Stages int

	// Train-level quantities, one entry per time step.
	Power             []float64 // W
	Speed             []float64 // rpm
	RecirculationLoss []float64 // W
	SuctionPressure   []float64 // Pa
	DischargePressure []float64 // Pa
	MassRate          []float64 // kg/h
	Valid             []bool
	Failure           []entrain.FailureStatus

	// Stage-level quantities, shape [len(Times), Stages].
	StagePower      *sparse.DenseArray // W
	StageHead       *sparse.DenseArray // J/kg
	StageEfficiency *sparse.DenseArray
	StageRate       *sparse.DenseArray // m³/h at stage inlet
	StageRecircLoss *sparse.DenseArray // W
}

// NewRunResult allocates a result holder for a run over the given time
// vector with nStages compression stages per step.
func NewRunResult(times []time.Time, nStages int) *RunResult {
	nt := len(times)
	return &RunResult{
		Times:             times,
		Stages:            nStages,
		Power:             make([]float64, nt),
		Speed:             make([]float64, nt),
		RecirculationLoss: make([]float64, nt),
		SuctionPressure:   make([]float64, nt),
		DischargePressure: make([]float64, nt),
		MassRate:          make([]float64, nt),
		Valid:             make([]bool, nt),
		Failure:           make([]entrain.FailureStatus, nt),
		StagePower:        sparse.ZerosDense(nt, nStages),
		StageHead:         sparse.ZerosDense(nt, nStages),
		StageEfficiency:   sparse.ZerosDense(nt, nStages),
		StageRate:         sparse.ZerosDense(nt, nStages),
		StageRecircLoss:   sparse.ZerosDense(nt, nStages),
	}
}

// Record stores the result of time step i.
func (r *RunResult) Record(i int, tr *entrain.TrainResult) error {
	if i < 0 || i >= len(r.Times) {
		return fmt.Errorf("timeseries: time step %d out of range [0, %d)", i, len(r.Times))
	}
	if len(tr.Stages) != r.Stages {
		return fmt.Errorf("timeseries: result has %d stages; expected %d", len(tr.Stages), r.Stages)
	}
	r.Power[i] = tr.Power
	r.Speed[i] = tr.Speed
	r.RecirculationLoss[i] = tr.RecirculationLoss
	r.SuctionPressure[i] = tr.Inlet.Pressure
	r.DischargePressure[i] = tr.Outlet.Pressure
	r.MassRate[i] = tr.Inlet.MassRate
	r.Valid[i] = tr.Valid
	r.Failure[i] = tr.Failure
	for j, sr := range tr.Stages {
		r.StagePower.Set(sr.Power, i, j)
		r.StageHead.Set(sr.PolytropicHead, i, j)
		r.StageEfficiency.Set(sr.PolytropicEfficiency, i, j)
		r.StageRate.Set(sr.ActualRate, i, j)
		r.StageRecircLoss.Set(sr.RecirculationLoss, i, j)
	}
	return nil
}

// RunSummary aggregates a run: power statistics over the valid time
// steps and total energy from integrating power over time.
type RunSummary struct {
	Steps        int
	InvalidSteps int
	MeanPower    float64 // W
	MaxPower     float64 // W
	StdDevPower  float64 // W
	TotalEnergy  float64 // J
}

// Summary computes run statistics. Power statistics cover valid steps
// only; TotalEnergy integrates power left-held over the time vector,
// so the last step contributes nothing.
func (r *RunResult) Summary() RunSummary {
	s := RunSummary{Steps: len(r.Times)}
	var valid []float64
	for i, ok := range r.Valid {
		if ok && !math.IsNaN(r.Power[i]) {
			valid = append(valid, r.Power[i])
		} else {
			s.InvalidSteps++
		}
	}
	if len(valid) > 0 {
		s.MeanPower = stats.StatsMean(valid)
		s.MaxPower = stats.StatsMax(valid)
		if len(valid) > 1 {
			s.StdDevPower = stats.StatsSampleStandardDeviation(valid)
		}
	}
	for i := 0; i+1 < len(r.Times); i++ {
		if !r.Valid[i] || math.IsNaN(r.Power[i]) {
			continue
		}
		dt := r.Times[i+1].Sub(r.Times[i]).Seconds()
		s.TotalEnergy += r.Power[i] * dt
	}
	return s
}
