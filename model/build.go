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

package model

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ctessum/unit"
	"github.com/sirupsen/logrus"

	"github.com/energymodel/entrain"
	"github.com/energymodel/entrain/fluid"
	"github.com/energymodel/entrain/timeseries"
)

// Generic chart synthesis. A design point is expanded into a family of
// constant-speed curves using fan-law scaling (rate ∝ speed,
// head ∝ speed²), with head and efficiency shapes typical of a
// variable-speed centrifugal compressor.
var (
	genericSpeedFractions = []float64{0.75, 0.875, 1, 1.05}
	genericRateFractions  = []float64{0.7, 0.85, 1, 1.15}
	genericHeadFactors    = []float64{1.18, 1.1, 1, 0.75}
	genericEffFactors     = []float64{0.92, 0.98, 1, 0.92}
)

func synthesizeChart(d *DesignPointSpec) (*entrain.CompressorChart, error) {
	if d.SpeedRPM <= 0 || d.RateM3H <= 0 || d.HeadKJKg <= 0 {
		return nil, fmt.Errorf("model: design point must have positive speed, rate and head")
	}
	if d.Efficiency <= 0 || d.Efficiency > 1 {
		return nil, fmt.Errorf("model: design point efficiency %g outside (0, 1]", d.Efficiency)
	}
	designHead, err := toSI(kJPerKg(d.HeadKJKg), joulePerKilogram, "design head")
	if err != nil {
		return nil, err
	}
	curves := make([]*entrain.ChartCurve, 0, len(genericSpeedFractions))
	for _, sf := range genericSpeedFractions {
		rate := make([]float64, len(genericRateFractions))
		head := make([]float64, len(genericRateFractions))
		eff := make([]float64, len(genericRateFractions))
		for i := range genericRateFractions {
			rate[i] = d.RateM3H * sf * genericRateFractions[i]
			head[i] = designHead * sf * sf * genericHeadFactors[i]
			eff[i] = math.Min(1, d.Efficiency*genericEffFactors[i])
		}
		c, err := entrain.NewChartCurve(d.SpeedRPM*sf, rate, head, eff)
		if err != nil {
			return nil, fmt.Errorf("model: synthesizing curve at %g rpm: %v", d.SpeedRPM*sf, err)
		}
		curves = append(curves, c)
	}
	return entrain.NewCompressorChart(curves)
}

func buildChart(spec ChartSpec) (*entrain.CompressorChart, error) {
	if spec.Design != nil {
		return synthesizeChart(spec.Design)
	}
	curves := make([]*entrain.ChartCurve, 0, len(spec.Curves))
	for _, cs := range spec.Curves {
		head := make([]float64, len(cs.HeadKJKg))
		for i, h := range cs.HeadKJKg {
			v, err := toSI(kJPerKg(h), joulePerKilogram, "curve head")
			if err != nil {
				return nil, err
			}
			head[i] = v
		}
		c, err := entrain.NewChartCurve(cs.SpeedRPM, cs.RateM3H, head, cs.Efficiency)
		if err != nil {
			return nil, fmt.Errorf("model: curve at %g rpm: %v", cs.SpeedRPM, err)
		}
		curves = append(curves, c)
	}
	return entrain.NewCompressorChart(curves)
}

// BuildFluid creates the fluid service described by the model,
// wrapping it in a flash cache if one is configured.
func (m *Model) BuildFluid() (entrain.FluidService, error) {
	gas, err := fluid.New(m.Fluid.Composition)
	if err != nil {
		return nil, err
	}
	if m.Fluid.CacheEntries > 0 {
		return fluid.NewCached(gas, m.Fluid.CacheEntries), nil
	}
	return gas, nil
}

// BuildTrain creates the compressor train described by the model.
func (m *Model) BuildTrain(f entrain.FluidService, log logrus.FieldLogger) (*entrain.Train, error) {
	policy, err := parsePolicy(m.Train.PressureControl)
	if err != nil {
		return nil, err
	}
	cfg := entrain.TrainConfig{
		FixedSpeed:            m.Train.FixedSpeedRPM,
		PressureControl:       policy,
		InterstageTargetStage: m.Train.InterstageTargetStage,
	}
	if m.Train.InterstagePressureControl != "" {
		p, err := parsePolicy(m.Train.InterstagePressureControl)
		if err != nil {
			return nil, err
		}
		cfg.InterstagePressureControl = p
	}
	if m.Train.MaximumPowerMW > 0 {
		v, err := toSI(megawatt(m.Train.MaximumPowerMW), unit.Watt, "maximum power")
		if err != nil {
			return nil, err
		}
		cfg.MaximumPower = v
	}
	if m.Train.MaximumDischargeBara > 0 {
		v, err := toSI(bara(m.Train.MaximumDischargeBara), unit.Pascal, "maximum discharge pressure")
		if err != nil {
			return nil, err
		}
		cfg.MaximumDischargePressure = v
	}
	for i, ss := range m.Train.Stages {
		chart, err := buildChart(ss.Chart)
		if err != nil {
			return nil, fmt.Errorf("model: stage %d: %v", i+1, err)
		}
		t, err := toSI(celsius(ss.InletTemperatureC), unit.Kelvin, "stage inlet temperature")
		if err != nil {
			return nil, err
		}
		drop, err := toSI(bara(ss.PressureDropAheadBar), unit.Pascal, "stage pressure drop")
		if err != nil {
			return nil, err
		}
		cfg.Stages = append(cfg.Stages, entrain.StageConfig{
			Chart:                 chart,
			InletTemperature:      t,
			PressureDropAhead:     drop,
			RemoveLiquid:          ss.RemoveLiquid,
			ControlMarginFraction: ss.ControlMarginFraction,
		})
	}
	t, err := entrain.NewTrain(cfg, f)
	if err != nil {
		return nil, err
	}
	if log != nil {
		t.Log = log
		for _, st := range t.Stages {
			st.Log = log
		}
	}
	return t, nil
}

// BuildSeries reads the input series file and evaluates the derived
// series expressions. Models whose boundary conditions are all
// constant may omit the series file.
func (m *Model) BuildSeries() (*timeseries.Collection, error) {
	if m.Series.File == "" {
		if m.usesSeries() {
			return nil, fmt.Errorf("model: run refers to series but no series file is given")
		}
		return timeseries.NewCollection(), nil
	}
	f, err := os.Open(m.Series.File)
	if err != nil {
		return nil, fmt.Errorf("model: opening series file: %v", err)
	}
	defer f.Close()
	c, err := timeseries.ReadCSV(f)
	if err != nil {
		return nil, err
	}
	for name, expr := range m.Series.Expressions {
		s, err := c.Evaluate(name, expr, nil)
		if err != nil {
			return nil, err
		}
		if err := c.Add(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (m *Model) usesSeries() bool {
	specs := []ValueOrSeries{m.Run.MassRateKgH, m.Run.SuctionBara, m.Run.DischargeBara, m.Run.InletTemperatureC}
	if m.Run.InterstageBara != nil {
		specs = append(specs, *m.Run.InterstageBara)
	}
	for _, v := range specs {
		if v.Series != "" {
			return true
		}
	}
	return false
}

func resolve(v ValueOrSeries, c *timeseries.Collection, t time.Time) (float64, error) {
	if v.Value != nil {
		return *v.Value, nil
	}
	s, ok := c.Get(v.Series)
	if !ok {
		return 0, fmt.Errorf("model: unknown series %q", v.Series)
	}
	return s.At(t), nil
}

// Boundaries assembles per-time-step boundary conditions from the run
// specification, converting field units to SI. Constant boundary
// conditions repeat at every step.
func (m *Model) Boundaries(c *timeseries.Collection, times []time.Time) ([]entrain.BoundaryConditions, error) {
	out := make([]entrain.BoundaryConditions, len(times))
	for i, t := range times {
		rate, err := resolve(m.Run.MassRateKgH, c, t)
		if err != nil {
			return nil, err
		}
		suction, err := resolve(m.Run.SuctionBara, c, t)
		if err != nil {
			return nil, err
		}
		discharge, err := resolve(m.Run.DischargeBara, c, t)
		if err != nil {
			return nil, err
		}
		temp, err := resolve(m.Run.InletTemperatureC, c, t)
		if err != nil {
			return nil, err
		}
		bc := entrain.BoundaryConditions{MassRate: rate}
		if bc.SuctionPressure, err = toSI(bara(suction), unit.Pascal, "suction pressure"); err != nil {
			return nil, err
		}
		if bc.DischargePressure, err = toSI(bara(discharge), unit.Pascal, "discharge pressure"); err != nil {
			return nil, err
		}
		if bc.InletTemperature, err = toSI(celsius(temp), unit.Kelvin, "inlet temperature"); err != nil {
			return nil, err
		}
		if m.Run.InterstageBara != nil {
			inter, err := resolve(*m.Run.InterstageBara, c, t)
			if err != nil {
				return nil, err
			}
			if bc.InterstagePressure, err = toSI(bara(inter), unit.Pascal, "interstage pressure"); err != nil {
				return nil, err
			}
		}
		out[i] = bc
	}
	return out, nil
}
