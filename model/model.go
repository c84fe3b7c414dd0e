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

// Package model reads an Entrain model description from YAML and turns
// it into simulation objects. Model files use field-engineering units
// (bara, °C, kJ/kg, MW); the simulation itself runs in SI, and the
// conversions happen here.
package model

import (
	"fmt"
	"io"
	"os"

	"github.com/ctessum/unit"
	"gopkg.in/yaml.v3"

	"github.com/energymodel/entrain"
)

// Model is the top-level YAML document.
type Model struct {
	Name   string     `yaml:"name"`
	Fluid  FluidSpec  `yaml:"fluid"`
	Train  TrainSpec  `yaml:"train"`
	Series SeriesSpec `yaml:"series"`
	Run    RunSpec    `yaml:"run"`
}

// FluidSpec describes the gas being compressed.
type FluidSpec struct {
	// Composition maps component names to mole fractions; they are
	// normalized on load, so relative amounts are acceptable.
	Composition map[string]float64 `yaml:"composition"`
	// CacheEntries, if positive, enables a flash-result cache of the
	// given size.
	CacheEntries int `yaml:"cache_entries"`
}

// TrainSpec describes the compressor train.
type TrainSpec struct {
	PressureControl           string      `yaml:"pressure_control"`
	FixedSpeedRPM             float64     `yaml:"fixed_speed_rpm"`
	MaximumPowerMW            float64     `yaml:"maximum_power_MW"`
	MaximumDischargeBara      float64     `yaml:"maximum_discharge_pressure_bara"`
	InterstageTargetStage     int         `yaml:"interstage_target_stage"`
	InterstagePressureControl string      `yaml:"interstage_pressure_control"`
	Stages                    []StageSpec `yaml:"stages"`
}

// StageSpec describes one compression stage.
type StageSpec struct {
	InletTemperatureC     float64   `yaml:"inlet_temperature_C"`
	PressureDropAheadBar  float64   `yaml:"pressure_drop_ahead_bar"`
	RemoveLiquid          bool      `yaml:"remove_liquid"`
	ControlMarginFraction float64   `yaml:"control_margin_fraction"`
	Chart                 ChartSpec `yaml:"chart"`
}

// ChartSpec describes a compressor chart either by explicit curves or
// by a design point from which a generic chart is synthesized.
type ChartSpec struct {
	Curves []CurveSpec      `yaml:"curves"`
	Design *DesignPointSpec `yaml:"design"`
}

// CurveSpec is one constant-speed chart curve.
type CurveSpec struct {
	SpeedRPM   float64   `yaml:"speed_rpm"`
	RateM3H    []float64 `yaml:"rate_m3_h"`
	HeadKJKg   []float64 `yaml:"head_kJ_kg"`
	Efficiency []float64 `yaml:"efficiency"`
}

// DesignPointSpec is a single rated operating point.
type DesignPointSpec struct {
	SpeedRPM   float64 `yaml:"speed_rpm"`
	RateM3H    float64 `yaml:"rate_m3_h"`
	HeadKJKg   float64 `yaml:"head_kJ_kg"`
	Efficiency float64 `yaml:"efficiency"`
}

// SeriesSpec points to the time-series inputs.
type SeriesSpec struct {
	// File is a CSV file of input series (see timeseries.ReadCSV).
	File string `yaml:"file"`
	// Expressions derive additional series from the input ones,
	// keyed by the derived series name.
	Expressions map[string]string `yaml:"expressions"`
}

// RunSpec binds each boundary condition to either a constant or a
// named series.
type RunSpec struct {
	MassRateKgH         ValueOrSeries  `yaml:"mass_rate_kg_h"`
	SuctionBara         ValueOrSeries  `yaml:"suction_pressure_bara"`
	DischargeBara       ValueOrSeries  `yaml:"discharge_pressure_bara"`
	InletTemperatureC   ValueOrSeries  `yaml:"inlet_temperature_C"`
	InterstageBara      *ValueOrSeries `yaml:"interstage_pressure_bara"`
}

// ValueOrSeries holds either a constant value or a series name, not
// both.
type ValueOrSeries struct {
	Value  *float64 `yaml:"value"`
	Series string   `yaml:"series"`
}

func (v ValueOrSeries) validate(what string) error {
	if v.Value != nil && v.Series != "" {
		return fmt.Errorf("model: %s: give either a value or a series, not both", what)
	}
	if v.Value == nil && v.Series == "" {
		return fmt.Errorf("model: %s: give a value or a series", what)
	}
	return nil
}

// Load reads and validates a model document.
func Load(r io.Reader) (*Model, error) {
	var m Model
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("model: decoding YAML: %v", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadFile reads and validates a model file.
func LoadFile(fileName string) (*Model, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("model: opening %s: %v", fileName, err)
	}
	defer f.Close()
	m, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("model: reading %s: %v", fileName, err)
	}
	return m, nil
}

func (m *Model) validate() error {
	if len(m.Fluid.Composition) == 0 {
		return fmt.Errorf("model: fluid composition is empty")
	}
	if len(m.Train.Stages) == 0 {
		return fmt.Errorf("model: train has no stages")
	}
	if _, err := parsePolicy(m.Train.PressureControl); err != nil {
		return err
	}
	if m.Train.InterstagePressureControl != "" {
		if _, err := parsePolicy(m.Train.InterstagePressureControl); err != nil {
			return err
		}
	}
	for i, st := range m.Train.Stages {
		if len(st.Chart.Curves) == 0 && st.Chart.Design == nil {
			return fmt.Errorf("model: stage %d: chart needs curves or a design point", i+1)
		}
		if len(st.Chart.Curves) > 0 && st.Chart.Design != nil {
			return fmt.Errorf("model: stage %d: chart has both curves and a design point", i+1)
		}
	}
	for what, v := range map[string]ValueOrSeries{
		"run.mass_rate_kg_h":          m.Run.MassRateKgH,
		"run.suction_pressure_bara":   m.Run.SuctionBara,
		"run.discharge_pressure_bara": m.Run.DischargeBara,
		"run.inlet_temperature_C":     m.Run.InletTemperatureC,
	} {
		if err := v.validate(what); err != nil {
			return err
		}
	}
	if m.Run.InterstageBara != nil {
		if err := m.Run.InterstageBara.validate("run.interstage_pressure_bara"); err != nil {
			return err
		}
	}
	return nil
}

func parsePolicy(name string) (entrain.PressureControlPolicy, error) {
	if name == "" {
		return entrain.DownstreamChoke, nil
	}
	for p := entrain.NoPressureControl; p <= entrain.CommonASV; p++ {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("model: unknown pressure control policy %q", name)
}

// Unit conversion helpers. Each one goes through github.com/ctessum/unit
// so that the dimensions of derived quantities stay checkable.

func bara(v float64) *unit.Unit { return unit.New(v*1e5, unit.Pascal) }

func celsius(v float64) *unit.Unit { return unit.New(v+273.15, unit.Kelvin) }

func kJPerKg(v float64) *unit.Unit {
	return unit.Div(unit.New(v*1e3, unit.Joule), unit.New(1, unit.Kilogram))
}

func megawatt(v float64) *unit.Unit { return unit.New(v*1e6, unit.Watt) }

// joulePerKilogram is specific energy [m2 s-2].
var joulePerKilogram = unit.Dimensions{unit.LengthDim: 2, unit.TimeDim: -2}

func toSI(u *unit.Unit, d unit.Dimensions, what string) (float64, error) {
	if err := u.Check(d); err != nil {
		return 0, fmt.Errorf("model: %s: %v", what, err)
	}
	return u.Value(), nil
}
