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

// Package fluid provides a reference implementation of the
// entrain.FluidService interface for natural gas mixtures: ideal-gas
// caloric behavior corrected with a Papay compressibility factor
// estimated from pseudo-critical mixture properties. It is suitable for
// energy reporting of lean gases at moderate reduced pressures; plug in
// a full equation-of-state service where higher accuracy is needed.
package fluid

import (
	"fmt"
	"math"
	"sort"

	"github.com/energymodel/entrain"
)

// Universal gas constant [J/(mol·K)].
const r = 8.314462618

// Standard reference conditions (ISO 13443): 15 °C, 1 atm.
const (
	standardTemperature = 288.15   // [K]
	standardPressure    = 101325.0 // [Pa]
)

// component holds pure-component constants: molar mass [kg/mol],
// ideal-gas molar heat capacity [J/(mol·K)] and critical point [K, Pa].
type component struct {
	molarMass float64
	cp        float64
	tc, pc    float64
}

var components = map[string]component{
	"methane":   {16.043e-3, 35.69, 190.56, 4.599e6},
	"ethane":    {30.070e-3, 52.49, 305.32, 4.872e6},
	"propane":   {44.097e-3, 73.60, 369.83, 4.248e6},
	"i-butane":  {58.123e-3, 96.65, 407.85, 3.640e6},
	"n-butane":  {58.123e-3, 98.49, 425.12, 3.796e6},
	"i-pentane": {72.150e-3, 118.87, 460.39, 3.381e6},
	"n-pentane": {72.150e-3, 120.07, 469.70, 3.370e6},
	"n-hexane":  {86.177e-3, 142.60, 507.60, 3.025e6},
	"nitrogen":  {28.013e-3, 29.12, 126.20, 3.398e6},
	"CO2":       {44.010e-3, 37.13, 304.12, 7.374e6},
	"H2S":       {34.081e-3, 34.19, 373.40, 8.963e6},
	"water":     {18.015e-3, 33.58, 647.10, 22.06e6},
}

// Components lists the supported component names.
func Components() []string {
	names := make([]string, 0, len(components))
	for n := range components {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Gas is a fixed-composition natural gas mixture implementing
// entrain.FluidService. A Gas is immutable and safe for concurrent use.
type Gas struct {
	fractions map[string]float64 // normalized mole fractions
	molarMass float64            // [kg/mol]
	cpMolar   float64            // [J/(mol·K)]
	tc, pc    float64            // pseudo-critical mixture point
	dry       *Gas               // composition with water removed; nil if already dry
	waterMass float64            // water mass fraction
}

// New builds a gas from mole fractions (they need not sum to one; they
// are normalized). Component names must be among Components().
func New(composition map[string]float64) (*Gas, error) {
	if len(composition) == 0 {
		return nil, fmt.Errorf("fluid: empty composition")
	}
	var total float64
	for name, x := range composition {
		if _, ok := components[name]; !ok {
			return nil, fmt.Errorf("fluid: unknown component %q", name)
		}
		if x < 0 {
			return nil, fmt.Errorf("fluid: negative mole fraction %g for %q", x, name)
		}
		total += x
	}
	if total <= 0 {
		return nil, fmt.Errorf("fluid: mole fractions sum to zero")
	}
	g := &Gas{fractions: make(map[string]float64, len(composition))}
	for name, x := range composition {
		if x == 0 {
			continue
		}
		frac := x / total
		c := components[name]
		g.fractions[name] = frac
		g.molarMass += frac * c.molarMass
		g.cpMolar += frac * c.cp
		// Kay's rule pseudo-criticals.
		g.tc += frac * c.tc
		g.pc += frac * c.pc
	}
	if w, ok := g.fractions["water"]; ok && w > 0 {
		g.waterMass = w * components["water"].molarMass / g.molarMass
		dryComp := make(map[string]float64, len(g.fractions))
		for name, x := range g.fractions {
			if name != "water" {
				dryComp[name] = x
			}
		}
		dry, err := New(dryComp)
		if err != nil {
			return nil, fmt.Errorf("fluid: deriving dry composition: %v", err)
		}
		g.dry = dry
	}
	return g, nil
}

// MolarMass returns the mixture molar mass [kg/mol].
func (g *Gas) MolarMass() float64 { return g.molarMass }

// zFactor estimates the compressibility factor with the Papay
// correlation from reduced pressure and temperature. Adequate below
// roughly Pr = 3 for lean hydrocarbon gases.
func zFactor(pr, tr float64) float64 {
	z := 1 - 3.53*pr/math.Pow(10, 0.9813*tr) + 0.274*pr*pr/math.Pow(10, 0.8157*tr)
	if z < 0.2 {
		z = 0.2
	}
	return z
}

// cpMass returns the mass-based heat capacity [J/(kg·K)].
func (g *Gas) cpMass() float64 { return g.cpMolar / g.molarMass }

// FlashPT implements entrain.FluidService.
func (g *Gas) FlashPT(pressure, temperature float64) (entrain.Properties, error) {
	if pressure <= 0 || temperature <= 0 {
		return entrain.Properties{}, fmt.Errorf("fluid: flash needs positive pressure and temperature; got %g Pa, %g K",
			pressure, temperature)
	}
	z := zFactor(pressure/g.pc, temperature/g.tc)
	zStd := zFactor(standardPressure/g.pc, standardTemperature/g.tc)
	kappa := g.cpMolar / (g.cpMolar - r)
	return entrain.Properties{
		Pressure:        pressure,
		Temperature:     temperature,
		Density:         pressure * g.molarMass / (z * r * temperature),
		Z:               z,
		Kappa:           kappa,
		Enthalpy:        g.cpMass() * (temperature - standardTemperature),
		StandardDensity: standardPressure * g.molarMass / (zStd * r * standardTemperature),
		MolarMass:       g.molarMass,
	}, nil
}

// FlashPH implements entrain.FluidService: an enthalpy change maps to a
// temperature change through the (constant) heat capacity.
func (g *Gas) FlashPH(pressure, deltaEnthalpy float64, from entrain.Properties) (entrain.Properties, error) {
	t2 := from.Temperature + deltaEnthalpy/g.cpMass()
	props, err := g.FlashPT(pressure, t2)
	if err != nil {
		return entrain.Properties{}, err
	}
	props.Enthalpy = from.Enthalpy + deltaEnthalpy
	return props, nil
}

// RemoveLiquid implements entrain.FluidService. Water is treated as
// fully condensed at scrubber conditions; hydrocarbons stay in the gas
// phase. The dry composition derived at construction carries the
// remaining stream forward.
func (g *Gas) RemoveLiquid(state entrain.Properties) (entrain.FluidService, entrain.Properties, float64, error) {
	if g.dry == nil {
		return g, state, 0, nil
	}
	props, err := g.dry.FlashPT(state.Pressure, state.Temperature)
	if err != nil {
		return nil, entrain.Properties{}, 0, err
	}
	return g.dry, props, g.waterMass, nil
}
