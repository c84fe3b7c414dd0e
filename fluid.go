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

import "fmt"

// Properties holds the thermodynamic state of a fluid of fixed
// composition at one state point, as reported by a FluidService.
// All values are SI: pressure [Pa], temperature [K], density [kg/m³],
// enthalpy [J/kg], standard density [kg/Sm³].
type Properties struct {
	Pressure        float64
	Temperature     float64
	Density         float64
	Z               float64 // compressibility factor [-]
	Kappa           float64 // heat capacity ratio cp/cv [-]
	Enthalpy        float64
	StandardDensity float64
	MolarMass       float64 // [kg/mol]
}

// FluidService evaluates thermodynamic properties for a fluid of fixed
// composition. Implementations must be pure functions of their
// arguments: the solvers call them repeatedly inside iterative loops and
// depend on repeatable results.
type FluidService interface {
	// FlashPT returns the fluid state at the given pressure [Pa] and
	// temperature [K].
	FlashPT(pressure, temperature float64) (Properties, error)

	// FlashPH returns the fluid state at the given pressure [Pa] after
	// changing the specific enthalpy of the from state by deltaEnthalpy
	// [J/kg].
	FlashPH(pressure, deltaEnthalpy float64, from Properties) (Properties, error)

	// RemoveLiquid returns the service evaluating the remaining
	// gas-phase composition and its state after any condensed liquid is
	// taken out at the given state, along with the mass fraction
	// removed. A dry gas returns the receiver itself and a zero
	// fraction. Callers must carry the returned service forward so
	// later flashes do not re-condense the removed liquid.
	RemoveLiquid(state Properties) (FluidService, Properties, float64, error)
}

// Stream is a fluid stream: a thermodynamic state plus a mass rate
// [kg/h] and the service that evaluates the fluid's properties.
type Stream struct {
	Properties
	MassRate float64
	Fluid    FluidService
}

// NewStream creates a stream by flashing the fluid to the given
// pressure [Pa] and temperature [K] at the given mass rate [kg/h].
func NewStream(fluid FluidService, pressure, temperature, massRate float64) (Stream, error) {
	props, err := fluid.FlashPT(pressure, temperature)
	if err != nil {
		return Stream{}, fmt.Errorf("entrain: flashing inlet stream: %v", err)
	}
	return Stream{Properties: props, MassRate: massRate, Fluid: fluid}, nil
}

// ActualRate returns the volumetric rate [m³/h] at stream conditions.
func (s Stream) ActualRate() float64 {
	if s.Density == 0 {
		return 0
	}
	return s.MassRate / s.Density
}

// StandardRate returns the volumetric rate [Sm³/h] at standard
// conditions.
func (s Stream) StandardRate() float64 {
	if s.StandardDensity == 0 {
		return 0
	}
	return s.MassRate / s.StandardDensity
}

// FlashPT returns a copy of the stream flashed to a new pressure [Pa]
// and temperature [K], keeping the mass rate.
func (s Stream) FlashPT(pressure, temperature float64) (Stream, error) {
	props, err := s.Fluid.FlashPT(pressure, temperature)
	if err != nil {
		return Stream{}, err
	}
	s.Properties = props
	return s, nil
}

// FlashPH returns a copy of the stream flashed to a new pressure [Pa]
// with the specific enthalpy changed by deltaEnthalpy [J/kg], keeping
// the mass rate.
func (s Stream) FlashPH(pressure, deltaEnthalpy float64) (Stream, error) {
	props, err := s.Fluid.FlashPH(pressure, deltaEnthalpy, s.Properties)
	if err != nil {
		return Stream{}, err
	}
	s.Properties = props
	return s, nil
}

// WithMassRate returns a copy of the stream at the same state with a
// different mass rate [kg/h].
func (s Stream) WithMassRate(massRate float64) Stream {
	s.MassRate = massRate
	return s
}
