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

package fluid

import (
	"math"
	"testing"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// leanGas is a typical North Sea export gas composition.
func leanGas(t *testing.T) *Gas {
	t.Helper()
	g, err := New(map[string]float64{
		"methane":  0.85,
		"ethane":   0.07,
		"propane":  0.03,
		"n-butane": 0.01,
		"nitrogen": 0.02,
		"CO2":      0.02,
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("empty composition should be rejected")
	}
	if _, err := New(map[string]float64{"kryptonite": 1}); err == nil {
		t.Error("unknown component should be rejected")
	}
	if _, err := New(map[string]float64{"methane": -1}); err == nil {
		t.Error("negative fraction should be rejected")
	}
	if _, err := New(map[string]float64{"methane": 0}); err == nil {
		t.Error("all-zero composition should be rejected")
	}
}

func TestNewNormalizes(t *testing.T) {
	// Fractions need not sum to one; relative amounts decide.
	a, err := New(map[string]float64{"methane": 0.9, "ethane": 0.1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(map[string]float64{"methane": 90, "ethane": 10})
	if err != nil {
		t.Fatal(err)
	}
	if different(a.MolarMass(), b.MolarMass(), 1e-12) {
		t.Errorf("molar mass differs after normalization: %g vs %g", a.MolarMass(), b.MolarMass())
	}
	want := 0.9*16.043e-3 + 0.1*30.070e-3
	if different(a.MolarMass(), want, 1e-12) {
		t.Errorf("molar mass = %g; want %g", a.MolarMass(), want)
	}
}

func TestComponents(t *testing.T) {
	names := Components()
	if len(names) != 12 {
		t.Errorf("got %d components; want 12", len(names))
	}
	seen := make(map[string]bool)
	for _, n := range names {
		seen[n] = true
	}
	for _, n := range []string{"methane", "water", "H2S"} {
		if !seen[n] {
			t.Errorf("component %q missing", n)
		}
	}
}

func TestZFactor(t *testing.T) {
	// At vanishing reduced pressure the gas is ideal.
	if z := zFactor(0, 1.5); z != 1 {
		t.Errorf("zFactor(0, 1.5) = %g; want 1", z)
	}
	// At moderate reduced pressure the factor drops below one.
	z := zFactor(1.5, 1.6)
	if z >= 1 || z < 0.2 {
		t.Errorf("zFactor(1.5, 1.6) = %g outside (0.2, 1)", z)
	}
	// The floor keeps extreme inputs usable.
	if z := zFactor(10, 1.0); z != 0.2 {
		t.Errorf("zFactor(10, 1) = %g; want floor 0.2", z)
	}
}

func TestFlashPT(t *testing.T) {
	g := leanGas(t)
	props, err := g.FlashPT(40e5, 303.15)
	if err != nil {
		t.Fatal(err)
	}
	if props.Pressure != 40e5 || props.Temperature != 303.15 {
		t.Errorf("state not echoed: %g Pa, %g K", props.Pressure, props.Temperature)
	}
	if props.Z <= 0.8 || props.Z >= 1 {
		t.Errorf("Z = %g outside the plausible (0.8, 1) band for a lean gas at 40 bara", props.Z)
	}
	// Real-gas density exceeds the ideal-gas value by the factor 1/Z.
	ideal := 40e5 * g.MolarMass() / (r * 303.15)
	if different(props.Density, ideal/props.Z, 1e-12) {
		t.Errorf("density = %g; want %g", props.Density, ideal/props.Z)
	}
	if props.Kappa <= 1 || props.Kappa >= 1.4 {
		t.Errorf("kappa = %g outside the plausible (1, 1.4) band", props.Kappa)
	}
	if props.StandardDensity <= 0.6 || props.StandardDensity >= 1.2 {
		t.Errorf("standard density = %g kg/Sm³ outside the plausible band", props.StandardDensity)
	}
	if _, err := g.FlashPT(-1, 300); err == nil {
		t.Error("negative pressure should be an error")
	}
}

func TestFlashPHRoundTrip(t *testing.T) {
	g := leanGas(t)
	from, err := g.FlashPT(40e5, 303.15)
	if err != nil {
		t.Fatal(err)
	}
	dh := 150e3 // [J/kg]
	to, err := g.FlashPH(90e5, dh, from)
	if err != nil {
		t.Fatal(err)
	}
	if different(to.Enthalpy-from.Enthalpy, dh, 1e-9) {
		t.Errorf("enthalpy change = %g; want %g", to.Enthalpy-from.Enthalpy, dh)
	}
	if to.Temperature <= from.Temperature {
		t.Errorf("compression heating missing: %g K -> %g K", from.Temperature, to.Temperature)
	}
	want := from.Temperature + dh/g.cpMass()
	if different(to.Temperature, want, 1e-12) {
		t.Errorf("temperature = %g K; want %g", to.Temperature, want)
	}
}

func TestRemoveLiquidDry(t *testing.T) {
	g := leanGas(t)
	props, err := g.FlashPT(40e5, 303.15)
	if err != nil {
		t.Fatal(err)
	}
	fl, got, frac, err := g.RemoveLiquid(props)
	if err != nil {
		t.Fatal(err)
	}
	if frac != 0 {
		t.Errorf("dry gas removed fraction = %g; want 0", frac)
	}
	if got != props {
		t.Error("dry gas state should pass through unchanged")
	}
	if fl.(*Gas) != g {
		t.Error("dry gas should return itself as the remaining fluid")
	}
}

func TestRemoveLiquidWet(t *testing.T) {
	wet, err := New(map[string]float64{"methane": 0.95, "water": 0.05})
	if err != nil {
		t.Fatal(err)
	}
	props, err := wet.FlashPT(40e5, 303.15)
	if err != nil {
		t.Fatal(err)
	}
	dryFluid, dryProps, frac, err := wet.RemoveLiquid(props)
	if err != nil {
		t.Fatal(err)
	}
	wantFrac := 0.05 * 18.015e-3 / wet.MolarMass()
	if different(frac, wantFrac, 1e-12) {
		t.Errorf("removed mass fraction = %g; want %g", frac, wantFrac)
	}
	// The remaining gas is pure methane.
	if different(dryProps.MolarMass, 16.043e-3, 1e-12) {
		t.Errorf("dry molar mass = %g; want methane", dryProps.MolarMass)
	}
	// The returned service evaluates the dry composition, so removing
	// liquid again is a no-op.
	again, sameProps, frac2, err := dryFluid.RemoveLiquid(dryProps)
	if err != nil {
		t.Fatal(err)
	}
	if frac2 != 0 {
		t.Errorf("second removal took out fraction %g; want 0", frac2)
	}
	if again.(*Gas) != dryFluid.(*Gas) || sameProps != dryProps {
		t.Error("second removal should pass the dry gas through unchanged")
	}
}
