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

// Package entrain simulates the energy consumption of oil and gas
// compression equipment for emissions reporting. The core of the package
// is a compressor train model: an ordered set of compression stages on a
// common shaft, each stage constrained by a performance chart relating
// volumetric rate to polytropic head and efficiency at a family of shaft
// speeds. Given suction and discharge pressure targets and a mass rate,
// the solvers in this package find the shaft speed and any anti-surge
// recirculation needed to satisfy the targets, and classify every
// operating point against the chart envelope.
//
// Each discrete time step of an input time series is evaluated
// independently and synchronously; a Train carries no state between
// evaluations, so callers may evaluate different time steps concurrently
// as long as each goroutine uses its own Train instance.
package entrain
