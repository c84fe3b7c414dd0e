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

	"github.com/sirupsen/logrus"
)

// Iteration budgets for the numeric search loops. When a budget is
// exhausted the last estimate is used and a warning is logged; the time
// series keeps going.
const (
	maxBisectIter = 100
	maxRootIter   = 50
)

// Boundary is a closed numeric interval used as a search space for
// shaft speeds and recirculation rates.
type Boundary struct {
	Min, Max float64
}

// Contains reports whether v lies inside the interval.
func (b Boundary) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Clamp returns v limited to the interval.
func (b Boundary) Clamp(v float64) float64 {
	return math.Min(math.Max(v, b.Min), b.Max)
}

// FloatConstraint is a target value with an absolute acceptance
// tolerance. Equality against a constraint is always tolerance-based.
type FloatConstraint struct {
	Value  float64
	AbsTol float64
}

// SatisfiedBy reports whether v meets the constraint within tolerance.
func (c FloatConstraint) SatisfiedBy(v float64) bool {
	return math.Abs(v-c.Value) <= c.AbsTol
}

// searchLog resolves the logger a search warning goes to: the calling
// component's logger when one was passed, the process-wide standard
// logger otherwise.
func searchLog(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return logrus.StandardLogger()
	}
	return log
}

// BisectHighest returns the largest x in b for which ok(x) is true,
// assuming ok is monotonically non-increasing in x (true on some prefix
// of the interval, false after). If ok is false everywhere the result is
// b.Min; if true everywhere, b.Max. The result is accurate to absTol.
// ok may be discontinuous; only its monotone direction is relied on.
// Budget-exhaustion warnings go to log; nil means the standard logger.
func BisectHighest(b Boundary, absTol float64, ok func(float64) bool, log logrus.FieldLogger) float64 {
	if !ok(b.Min) {
		return b.Min
	}
	if ok(b.Max) {
		return b.Max
	}
	lo, hi := b.Min, b.Max // invariant: ok(lo) && !ok(hi)
	for i := 0; i < maxBisectIter; i++ {
		if hi-lo <= absTol {
			return lo
		}
		mid := lo + (hi-lo)/2
		if ok(mid) {
			lo = mid
		} else {
			hi = mid
		}
	}
	searchLog(log).WithFields(logrus.Fields{
		"lo": lo, "hi": hi, "tolerance": absTol,
	}).Warn("entrain: bisection iteration budget exhausted")
	return lo
}

// BisectLowest returns the smallest x in b for which ok(x) is true,
// assuming ok is monotonically non-decreasing in x. If ok is false
// everywhere the result is b.Max.
func BisectLowest(b Boundary, absTol float64, ok func(float64) bool, log logrus.FieldLogger) float64 {
	if ok(b.Min) {
		return b.Min
	}
	if !ok(b.Max) {
		return b.Max
	}
	lo, hi := b.Min, b.Max // invariant: !ok(lo) && ok(hi)
	for i := 0; i < maxBisectIter; i++ {
		if hi-lo <= absTol {
			return hi
		}
		mid := lo + (hi-lo)/2
		if ok(mid) {
			hi = mid
		} else {
			lo = mid
		}
	}
	searchLog(log).WithFields(logrus.Fields{
		"lo": lo, "hi": hi, "tolerance": absTol,
	}).Warn("entrain: bisection iteration budget exhausted")
	return hi
}

// FindRoot locates x in b with f(x) ≈ 0 for a smooth f, accurate to
// absTol in x, using bisection accelerated with a secant step. If f does
// not change sign over the interval no root is bracketed; FindRoot then
// returns the boundary value whose function value is closest to zero and
// ok=false, rather than failing, so iterative callers always receive a
// usable best-effort estimate.
func FindRoot(f func(float64) float64, b Boundary, absTol float64, log logrus.FieldLogger) (x float64, ok bool) {
	lo, hi := b.Min, b.Max
	flo, fhi := f(lo), f(hi)
	if flo == 0 {
		return lo, true
	}
	if fhi == 0 {
		return hi, true
	}
	if math.IsNaN(flo) || math.IsNaN(fhi) || flo*fhi > 0 {
		if math.Abs(flo) <= math.Abs(fhi) || math.IsNaN(fhi) {
			return lo, false
		}
		return hi, false
	}
	x = lo
	for i := 0; i < maxRootIter; i++ {
		if hi-lo <= absTol {
			return lo + (hi-lo)/2, true
		}
		// Secant estimate on alternating iterations, otherwise the
		// midpoint, so the bracket is guaranteed to shrink.
		mid := lo + (hi-lo)/2
		if i%2 == 0 {
			x = mid
		} else {
			x = lo - flo*(hi-lo)/(fhi-flo)
			if x <= lo || x >= hi {
				x = mid
			}
		}
		fx := f(x)
		if fx == 0 || math.IsNaN(fx) {
			return x, !math.IsNaN(fx)
		}
		if flo*fx < 0 {
			hi, fhi = x, fx
		} else {
			lo, flo = x, fx
		}
	}
	searchLog(log).WithFields(logrus.Fields{
		"lo": lo, "hi": hi, "tolerance": absTol,
	}).Warn("entrain: root finder iteration budget exhausted")
	return x, true
}
