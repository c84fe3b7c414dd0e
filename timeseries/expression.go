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

	"github.com/Knetic/govaluate"
)

// defaultExpressionFuncs are the functions available in derived-series
// expressions in addition to govaluate's built-in operators:
//
// 'exp(x)' applies the exponential function e^x.
//
// 'log(x)' applies the natural logarithm.
//
// 'min(x, y)' and 'max(x, y)' select between two values.
//
// 'abs(x)' takes the absolute value.
func defaultExpressionFuncs() map[string]govaluate.ExpressionFunction {
	arg1 := func(name string, f func(float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("timeseries: got %d arguments for function %q, but needs 1", len(arg), name)
			}
			return f(arg[0].(float64)), nil
		}
	}
	arg2 := func(name string, f func(float64, float64) float64) govaluate.ExpressionFunction {
		return func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 2 {
				return nil, fmt.Errorf("timeseries: got %d arguments for function %q, but needs 2", len(arg), name)
			}
			return f(arg[0].(float64), arg[1].(float64)), nil
		}
	}
	return map[string]govaluate.ExpressionFunction{
		"exp": arg1("exp", math.Exp),
		"log": arg1("log", math.Log),
		"abs": arg1("abs", math.Abs),
		"min": arg2("min", math.Min),
		"max": arg2("max", math.Max),
	}
}

// Evaluate derives a new series from an expression over the series in
// the collection, for example "wellA + 0.5 * wellB". Variable names
// refer to series names; the result is sampled on the union of the
// referenced series' time vectors, with each input held left. Extra
// functions, if any, supplement the default ones.
func (c *Collection) Evaluate(name, expr string, funcs map[string]govaluate.ExpressionFunction) (Series, error) {
	allFuncs := defaultExpressionFuncs()
	for fname, f := range funcs {
		allFuncs[fname] = f
	}
	expression, err := govaluate.NewEvaluableExpressionWithFunctions(expr, allFuncs)
	if err != nil {
		return Series{}, fmt.Errorf("timeseries: parsing expression for %q: %v", name, err)
	}
	vars := removeDuplicates(expression.Vars())
	sub := NewCollection()
	for _, v := range vars {
		s, ok := c.Get(v)
		if !ok {
			return Series{}, fmt.Errorf("timeseries: expression for %q refers to unknown series %q", name, v)
		}
		if err := sub.Add(s); err != nil {
			return Series{}, err
		}
	}
	times := sub.Times()
	if len(times) == 0 {
		return Series{}, fmt.Errorf("timeseries: expression for %q refers to no series", name)
	}
	values := make([]float64, len(times))
	params := make(map[string]interface{}, len(vars))
	for i, t := range times {
		for _, v := range vars {
			s, _ := sub.Get(v)
			params[v] = s.At(t)
		}
		result, err := expression.Evaluate(params)
		if err != nil {
			return Series{}, fmt.Errorf("timeseries: evaluating %q at %v: %v", name, t, err)
		}
		v, ok := result.(float64)
		if !ok {
			return Series{}, fmt.Errorf("timeseries: expression for %q is not numeric; got %T", name, result)
		}
		values[i] = v
	}
	return NewSeries(name, times, values)
}

func removeDuplicates(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
