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
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/energymodel/entrain"
)

// Cached wraps a FluidService with a deduplicating in-memory cache of
// flash results. The solvers re-flash the same (pressure, temperature)
// points many times while iterating, and an equation-of-state backend
// can be expensive; the reference Gas backend rarely needs this.
type Cached struct {
	fluid      entrain.FluidService
	cache      *requestcache.Cache
	maxEntries int

	dryOnce sync.Once
	dry     *Cached // caching wrapper for the liquid-free composition
}

type flashRequest struct {
	op   byte // 't': FlashPT, 'h': FlashPH, 'l': RemoveLiquid
	p, a float64
	from entrain.Properties
}

type liquidResult struct {
	fluid entrain.FluidService
	props entrain.Properties
	frac  float64
}

// NewCached builds a caching wrapper keeping up to maxEntries results.
func NewCached(fluid entrain.FluidService, maxEntries int) *Cached {
	c := &Cached{fluid: fluid, maxEntries: maxEntries}
	c.cache = requestcache.NewCache(c.process, 1,
		requestcache.Deduplicate(), requestcache.Memory(maxEntries))
	return c
}

func (c *Cached) process(ctx context.Context, payload interface{}) (interface{}, error) {
	req := payload.(flashRequest)
	switch req.op {
	case 't':
		return c.fluid.FlashPT(req.p, req.a)
	case 'h':
		return c.fluid.FlashPH(req.p, req.a, req.from)
	case 'l':
		fl, props, frac, err := c.fluid.RemoveLiquid(req.from)
		return liquidResult{fluid: fl, props: props, frac: frac}, err
	}
	return nil, fmt.Errorf("fluid: unknown flash operation %q", req.op)
}

func key(op byte, vals ...float64) string {
	k := string(op)
	for _, v := range vals {
		k += fmt.Sprintf("_%x", math.Float64bits(v))
	}
	return k
}

// FlashPT implements entrain.FluidService.
func (c *Cached) FlashPT(pressure, temperature float64) (entrain.Properties, error) {
	req := c.cache.NewRequest(context.Background(),
		flashRequest{op: 't', p: pressure, a: temperature},
		key('t', pressure, temperature))
	iface, err := req.Result()
	if err != nil {
		return entrain.Properties{}, err
	}
	return iface.(entrain.Properties), nil
}

// FlashPH implements entrain.FluidService.
func (c *Cached) FlashPH(pressure, deltaEnthalpy float64, from entrain.Properties) (entrain.Properties, error) {
	req := c.cache.NewRequest(context.Background(),
		flashRequest{op: 'h', p: pressure, a: deltaEnthalpy, from: from},
		key('h', pressure, deltaEnthalpy, from.Temperature, from.Enthalpy))
	iface, err := req.Result()
	if err != nil {
		return entrain.Properties{}, err
	}
	return iface.(entrain.Properties), nil
}

// RemoveLiquid implements entrain.FluidService. The dry composition
// keeps flowing through a cache of its own.
func (c *Cached) RemoveLiquid(state entrain.Properties) (entrain.FluidService, entrain.Properties, float64, error) {
	req := c.cache.NewRequest(context.Background(),
		flashRequest{op: 'l', from: state},
		key('l', state.Pressure, state.Temperature))
	iface, err := req.Result()
	if err != nil {
		return nil, entrain.Properties{}, 0, err
	}
	res := iface.(liquidResult)
	return c.dryService(res.fluid), res.props, res.frac, nil
}

// dryService wraps the liquid-free composition in a caching service,
// reusing this cache when removal left the fluid unchanged. The fluid
// has a fixed composition, so all removals share one dry wrapper.
func (c *Cached) dryService(dry entrain.FluidService) entrain.FluidService {
	if dry == c.fluid {
		return c
	}
	c.dryOnce.Do(func() { c.dry = NewCached(dry, c.maxEntries) })
	return c.dry
}
