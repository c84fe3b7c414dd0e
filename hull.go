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
	"gonum.org/v1/gonum/floats"
)

// hullPoint is one sample of a chart surface: x is rate, y is speed and
// z is the interpolated quantity (head or efficiency).
type hullPoint struct {
	x, y, z float64
}

// hullFacet is one triangular facet of a convex hull together with its
// supporting plane nx·x + ny·y + nz·z = off; the normal points out of
// the hull.
type hullFacet struct {
	a, b, c         int // vertex indices
	nx, ny, nz, off float64
}

// hullSurface is a piecewise-linear surface z(x, y) bounded by the
// convex hull of a 3-D point cloud. The upward-facing facets of the
// hull are split into two half-hulls at the median y (speed) so that
// evaluation never interpolates across physically distinct speed
// regimes. Evaluation is total: points outside the hull's footprint use
// the plane of the nearest facet, so iterative solvers probing beyond
// measured data always receive a finite, continuous value.
type hullSurface struct {
	pts        []hullPoint // normalized coordinates
	low, high  []hullFacet // upward facets at or below / above yMid
	yMid       float64
	x0, xs     float64 // x_norm = (x - x0) / xs
	y0, ys     float64
	z0, zs     float64
	plane      [3]float64 // fallback plane z = p0 + p1·x + p2·y
	planar     bool
}

const hullEps = 1e-9

// newHullSurface builds the extrapolation surface for a point cloud.
// Degenerate clouds (fewer than four points or all points coplanar)
// fall back to a least-squares plane; the surface is always usable.
func newHullSurface(points []hullPoint) *hullSurface {
	s := &hullSurface{}
	s.normalize(points)

	facets := convexHull3(s.pts)
	if facets == nil {
		s.fitPlane()
		return s
	}
	ys := make([]float64, len(s.pts))
	for i, p := range s.pts {
		ys[i] = p.y
	}
	s.yMid = (floats.Min(ys) + floats.Max(ys)) / 2
	for _, f := range facets {
		if f.nz <= 0.01 { // keep only upward-facing facets
			continue
		}
		cy := (s.pts[f.a].y + s.pts[f.b].y + s.pts[f.c].y) / 3
		if cy <= s.yMid {
			s.low = append(s.low, f)
		} else {
			s.high = append(s.high, f)
		}
	}
	if len(s.low) == 0 && len(s.high) == 0 {
		s.fitPlane()
	}
	return s
}

// normalize maps each coordinate axis to [0, 1] so that the geometric
// tolerances below are scale-free.
func (s *hullSurface) normalize(points []hullPoint) {
	xMin, xMax := math.Inf(1), math.Inf(-1)
	yMin, yMax := math.Inf(1), math.Inf(-1)
	zMin, zMax := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		xMin, xMax = math.Min(xMin, p.x), math.Max(xMax, p.x)
		yMin, yMax = math.Min(yMin, p.y), math.Max(yMax, p.y)
		zMin, zMax = math.Min(zMin, p.z), math.Max(zMax, p.z)
	}
	span := func(lo, hi float64) float64 {
		if hi-lo <= 0 {
			return 1
		}
		return hi - lo
	}
	s.x0, s.xs = xMin, span(xMin, xMax)
	s.y0, s.ys = yMin, span(yMin, yMax)
	s.z0, s.zs = zMin, span(zMin, zMax)
	s.pts = make([]hullPoint, len(points))
	for i, p := range points {
		s.pts[i] = hullPoint{
			x: (p.x - s.x0) / s.xs,
			y: (p.y - s.y0) / s.ys,
			z: (p.z - s.z0) / s.zs,
		}
	}
}

// At evaluates the surface at rate x and speed y (chart units).
func (s *hullSurface) At(x, y float64) float64 {
	xn := (x - s.x0) / s.xs
	yn := (y - s.y0) / s.ys
	var zn float64
	if s.planar {
		zn = s.plane[0] + s.plane[1]*xn + s.plane[2]*yn
	} else {
		half := s.low
		if yn > s.yMid && len(s.high) > 0 || len(s.low) == 0 {
			half = s.high
		}
		f := s.facetFor(half, xn, yn)
		zn = (f.off - f.nx*xn - f.ny*yn) / f.nz
	}
	return s.z0 + zn*s.zs
}

// facetFor returns the facet of half whose footprint contains (x, y),
// or failing that the facet with the nearest centroid.
func (s *hullSurface) facetFor(half []hullFacet, x, y float64) hullFacet {
	best := half[0]
	bestDist := math.Inf(1)
	for _, f := range half {
		a, b, c := s.pts[f.a], s.pts[f.b], s.pts[f.c]
		if inTriangle(x, y, a, b, c) {
			return f
		}
		cx := (a.x + b.x + c.x) / 3
		cy := (a.y + b.y + c.y) / 3
		d := (x-cx)*(x-cx) + (y-cy)*(y-cy)
		if d < bestDist {
			bestDist = d
			best = f
		}
	}
	return best
}

// inTriangle tests whether (x, y) lies inside the xy-projection of the
// triangle abc, with a small tolerance so points on shared edges are
// claimed by at least one facet.
func inTriangle(x, y float64, a, b, c hullPoint) bool {
	sign := func(px, py, qx, qy float64) float64 {
		return (qx-px)*(y-py) - (qy-py)*(x-px)
	}
	d1 := sign(a.x, a.y, b.x, b.y)
	d2 := sign(b.x, b.y, c.x, c.y)
	d3 := sign(c.x, c.y, a.x, a.y)
	const tol = 1e-9
	hasNeg := d1 < -tol || d2 < -tol || d3 < -tol
	hasPos := d1 > tol || d2 > tol || d3 > tol
	return !(hasNeg && hasPos)
}

// fitPlane computes a least-squares plane through the normalized point
// cloud, used when the cloud has no 3-D extent (for example a chart
// with two proportional curves).
func (s *hullSurface) fitPlane() {
	s.planar = true
	var n, sx, sy, sxx, syy, sxy, sz, sxz, syz float64
	for _, p := range s.pts {
		n++
		sx += p.x
		sy += p.y
		sxx += p.x * p.x
		syy += p.y * p.y
		sxy += p.x * p.y
		sz += p.z
		sxz += p.x * p.z
		syz += p.y * p.z
	}
	// Normal equations for z = c0 + c1·x + c2·y, solved by Cramer's
	// rule on the 3×3 system.
	det3 := func(a [3][3]float64) float64 {
		return a[0][0]*(a[1][1]*a[2][2]-a[1][2]*a[2][1]) -
			a[0][1]*(a[1][0]*a[2][2]-a[1][2]*a[2][0]) +
			a[0][2]*(a[1][0]*a[2][1]-a[1][1]*a[2][0])
	}
	m := [3][3]float64{{n, sx, sy}, {sx, sxx, sxy}, {sy, sxy, syy}}
	rhs := [3]float64{sz, sxz, syz}
	d := det3(m)
	if math.Abs(d) < hullEps {
		// Not even a plane is determined; use the mean value.
		if n > 0 {
			s.plane = [3]float64{sz / n, 0, 0}
		}
		return
	}
	for i := 0; i < 3; i++ {
		mi := m
		for r := 0; r < 3; r++ {
			mi[r][i] = rhs[r]
		}
		s.plane[i] = det3(mi) / d
	}
	// TODO: this check tests the rate coefficient (index 1); confirm it
	// should not test the speed coefficient (index 2) instead.
	if s.plane[1] > 0 {
		logrus.WithFields(logrus.Fields{
			"rateCoefficient": s.plane[1],
		}).Warn("entrain: chart surface increases with rate")
	}
}

// convexHull3 computes the convex hull of a normalized 3-D point cloud
// using an incremental algorithm, returning its triangular facets with
// outward normals, or nil if the cloud is degenerate (collinear or
// coplanar).
func convexHull3(pts []hullPoint) []hullFacet {
	if len(pts) < 4 {
		return nil
	}
	i0, i1, i2, i3, ok := seedTetrahedron(pts)
	if !ok {
		return nil
	}

	var faces []hullFacet
	addFace := func(a, b, c, inside int) {
		f := makeFacet(pts, a, b, c)
		// Flip so the normal points away from the interior point.
		if f.nx*pts[inside].x+f.ny*pts[inside].y+f.nz*pts[inside].z > f.off {
			f = makeFacet(pts, a, c, b)
		}
		faces = append(faces, f)
	}
	addFace(i0, i1, i2, i3)
	addFace(i0, i1, i3, i2)
	addFace(i0, i2, i3, i1)
	addFace(i1, i2, i3, i0)

	seed := map[int]bool{i0: true, i1: true, i2: true, i3: true}
	for ip, p := range pts {
		if seed[ip] {
			continue
		}
		var visible, hidden []hullFacet
		for _, f := range faces {
			if f.nx*p.x+f.ny*p.y+f.nz*p.z-f.off > hullEps {
				visible = append(visible, f)
			} else {
				hidden = append(hidden, f)
			}
		}
		if len(visible) == 0 {
			continue // p is inside the current hull
		}
		// Horizon edges appear in exactly one visible facet (counting
		// edges without direction).
		type edge struct{ u, v int }
		norm := func(u, v int) edge {
			if u < v {
				return edge{u, v}
			}
			return edge{v, u}
		}
		count := map[edge]int{}
		for _, f := range visible {
			count[norm(f.a, f.b)]++
			count[norm(f.b, f.c)]++
			count[norm(f.c, f.a)]++
		}
		faces = hidden
		interior := faceCentroidIndexFree(pts, hidden, visible)
		for _, f := range visible {
			for _, e := range [][2]int{{f.a, f.b}, {f.b, f.c}, {f.c, f.a}} {
				if count[norm(e[0], e[1])] == 1 {
					nf := makeFacet(pts, e[0], e[1], ip)
					if nf.nx*interior.x+nf.ny*interior.y+nf.nz*interior.z > nf.off {
						nf = makeFacet(pts, e[1], e[0], ip)
					}
					faces = append(faces, nf)
				}
			}
		}
	}
	return faces
}

// faceCentroidIndexFree returns a point interior to the hull: the
// centroid of all facet vertices currently on it.
func faceCentroidIndexFree(pts []hullPoint, groups ...[]hullFacet) hullPoint {
	var c hullPoint
	var n float64
	for _, g := range groups {
		for _, f := range g {
			for _, i := range []int{f.a, f.b, f.c} {
				c.x += pts[i].x
				c.y += pts[i].y
				c.z += pts[i].z
				n++
			}
		}
	}
	if n > 0 {
		c.x /= n
		c.y /= n
		c.z /= n
	}
	return c
}

func makeFacet(pts []hullPoint, a, b, c int) hullFacet {
	pa, pbn, pc := pts[a], pts[b], pts[c]
	ux, uy, uz := pbn.x-pa.x, pbn.y-pa.y, pbn.z-pa.z
	vx, vy, vz := pc.x-pa.x, pc.y-pa.y, pc.z-pa.z
	nx := uy*vz - uz*vy
	ny := uz*vx - ux*vz
	nz := ux*vy - uy*vx
	norm := math.Sqrt(nx*nx + ny*ny + nz*nz)
	if norm > 0 {
		nx, ny, nz = nx/norm, ny/norm, nz/norm
	}
	return hullFacet{
		a: a, b: b, c: c,
		nx: nx, ny: ny, nz: nz,
		off: nx*pa.x + ny*pa.y + nz*pa.z,
	}
}

// seedTetrahedron picks four points with nonzero volume to start the
// incremental hull.
func seedTetrahedron(pts []hullPoint) (i0, i1, i2, i3 int, ok bool) {
	i0 = 0
	// Farthest point from i0.
	best := 0.
	for i, p := range pts {
		d := dist2(p, pts[i0])
		if d > best {
			best = d
			i1 = i
		}
	}
	if best < hullEps {
		return
	}
	// Farthest point from the line i0–i1.
	best = 0.
	for i, p := range pts {
		d := lineDist2(p, pts[i0], pts[i1])
		if d > best {
			best = d
			i2 = i
		}
	}
	if best < hullEps {
		return
	}
	// Farthest point from the plane i0–i1–i2.
	f := makeFacet(pts, i0, i1, i2)
	best = 0.
	for i, p := range pts {
		d := math.Abs(f.nx*p.x + f.ny*p.y + f.nz*p.z - f.off)
		if d > best {
			best = d
			i3 = i
		}
	}
	if best < hullEps {
		return
	}
	return i0, i1, i2, i3, true
}

func dist2(a, b hullPoint) float64 {
	return (a.x-b.x)*(a.x-b.x) + (a.y-b.y)*(a.y-b.y) + (a.z-b.z)*(a.z-b.z)
}

func lineDist2(p, a, b hullPoint) float64 {
	ux, uy, uz := b.x-a.x, b.y-a.y, b.z-a.z
	wx, wy, wz := p.x-a.x, p.y-a.y, p.z-a.z
	cx := uy*wz - uz*wy
	cy := uz*wx - ux*wz
	cz := ux*wy - uy*wx
	l2 := ux*ux + uy*uy + uz*uz
	if l2 == 0 {
		return 0
	}
	return (cx*cx + cy*cy + cz*cz) / l2
}
