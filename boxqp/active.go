// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package boxqp

import "math"

// projectInit enforces a feasible warm start.
//
// The initial projection P(xᵢ,𝒍ᵢ,𝒖ᵢ) limit the x to feasible region:
//
//	𝚙𝚛𝚘𝚓 xᵢ = 𝒖ᵢ    if xᵢ > 𝒖ᵢ
//	𝚙𝚛𝚘𝚓 xᵢ = 𝒍ᵢ    if xᵢ < 𝒍ᵢ
//	𝚙𝚛𝚘𝚓 xᵢ = xᵢ    otherwise
func projectInit(loc *qpLoc, spec *qpSpec, ctx *qpCtx) {

	n, x0, lb, ub, x := spec.n, loc.x0, loc.lb, loc.ub, ctx.x
	if n < 0 || n > len(x0) || n > len(lb) || n > len(ub) || n > len(x) {
		panic("bound check error")
	}

	for i := 0; i < n; i++ {
		x[i] = math.Max(math.Min(x0[i], ub[i]), lb[i])
	}
}

// partition splits the coordinates of the current iterate into the clamped
// and free index sets. A coordinate is clamped iff it sits exactly on a
// bound with the gradient pushing further outward:
//
//	xⱼ = 𝒍ⱼ and gⱼ > 0, or xⱼ = 𝒖ⱼ and gⱼ < 0
//
// All other coordinates stay free, including those on a bound whose
// gradient points back into the box.
func partition(loc *qpLoc, spec *qpSpec, ctx *qpCtx) {

	ctx.free = ctx.free[:0]
	ctx.clamped = ctx.clamped[:0]

	n, g, x, lb, ub := spec.n, ctx.g, ctx.x, loc.lb, loc.ub
	if n < 0 || n > len(g) || n > len(x) || n > len(lb) || n > len(ub) {
		panic("bound check error")
	}

	for j := 0; j < n; j++ {
		if (x[j] == lb[j] && g[j] > zero) || (x[j] == ub[j] && g[j] < zero) {
			ctx.clamped = append(ctx.clamped, j)
		} else {
			ctx.free = append(ctx.free, j)
		}
	}
}

// clipStep forms the trial point 𝚙𝚛𝚘𝚓(x + α·𝚍𝚡) of the line search.
func clipStep(xnew, x, dx []float64, alpha float64, lb, ub []float64) {

	n := len(x)
	if n > len(xnew) || n > len(dx) || n > len(lb) || n > len(ub) {
		panic("bound check error")
	}

	for i := 0; i < n; i++ {
		xnew[i] = math.Max(math.Min(x[i]+alpha*dx[i], ub[i]), lb[i])
	}
}
