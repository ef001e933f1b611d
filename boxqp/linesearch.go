// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package boxqp

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// objective evaluates ½ xᵀ𝐇x + qᵀx using the ctx.hx product buffer.
func objective(loc *qpLoc, ctx *qpCtx, x []float64) float64 {
	hv := mat.NewVecDense(len(x), ctx.hx[:len(x)])
	hv.MulVec(loc.h, mat.NewVecDense(len(x), x))
	return half*floats.Dot(x, ctx.hx[:len(x)]) + floats.Dot(loc.q, x)
}

// lineSearch backtracks over the fixed geometric schedule, largest step
// first, projecting each trial point onto the box and moving the iterate to
// the first trial satisfying the sufficient-decrease test
//
//	f(x) - f(xₜ) > θ × gᵀ(x - xₜ)
//
// When no step in the schedule passes the test the iterate stays unchanged
// and the iteration is still spent.
func lineSearch(loc *qpLoc, spec *qpSpec, ctx *qpCtx) (accepted bool) {

	x, xnew, g, dx := ctx.x, ctx.xnew, ctx.g, ctx.dx
	if len(x) > len(xnew) || len(x) > len(g) || len(x) > len(dx) {
		panic("bound check error")
	}

	ctx.alpha = zero
	fold := objective(loc, ctx, x)

	for _, alpha := range spec.alphas {
		clipStep(xnew, x, dx, alpha, loc.lb, loc.ub)
		fnew := objective(loc, ctx, xnew)
		measure := zero // gᵀ(x - xₜ)
		for i, x := range x {
			measure += g[i] * (x - xnew[i])
		}
		if fold-fnew > spec.accept*measure {
			copy(x, xnew)
			ctx.alpha = alpha
			return true
		}
	}
	return false
}
