// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package boxqp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// reducedHessian gathers the free rows and columns of 𝐇 into the nf×nf
// block 𝐇ff with the regularization added to its diagonal.
func reducedHessian(h mat.Symmetric, free []int, reg float64) *mat.SymDense {

	nf := len(free)
	hff := mat.NewSymDense(nf, nil)
	for i, fi := range free {
		for j := i; j < nf; j++ {
			hff.SetSym(i, j, h.At(fi, free[j]))
		}
	}
	if reg != zero {
		for i := 0; i < nf; i++ {
			hff.SetSym(i, i, hff.At(i, i)+reg)
		}
	}
	return hff
}

// newtonDirection computes the search direction as Newton step along the
// free space, holding the clamped coordinates at their bound values:
//
//	𝚍𝚡f = 𝐇ff⁻¹(-qf - 𝐇fc·xc) - xf
//
// The direction is scattered into ctx.dx with zeros on the clamped set and
// the inverse of the factorized block is kept for the returned solution.
// A block that is not positive definite after regularization aborts the
// solve with ErrNotPosDef.
func newtonDirection(loc *qpLoc, spec *qpSpec, ctx *qpCtx) error {

	free, clamped := ctx.free, ctx.clamped
	nf, nc := len(free), len(clamped)

	x, q, dx := ctx.x, loc.q, ctx.dx
	if nf > len(x) || nf > len(q) || nf+nc > len(dx) {
		panic("bound check error")
	}

	qf := mat.NewVecDense(nf, nil)
	xf := mat.NewVecDense(nf, nil)
	for i, fi := range free {
		qf.SetVec(i, q[fi])
		xf.SetVec(i, x[fi])
	}

	rhs := mat.NewVecDense(nf, nil)
	rhs.ScaleVec(-one, qf)
	if nc != 0 {
		hfc := mat.NewDense(nf, nc, nil)
		xc := mat.NewVecDense(nc, nil)
		for j, cj := range clamped {
			xc.SetVec(j, x[cj])
			for i, fi := range free {
				hfc.Set(i, j, loc.h.At(fi, cj))
			}
		}
		var fc mat.VecDense
		fc.MulVec(hfc, xc)
		rhs.SubVec(rhs, &fc)
	}

	var chol mat.Cholesky
	if !chol.Factorize(reducedHessian(loc.h, free, spec.reg)) {
		return fmt.Errorf("%w: %d free variables at iterate %d", ErrNotPosDef, nf, ctx.iter)
	}

	var dxf mat.VecDense
	if err := chol.SolveVecTo(&dxf, rhs); err != nil {
		return fmt.Errorf("%w: %v", ErrNotPosDef, err)
	}
	dxf.SubVec(&dxf, xf)

	inv := mat.NewSymDense(nf, nil)
	if err := chol.InverseTo(inv); err != nil {
		return fmt.Errorf("%w: %v", ErrNotPosDef, err)
	}
	ctx.hffInv = inv

	for i := range dx {
		dx[i] = zero
	}
	for i, fi := range free {
		dx[fi] = dxf.AtVec(i)
	}
	return nil
}
