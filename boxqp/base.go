// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package boxqp

import "gonum.org/v1/gonum/mat"

const (
	zero = 0.0
	half = 0.5
	one  = 1.0
	two  = 2.0
)

// numAlphas is the length of the geometric backtracking schedule 1, ½, ¼, ··· ½⁹.
const numAlphas = 10

// Status reports how the Newton iteration terminated.
type Status int

const (
	// qpLoop keeps the main loop running.
	qpLoop Status = iota
	// ConvGradNorm ‖g‖∞ dropped below the gradient tolerance, or no variable is free to move.
	ConvGradNorm
	// ConvStepNorm ‖𝚍𝚡‖∞ dropped below the gradient tolerance, no further progress is possible.
	ConvStepNorm
	// OverIterLimit more than max iterations in the Newton loop.
	OverIterLimit
)

type qpSpec struct {
	// the number of variables
	n int
	// the sufficient-decrease threshold θ ∈ (0,1) for step acceptance
	accept float64
	// the Tikhonov magnitude added to the free-free diagonal before factorization
	reg float64
	// the backtracking schedule, largest step first
	alphas []float64
	// stop condition
	stop   Termination
	logger Logger
}

// qpLoc holds the problem data of one solve call.
type qpLoc struct {
	h  mat.Symmetric // n×n
	q  []float64     // n
	lb []float64     // n
	ub []float64     // n
	// the warm start, possibly infeasible
	x0 []float64 // n
}

// qpCtx is the solver scratch, fully overwritten every iteration.
type qpCtx struct {
	// iteration counter.
	iter int
	// the current iterate, always componentwise within [𝒍,𝒖].
	x []float64 // n
	// the gradient q + 𝐇x.
	g []float64 // n
	// the trial point of the line search.
	xnew []float64 // n
	// the Newton direction, zero on clamped coordinates.
	dx []float64 // n
	// product buffer for objective evaluation.
	hx []float64 // n
	// the active-set partition of the current iterate.
	free    []int // ≤ n
	clamped []int // ≤ n
	// infinity norms of the current gradient and direction.
	gNorm, dxNorm float64
	// the step length accepted by the last line search, zero when none passed.
	alpha float64
	// the inverse of the last factorized free-free block.
	hffInv *mat.SymDense
}

func (c *qpCtx) init(n int) {
	c.x = make([]float64, n)
	c.g = make([]float64, n)
	c.xnew = make([]float64, n)
	c.dx = make([]float64, n)
	c.hx = make([]float64, n)
	c.free = make([]int, 0, n)
	c.clamped = make([]int, 0, n)
}

func (c *qpCtx) clear() {
	c.iter = 0
	c.gNorm, c.dxNorm, c.alpha = zero, zero, zero
	c.free = c.free[:0]
	c.clamped = c.clamped[:0]
	c.hffInv = nil
}
