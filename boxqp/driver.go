// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package boxqp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// qpDriver is the main driver for the Newton iterations of one solve,
// responsible for managing the flow of the optimization.
type qpDriver struct {
	optimizer *Optimizer
	workspace *Workspace
	location  *qpLoc
}

// mainLoop is the main execution loop of the iteration process, repeating
// gradient evaluation, active-set partitioning, the reduced Newton step and
// the backtracking line search until a tolerance is met or the iteration
// budget runs out.
func (d *qpDriver) mainLoop() (status Status, err error) {

	loc := d.location
	spec := &d.optimizer.qpSpec
	ctx := &d.workspace.qpCtx

	ctx.clear()
	d.printInit()

	// Enforce feasible warm-starting of the algorithm
	projectInit(loc, spec, ctx)

	for status = qpLoop; status == qpLoop; {

		d.gradient()
		partition(loc, spec, ctx)

		if status, err = d.checkConvergence(); err != nil || status != qpLoop {
			break
		}

		if err = newtonDirection(loc, spec, ctx); err != nil {
			break
		}

		// There is not improving anymore
		if ctx.dxNorm = floats.Norm(ctx.dx, math.Inf(1)); ctx.dxNorm < spec.stop.GradTolerance {
			status = ConvStepNorm
			break
		}

		lineSearch(loc, spec, ctx)
		d.printIter()

		if ctx.iter++; ctx.iter >= spec.stop.MaxIterations {
			status = OverIterLimit
		}
	}

	d.printExit(status, err)
	return
}

// gradient computes g = q + 𝐇x at the current iterate.
func (d *qpDriver) gradient() {
	spec, ctx, loc := &d.optimizer.qpSpec, &d.workspace.qpCtx, d.location
	gv := mat.NewVecDense(spec.n, ctx.g)
	gv.MulVec(loc.h, mat.NewVecDense(spec.n, ctx.x))
	floats.Add(ctx.g, loc.q)
}

// checkConvergence terminates the loop once the gradient norm meets the
// tolerance or every variable is clamped. When that happens before any
// Newton step was taken, the free-free inverse is factorized here so the
// solution can still expose curvature information.
func (d *qpDriver) checkConvergence() (Status, error) {
	spec, ctx, loc := &d.optimizer.qpSpec, &d.workspace.qpCtx, d.location

	ctx.gNorm = floats.Norm(ctx.g, math.Inf(1))
	if ctx.gNorm > spec.stop.GradTolerance && len(ctx.free) > 0 {
		return qpLoop, nil
	}

	if ctx.iter == 0 && len(ctx.free) > 0 {
		var chol mat.Cholesky
		if !chol.Factorize(reducedHessian(loc.h, ctx.free, spec.reg)) {
			return qpLoop, fmt.Errorf("%w: %d free variables at iterate 0", ErrNotPosDef, len(ctx.free))
		}
		inv := mat.NewSymDense(len(ctx.free), nil)
		if e := chol.InverseTo(inv); e != nil {
			return qpLoop, fmt.Errorf("%w: %v", ErrNotPosDef, e)
		}
		ctx.hffInv = inv
	}
	return ConvGradNorm, nil
}

// printInit logs the initialization details of the box-QP solve,
// including problem dimension, budget and tolerances.
func (d *qpDriver) printInit() {

	spec := &d.optimizer.qpSpec

	log := spec.logger
	if log.enable(LogLast) {
		log.log("RUNNING THE BOX-QP CODE\n")
		log.log("           * * *\n")
		log.log("N = %d    MAXITER = %d\n", spec.n, spec.stop.MaxIterations)
		if log.enable(LogEval) {
			log.log("GTOL = %10.3e    THETA = %10.3e    REG = %10.3e\n",
				spec.stop.GradTolerance, spec.accept, spec.reg)
			log.log("\n   it    nf   nc     alpha        |g|          f\n")
		}
	}
}

// printIter logs the current iteration details, including the objective
// value, gradient norm and the partition sizes.
func (d *qpDriver) printIter() {

	loc := d.location
	spec := &d.optimizer.qpSpec
	ctx := &d.workspace.qpCtx

	log := spec.logger
	if log.enable(LogEval) {
		f := objective(loc, ctx, ctx.x)
		log.log("%5d %5d %4d %9.4f %10.3e %10.3e\n",
			ctx.iter, len(ctx.free), len(ctx.clamped), ctx.alpha, ctx.gNorm, f)
		if log.enable(LogTrace) && ctx.alpha == zero {
			log.log("No step length accepted; iterate left unchanged.\n")
		}
	}
}

// printExit logs the final statistics and exit condition of the solve.
func (d *qpDriver) printExit(status Status, err error) {

	spec := &d.optimizer.qpSpec
	ctx := &d.workspace.qpCtx

	log := spec.logger
	if !log.enable(LogLast) {
		return
	}

	var msg string
	switch {
	case err != nil:
		msg = "ABNORMAL_TERMINATION_IN_CHOLESKY"
	case status == ConvGradNorm:
		msg = "CONVERGENCE: NORM_OF_GRADIENT_<=_GTOL"
	case status == ConvStepNorm:
		msg = "CONVERGENCE: NORM_OF_NEWTON_STEP_<_GTOL"
	case status == OverIterLimit:
		msg = "STOP: TOTAL NO. of ITERATIONS REACHED LIMIT"
	default:
		msg = "UNKNOWN TASK"
	}

	log.log("\n           * * *\n")
	log.log("%5d iterations    nf = %d    nc = %d    |g| = %10.3e\n",
		ctx.iter, len(ctx.free), len(ctx.clamped), ctx.gNorm)
	log.log("\n%s\n", msg)
	if err != nil {
		log.log("\n %v\n", err)
	}
}
