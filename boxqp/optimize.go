// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package boxqp

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only the exit summary
	LogLast LogLevel = 0
	// LogEval print also f, |g| and the partition sizes of every iteration
	LogEval LogLevel = 1
	// LogTrace print details of every iteration including rejected line searches
	LogTrace LogLevel = 99
)

// Logger handles logging output for the solver.
// Note the writer must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

var (
	// ErrDimension an argument size does not match the problem dimension.
	ErrDimension = errors.New("wrong dimension")
	// ErrNotPosDef a free-free Hessian block is not positive definite
	// even after regularization, the solve is aborted.
	ErrNotPosDef = errors.New("free hessian block not positive definite")
)

// Termination specifies the stopping criteria for the Newton iteration.
type Termination struct {
	// The iteration stop when the number of iteration exceeds limit.
	MaxIterations int
	// The iteration will stop when the gradient or the Newton step satisfied:
	//   ‖ q + 𝐇xₖ ‖∞ ≤ 𝚐𝚝𝚘𝚕  or  ‖ 𝚍𝚡ₖ ‖∞ < 𝚐𝚝𝚘𝚕
	GradTolerance float64
}

// Problem specifies a box-constrained quadratic program of fixed dimension
//
//	minimize ½ xᵀ𝐇x + qᵀx subject to 𝒍 ≤ x ≤ 𝒖
//
// where 𝐇 is symmetric and its free-free blocks are expected to be positive
// definite after regularization.
type Problem struct {
	N    int         // The problem dimension
	Stop Termination // Stop condition
	// The sufficient-decrease threshold θ ∈ (0,1):
	// a projected trial point xₜ is accepted by the line search when
	//   f(x) - f(xₜ) > θ × gᵀ(x - xₜ)
	AcceptStep float64
	// The Tikhonov regularization added to the diagonal of every
	// free-free Hessian block before factorization.
	Reg float64
}

// New creates a new box-QP solver for given problem.
func (p *Problem) New(logger *Logger) (optimizer *Optimizer, err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}

	n, stop := p.N, p.Stop
	switch {
	case n <= 0:
		err = errors.New("problem dimension must greater than 0")
	case stop.MaxIterations <= 0:
		err = errors.New("max iteration must greater than 1")
	case stop.GradTolerance <= zero:
		err = errors.New("gradient tolerance must greater than 0")
	case p.AcceptStep <= zero || p.AcceptStep >= one:
		err = errors.New("step acceptance threshold must lie in (0,1)")
	case p.Reg < zero:
		err = errors.New("regularization must not less than 0")
	}
	if err != nil {
		return
	}

	alphas := make([]float64, numAlphas)
	for i := range alphas {
		alphas[i] = one / math.Pow(two, float64(i))
	}

	optimizer = &Optimizer{
		qpSpec{
			n:      n,
			accept: p.AcceptStep,
			reg:    p.Reg,
			alphas: alphas,
			stop:   stop,
			logger: *logger,
		},
	}
	return
}

// Optimizer implemented using the active-set projected-Newton algorithm.
type Optimizer struct {
	qpSpec
}

// Workspace contains the scratch state of the solve, reused call to call.
// Given problem dimension n the work space is approximately float64[5n]
// plus the reduced blocks sized to the free set each iteration.
type Workspace struct {
	n int
	qpCtx
}

// Solution contains the final result of one solve.
type Solution struct {
	OK bool // Whether the iteration converged.
	// Final point, componentwise within [𝒍,𝒖].
	X []float64
	// Ordered index sets of the final active-set partition.
	Free, Clamped []int
	// Inverse of the regularized free-free Hessian block, reusable by the
	// caller for curvature-aware follow-up computations without another
	// factorization. Nil when the free set was already empty at an
	// immediate termination.
	HffInv  *mat.SymDense
	Summary // Solve summary.
}

// Summary contains a summary of the solve.
type Summary struct {
	Status  Status // Final status after the iteration.
	NumIter int    // Number of Newton iterations performed.
}

// Init allocate the workspace for the box-QP solver.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one optimizer.
func (o *Optimizer) Init() *Workspace {
	w := new(Workspace)
	w.n = o.n
	w.qpCtx.init(w.n)
	return w
}

// Solve runs the projected-Newton iteration on the quadratic program
//
//	minimize ½ xᵀ𝐇x + qᵀx subject to 𝒍 ≤ x ≤ 𝒖
//
// starting from the warm start xinit, projected onto the box first.
//
// The returned solution owns its storage: X, Free, Clamped and HffInv never
// alias the workspace and stay valid across later calls.
//
// Solve fails with ErrDimension when an argument does not match the problem
// dimension and with ErrNotPosDef when a regularized free-free block cannot
// be factorized. An exhausted iteration budget is not an error: the best
// iterate so far is returned with status OverIterLimit. Note an iteration
// whose line search accepts no step length leaves the iterate unchanged but
// still consumes budget, so such iterations may repeat until the budget
// runs out.
func (o *Optimizer) Solve(h mat.Symmetric, q, lb, ub, xinit []float64, w *Workspace) (*Solution, error) {

	if w.n != o.n {
		panic("workspace dimension not match spec")
	}

	n := o.n
	switch {
	case h.SymmetricDim() != n:
		return nil, fmt.Errorf("%w: H should be (%d,%d)", ErrDimension, n, n)
	case len(q) != n:
		return nil, fmt.Errorf("%w: q should be (%d)", ErrDimension, n)
	case len(lb) != n:
		return nil, fmt.Errorf("%w: lb should be (%d)", ErrDimension, n)
	case len(ub) != n:
		return nil, fmt.Errorf("%w: ub should be (%d)", ErrDimension, n)
	case len(xinit) != n:
		return nil, fmt.Errorf("%w: xinit should be (%d)", ErrDimension, n)
	}

	loc := qpLoc{h: h, q: q, lb: lb, ub: ub, x0: xinit}
	driver := qpDriver{
		optimizer: o,
		workspace: w,
		location:  &loc,
	}

	status, err := driver.mainLoop()
	if err != nil {
		return nil, err
	}
	return &Solution{
		OK:      status == ConvGradNorm || status == ConvStepNorm,
		X:       slices.Clone(w.x),
		Free:    slices.Clone(w.free),
		Clamped: slices.Clone(w.clamped),
		HffInv:  w.hffInv,
		Summary: Summary{Status: status, NumIter: w.iter},
	}, nil
}
