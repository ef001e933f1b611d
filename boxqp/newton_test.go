// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package boxqp

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestReducedHessian(t *testing.T) {

	h := mat.NewSymDense(3, []float64{
		2, 0, 1,
		0, 2, 0,
		1, 0, 2,
	})

	hff := reducedHessian(h, []int{0, 2}, 0)
	want := [][2]float64{{2, 1}, {1, 2}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if hff.At(i, j) != want[i][j] {
				t.Fatalf("TestReducedHessian: Hff[%d,%d] = %v, want %v", i, j, hff.At(i, j), want[i][j])
			}
		}
	}

	// Regularization lands on the diagonal only
	hff = reducedHessian(h, []int{0, 2}, 0.5)
	switch {
	case hff.At(0, 0) != 2.5 || hff.At(1, 1) != 2.5:
		t.Fatalf("TestReducedHessian: regularized diagonal %v %v", hff.At(0, 0), hff.At(1, 1))
	case hff.At(0, 1) != 1:
		t.Fatalf("TestReducedHessian: regularized off-diagonal %v", hff.At(0, 1))
	}
}

func TestNewtonDirection(t *testing.T) {

	loc := &qpLoc{
		h: mat.NewSymDense(3, []float64{
			2, 0, 1,
			0, 2, 0,
			1, 0, 2,
		}),
		q:  []float64{1, 1, 1},
		lb: []float64{-10, -10, -10},
		ub: []float64{10, 10, 10},
	}
	spec := testSpec(3, 0.1, 0)
	ctx := testCtx(3)

	copy(ctx.x, []float64{0.5, 1, -0.5})
	ctx.free = append(ctx.free, 0, 2)
	ctx.clamped = append(ctx.clamped, 1)

	if err := newtonDirection(loc, spec, ctx); err != nil {
		t.Fatalf("TestNewtonDirection: %v", err)
	}

	// Hff = [[2,1],[1,2]], rhs = -qf - Hfc·xc = [-1,-1], so Hff⁻¹rhs = [-⅓,-⅓]
	want := []float64{-1.0/3 - 0.5, 0, -1.0/3 + 0.5}
	if !almostEqual(ctx.dx, want, 1e-14) {
		t.Fatalf("TestNewtonDirection: dx = %v, want %v", ctx.dx, want)
	}

	inv := [][2]float64{{2.0 / 3, -1.0 / 3}, {-1.0 / 3, 2.0 / 3}}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if !almostEqual(ctx.hffInv.At(i, j), inv[i][j], 1e-14) {
				t.Fatalf("TestNewtonDirection: HffInv[%d,%d] = %v, want %v", i, j, ctx.hffInv.At(i, j), inv[i][j])
			}
		}
	}
}

func TestNewtonClampedCoupling(t *testing.T) {

	loc := &qpLoc{
		h: mat.NewSymDense(2, []float64{
			2, 1,
			1, 2,
		}),
		q:  []float64{0, 0},
		lb: []float64{-10, -10},
		ub: []float64{10, 10},
	}
	spec := testSpec(2, 0.1, 0)
	ctx := testCtx(2)

	copy(ctx.x, []float64{0, 1})
	ctx.free = append(ctx.free, 0)
	ctx.clamped = append(ctx.clamped, 1)

	if err := newtonDirection(loc, spec, ctx); err != nil {
		t.Fatalf("TestNewtonClampedCoupling: %v", err)
	}

	// rhs = -H₀₁·x₁ = -1, dx₀ = -½ - x₀
	if want := []float64{-0.5, 0}; !almostEqual(ctx.dx, want, 1e-15) {
		t.Fatalf("TestNewtonClampedCoupling: dx = %v, want %v", ctx.dx, want)
	}
}

func TestNewtonNotPosDef(t *testing.T) {

	loc := &qpLoc{
		h: mat.NewSymDense(2, []float64{
			0, 1,
			1, 0,
		}),
		q:  []float64{1, 1},
		lb: []float64{-10, -10},
		ub: []float64{10, 10},
	}
	spec := testSpec(2, 0.1, 0)
	ctx := testCtx(2)

	ctx.free = append(ctx.free, 0, 1)

	err := newtonDirection(loc, spec, ctx)
	if !errors.Is(err, ErrNotPosDef) {
		t.Fatalf("TestNewtonNotPosDef: got %v", err)
	}
}

func TestNewtonRegularizedRescue(t *testing.T) {

	// Singular free block becomes factorizable once regularized
	loc := &qpLoc{
		h: mat.NewSymDense(2, []float64{
			1, 1,
			1, 1,
		}),
		q:  []float64{1, 1},
		lb: []float64{-10, -10},
		ub: []float64{10, 10},
	}
	ctx := testCtx(2)
	ctx.free = append(ctx.free, 0, 1)

	if err := newtonDirection(loc, testSpec(2, 0.1, 0), ctx); !errors.Is(err, ErrNotPosDef) {
		t.Fatalf("TestNewtonRegularizedRescue: unregularized got %v", err)
	}

	ctx = testCtx(2)
	ctx.free = append(ctx.free, 0, 1)
	if err := newtonDirection(loc, testSpec(2, 0.1, 1), ctx); err != nil {
		t.Fatalf("TestNewtonRegularizedRescue: regularized got %v", err)
	}

	// (H + I)⁻¹(-q) with H = ones(2) gives [-⅓,-⅓]
	if want := []float64{-1.0 / 3, -1.0 / 3}; !almostEqual(ctx.dx, want, 1e-14) {
		t.Fatalf("TestNewtonRegularizedRescue: dx = %v, want %v", ctx.dx, want)
	}
}
