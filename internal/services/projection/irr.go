package projection

import (
	"errors"
	"fmt"
	"math"
)

// ErrIRRNotConverged is returned when no rate zeroes the NPV of a series
// within the solver bounds.
var ErrIRRNotConverged = errors.New("irr did not converge")

const (
	irrTolerance      = 1e-6
	newtonIterations  = 100
	bisectIterations  = 200
	newtonGuess       = 0.10
	bracketLow        = -0.9999
	bracketStartHigh  = 1.0
	bracketLimitHigh  = 10.0
	derivativeEpsilon = 1e-12
)

// NPV discounts flows at rate; flows[0] is undiscounted.
func NPV(rate float64, flows []float64) float64 {
	var npv float64
	for t, cf := range flows {
		npv += cf / math.Pow(1+rate, float64(t))
	}
	return npv
}

func npvDerivative(rate float64, flows []float64) float64 {
	var d float64
	for t, cf := range flows {
		if t == 0 {
			continue
		}
		d -= float64(t) * cf / math.Pow(1+rate, float64(t+1))
	}
	return d
}

// IRR returns the periodic rate (as a fraction) at which the NPV of flows is
// zero. It tries Newton-Raphson first and falls back to bisection over
// (-99.99%, 1000%].
func IRR(flows []float64) (float64, error) {
	if len(flows) < 2 {
		return 0, fmt.Errorf("%w: need at least two cash flows", ErrIRRNotConverged)
	}
	if !hasSignChange(flows) {
		return 0, fmt.Errorf("%w: cash flows never change sign", ErrIRRNotConverged)
	}

	if rate, ok := newton(flows); ok {
		return rate, nil
	}
	return bisect(flows)
}

func hasSignChange(flows []float64) bool {
	var pos, neg bool
	for _, cf := range flows {
		if cf > 0 {
			pos = true
		} else if cf < 0 {
			neg = true
		}
	}
	return pos && neg
}

func newton(flows []float64) (float64, bool) {
	rate := newtonGuess
	for i := 0; i < newtonIterations; i++ {
		npv := NPV(rate, flows)
		d := npvDerivative(rate, flows)
		if math.Abs(d) < derivativeEpsilon {
			return 0, false
		}
		next := rate - npv/d
		if math.IsNaN(next) || math.IsInf(next, 0) || next <= -1 {
			return 0, false
		}
		if math.Abs(next-rate) < irrTolerance {
			return next, true
		}
		rate = next
	}
	return 0, false
}

func bisect(flows []float64) (float64, error) {
	lo, hi := bracketLow, bracketStartHigh
	fLo := NPV(lo, flows)
	fHi := NPV(hi, flows)
	for fLo*fHi > 0 && hi < bracketLimitHigh {
		hi = math.Min(hi*2, bracketLimitHigh)
		fHi = NPV(hi, flows)
	}
	if fLo*fHi > 0 {
		return 0, fmt.Errorf("%w: no root between %.2f%% and %.0f%%", ErrIRRNotConverged, lo*100, hi*100)
	}

	for i := 0; i < bisectIterations; i++ {
		mid := (lo + hi) / 2
		fMid := NPV(mid, flows)
		if math.Abs(fMid) < irrTolerance || (hi-lo)/2 < irrTolerance {
			return mid, nil
		}
		if fLo*fMid < 0 {
			hi = mid
		} else {
			lo, fLo = mid, fMid
		}
	}
	return 0, fmt.Errorf("%w: bisection exhausted %d iterations", ErrIRRNotConverged, bisectIterations)
}
