package gridsearch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
)

// ErrNoViableParameters is returned when every combination in a sweep
// failed to evaluate, so no winner can be chosen.
var ErrNoViableParameters = errors.New("no viable parameters")

// Axis is one named parameter dimension with its discrete candidates.
// Axes and their values are iterated in the order supplied, which makes
// enumeration (and therefore truncation and tie-breaking) reproducible.
type Axis struct {
	Name   string
	Values []float64
}

// Combination is one full assignment of a value to every axis.
type Combination map[string]float64

// Float returns the value of the named axis.
func (c Combination) Float(name string) float64 {
	return c[name]
}

// Int returns the value of the named axis rounded to the nearest integer,
// for axes that enumerate integer candidates.
func (c Combination) Int(name string) int {
	return int(math.Round(c[name]))
}

// EvalFunc scores one combination. The payload carries whatever the stage
// produced (result sets, aggregates) so the winner's output can be reused
// without re-evaluating. An error marks the combination as failed; the
// sweep continues.
type EvalFunc[T any] func(ctx context.Context, c Combination) (score float64, payload T, err error)

// Options tunes a sweep.
type Options struct {
	// MaxCombinations caps the sweep to the first N combinations in
	// enumeration order. Zero means no cap.
	MaxCombinations int
	// Workers bounds the evaluation goroutines. Zero or negative means
	// one per available CPU.
	Workers int
}

// Winner is the best-scoring combination of a sweep.
type Winner[T any] struct {
	Index       int
	Combination Combination
	Score       float64
	Payload     T
	Evaluated   int
	Failed      int
}

type job struct {
	index int
	combo Combination
}

type outcome[T any] struct {
	index   int
	score   float64
	payload T
	err     error
}

// Run enumerates the Cartesian product of the axes, evaluates every
// retained combination across a worker pool, and returns the combination
// with the strictly highest score. Ties break toward the earliest
// enumeration index, regardless of completion order. Evaluation failures
// are excluded from winner selection; if everything failed the sweep
// returns ErrNoViableParameters. Cancellation is cooperative: in-flight
// evaluations finish, unscheduled ones are abandoned.
func Run[T any](ctx context.Context, axes []Axis, eval EvalFunc[T], opts Options) (*Winner[T], error) {
	if len(axes) == 0 {
		return nil, fmt.Errorf("grid search needs at least one axis")
	}
	for _, a := range axes {
		if len(a.Values) == 0 {
			return nil, fmt.Errorf("axis %q has no candidate values", a.Name)
		}
	}

	combos := Enumerate(axes)
	if opts.MaxCombinations > 0 && len(combos) > opts.MaxCombinations {
		combos = combos[:opts.MaxCombinations]
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(combos) {
		workers = len(combos)
	}

	jobs := make(chan job, len(combos))
	outcomes := make(chan outcome[T], len(combos))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				score, payload, err := eval(ctx, j.combo)
				outcomes <- outcome[T]{index: j.index, score: score, payload: payload, err: err}
			}
		}()
	}

	for i, c := range combos {
		jobs <- job{index: i, combo: c}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// Single reducer: lowest index wins among equal scores no matter in
	// which order workers finish.
	var best *Winner[T]
	evaluated, failed := 0, 0
	for o := range outcomes {
		evaluated++
		if o.err != nil {
			failed++
			continue
		}
		if best == nil || o.score > best.Score || (o.score == best.Score && o.index < best.Index) {
			best = &Winner[T]{
				Index:       o.index,
				Combination: combos[o.index],
				Score:       o.score,
				Payload:     o.payload,
			}
		}
	}

	if err := ctx.Err(); err != nil && evaluated < len(combos) {
		return nil, fmt.Errorf("grid search cancelled after %d of %d combinations: %w", evaluated, len(combos), err)
	}
	if best == nil {
		return nil, fmt.Errorf("%w: all %d combinations failed", ErrNoViableParameters, evaluated)
	}
	best.Evaluated = evaluated
	best.Failed = failed
	return best, nil
}

// Enumerate expands the full Cartesian product of the axes, first axis
// outermost, values in supplied order.
func Enumerate(axes []Axis) []Combination {
	total := 1
	for _, a := range axes {
		total *= len(a.Values)
	}

	combos := make([]Combination, 0, total)
	indices := make([]int, len(axes))
	for {
		c := make(Combination, len(axes))
		for i, a := range axes {
			c[a.Name] = a.Values[indices[i]]
		}
		combos = append(combos, c)

		// Odometer increment, last axis fastest.
		i := len(axes) - 1
		for i >= 0 {
			indices[i]++
			if indices[i] < len(axes[i].Values) {
				break
			}
			indices[i] = 0
			i--
		}
		if i < 0 {
			return combos
		}
	}
}

// Closeness is the shared objective shape for target-band stages:
// 1 at the target, falling off linearly with relative distance, clamped
// to [0,1].
func Closeness(observed, target float64) float64 {
	if target == 0 {
		return 0
	}
	d := math.Abs(observed - target)
	score := 1 - d/target
	if score < 0 {
		return 0
	}
	return score
}

// Linspace enumerates n evenly spaced candidates from lo to hi inclusive,
// for building axes from configuration.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	step := (hi - lo) / float64(n-1)
	values := make([]float64, n)
	for i := range values {
		values[i] = lo + float64(i)*step
	}
	return values
}
