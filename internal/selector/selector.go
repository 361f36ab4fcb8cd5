// Package selector maps an ordered sequence of moves to one chosen move.
//
// Move sequences produced by the caches are sorted best-first, so First is
// the greedy policy and the other selectors trade optimality for
// diversification. A selector accepts either a materialized List or a
// single-pass Stream; selectors that need random access materialize streams
// first.
package selector

import (
	"errors"
	"fmt"
	"iter"
)

var (
	// ErrEmptySequence is returned when selecting from an empty sequence.
	ErrEmptySequence = errors.New("selector: empty move sequence")
	// ErrInvalidParameter is returned by constructors given out-of-range parameters.
	ErrInvalidParameter = errors.New("selector: invalid parameter")
)

// Sequence is an ordered, possibly single-pass, sequence of moves.
type Sequence[T any] interface {
	All() iter.Seq[T]
}

// Indexed is a Sequence with random access.
type Indexed[T any] interface {
	Sequence[T]
	Len() int
	At(i int) T
}

// List is a materialized sequence.
type List[T any] []T

func (l List[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, m := range l {
			if !yield(m) {
				return
			}
		}
	}
}

func (l List[T]) Len() int   { return len(l) }
func (l List[T]) At(i int) T { return l[i] }

// Stream is a single-pass sequence.
type Stream[T any] iter.Seq[T]

func (s Stream[T]) All() iter.Seq[T] { return iter.Seq[T](s) }

// Selector picks one move from an ordered sequence.
type Selector[T any] interface {
	Select(moves Sequence[T]) (T, error)
}

// Func adapts a plain function to the Selector interface.
type Func[T any] func(moves Sequence[T]) (T, error)

func (f Func[T]) Select(moves Sequence[T]) (T, error) { return f(moves) }

// Rand is the randomness a stochastic selector draws from. *math/rand/v2.Rand
// satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

func materialize[T any](moves Sequence[T]) Indexed[T] {
	if idx, ok := moves.(Indexed[T]); ok {
		return idx
	}
	var out List[T]
	for m := range moves.All() {
		out = append(out, m)
	}
	return out
}

// First returns the first move, i.e. the best one.
func First[T any]() Selector[T] {
	return Func[T](func(moves Sequence[T]) (T, error) {
		for m := range moves.All() {
			return m, nil
		}
		var zero T
		return zero, ErrEmptySequence
	})
}

// Last returns the final move. Indexed sequences are answered in O(1);
// streams are drained.
func Last[T any]() Selector[T] {
	return Func[T](func(moves Sequence[T]) (T, error) {
		var zero T
		if idx, ok := moves.(Indexed[T]); ok {
			if idx.Len() == 0 {
				return zero, ErrEmptySequence
			}
			return idx.At(idx.Len() - 1), nil
		}
		last, found := zero, false
		for m := range moves.All() {
			last, found = m, true
		}
		if !found {
			return zero, ErrEmptySequence
		}
		return last, nil
	})
}

// Nth returns the nth move (1-indexed). Shorter sequences yield their last
// move instead of failing.
func Nth[T any](n int) (Selector[T], error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: nth selector needs n >= 1, got %d", ErrInvalidParameter, n)
	}
	return Func[T](func(moves Sequence[T]) (T, error) {
		var zero T
		if idx, ok := moves.(Indexed[T]); ok {
			if idx.Len() == 0 {
				return zero, ErrEmptySequence
			}
			return idx.At(min(n, idx.Len()) - 1), nil
		}
		remaining := n
		last, found := zero, false
		for m := range moves.All() {
			last, found = m, true
			remaining--
			if remaining == 0 {
				break
			}
		}
		if !found {
			return zero, ErrEmptySequence
		}
		return last, nil
	}), nil
}

// Random returns a uniformly drawn move.
func Random[T any](rng Rand) Selector[T] {
	return Func[T](func(moves Sequence[T]) (T, error) {
		idx := materialize(moves)
		if idx.Len() == 0 {
			var zero T
			return zero, ErrEmptySequence
		}
		return idx.At(rng.IntN(idx.Len())), nil
	})
}

// Blink scans the sequence in order and skips ("blinks") each move with
// probability p. The kth move is chosen with probability (1-p)·p^(k-1); if
// every move is skipped the last one is returned.
func Blink[T any](p float64, rng Rand) (Selector[T], error) {
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: blink probability must lie in [0,1], got %v", ErrInvalidParameter, p)
	}
	return Func[T](func(moves Sequence[T]) (T, error) {
		var zero T
		candidate, found := zero, false
		for m := range moves.All() {
			candidate, found = m, true
			if rng.Float64() <= p {
				continue
			}
			break
		}
		if !found {
			return zero, ErrEmptySequence
		}
		return candidate, nil
	}), nil
}
