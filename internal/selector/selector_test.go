package selector

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRand replays a fixed list of uniform draws.
type scriptedRand struct {
	values []float64
	next   int
}

func (r *scriptedRand) Float64() float64 {
	v := r.values[r.next%len(r.values)]
	r.next++
	return v
}

func (r *scriptedRand) IntN(n int) int { return int(r.Float64() * float64(n)) }

func stream(xs ...int) Stream[int] { return Stream[int](slices.Values(xs)) }

func TestSelectors_ListAndStream(t *testing.T) {
	nth3, err := Nth[int](3)
	require.NoError(t, err)
	nth9, err := Nth[int](9)
	require.NoError(t, err)

	cases := []struct {
		name string
		sel  Selector[int]
		want int
	}{
		{"first", First[int](), 1},
		{"last", Last[int](), 5},
		{"nth", nth3, 3},
		{"nth past end", nth9, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.sel.Select(List[int]{1, 2, 3, 4, 5})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			got, err = tc.sel.Select(stream(1, 2, 3, 4, 5))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBlink_FirstDrawAboveProbability(t *testing.T) {
	draws := []float64{0.2, 0.25, 0.5, math.Nextafter(0.5, 1), 0.1}

	sel, err := Blink[int](0.5, &scriptedRand{values: draws})
	require.NoError(t, err)
	got, err := sel.Select(List[int]{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, 4, got)

	sel, err = Blink[int](0.5, &scriptedRand{values: draws})
	require.NoError(t, err)
	got, err = sel.Select(stream(1, 2, 3, 4, 5))
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestBlink_ExhaustedReturnsLast(t *testing.T) {
	sel, err := Blink[int](1, &scriptedRand{values: []float64{0.3}})
	require.NoError(t, err)
	got, err := sel.Select(List[int]{7, 8, 9})
	require.NoError(t, err)
	assert.Equal(t, 9, got)
}

func TestRandom(t *testing.T) {
	sel := Random[int](&scriptedRand{values: []float64{0.2, 0.6, 0.8}})
	got, err := sel.Select(List[int]{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	sel = Random[int](&scriptedRand{values: []float64{0.2, 0.6, 0.8}})
	got, err = sel.Select(stream(1, 2, 3, 4, 5))
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestEmptySequence(t *testing.T) {
	nth, err := Nth[int](1)
	require.NoError(t, err)
	blink, err := Blink[int](0.5, &scriptedRand{values: []float64{0.5}})
	require.NoError(t, err)

	for name, sel := range map[string]Selector[int]{
		"first":  First[int](),
		"last":   Last[int](),
		"nth":    nth,
		"blink":  blink,
		"random": Random[int](&scriptedRand{values: []float64{0.5}}),
	} {
		_, err := sel.Select(List[int]{})
		assert.ErrorIs(t, err, ErrEmptySequence, name)
		_, err = sel.Select(stream())
		assert.ErrorIs(t, err, ErrEmptySequence, name)
	}
}

func TestConstructorsRejectBadParameters(t *testing.T) {
	_, err := Nth[int](0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = Blink[int](1.5, &scriptedRand{values: []float64{0}})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = Blink[int](-0.1, &scriptedRand{values: []float64{0}})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestNth_StopsConsumingStream(t *testing.T) {
	pulled := 0
	s := Stream[int](func(yield func(int) bool) {
		for i := 1; i <= 10; i++ {
			pulled++
			if !yield(i) {
				return
			}
		}
	})
	sel, err := Nth[int](2)
	require.NoError(t, err)
	got, err := sel.Select(s)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Equal(t, 2, pulled)
}
