package profile

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/peterldowns/testy/assert"
)

func histogram(counts map[int64]int) []Level {
	levels := make([]Level, 0, len(counts))
	for idx := int64(0); idx < 1000; idx++ {
		count, ok := counts[idx]
		if !ok {
			continue
		}
		levels = append(levels, Level{Index: idx, Price: float64(idx), Count: count})
	}

	return levels
}

func TestCalculateValueArea(t *testing.T) {
	tests := []struct {
		name     string
		counts   map[int64]int
		fraction float64
		poc      float64
		vah      float64
		val      float64
	}{
		{
			name:     "first max is the poc",
			counts:   map[int64]int{99: 5, 100: 5, 101: 5, 102: 3},
			fraction: 0.68,
			poc:      99,
			vah:      101,
			val:      99,
		},
		{
			name:     "ties expand upward",
			counts:   map[int64]int{99: 5, 100: 6, 101: 5},
			fraction: 0.5,
			poc:      100,
			vah:      101,
			val:      100,
		},
		{
			name:     "larger lower count expands downward",
			counts:   map[int64]int{98: 4, 99: 5, 100: 6, 101: 2},
			fraction: 0.6,
			poc:      100,
			vah:      100,
			val:      99,
		},
		{
			name:     "exhausted upper side expands downward",
			counts:   map[int64]int{97: 1, 98: 2, 99: 3, 100: 8},
			fraction: 0.9,
			poc:      100,
			vah:      100,
			val:      98,
		},
		{
			name:     "single level",
			counts:   map[int64]int{100: 3},
			fraction: 0.68,
			poc:      100,
			vah:      100,
			val:      100,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			va, err := CalculateValueArea(histogram(test.counts), test.fraction)
			assert.NoError(t, err)
			assert.Equal(t, va.POC, test.poc)
			assert.Equal(t, va.VAH, test.vah)
			assert.Equal(t, va.VAL, test.val)
			assert.True(t, va.Captured >= va.Target || (va.VAL == histogram(test.counts)[0].Price))
		})
	}
}

func TestCalculateValueAreaEmpty(t *testing.T) {
	// Ensure an empty histogram has no value area.
	_, err := CalculateValueArea(nil, DefaultValueAreaFraction)
	assert.True(t, errors.Is(err, ErrEmptyProfile))

	// Ensure zero count levels are ignored.
	_, err = CalculateValueArea([]Level{{Index: 100, Price: 100}}, DefaultValueAreaFraction)
	assert.True(t, errors.Is(err, ErrEmptyProfile))

	va, err := CalculateValueArea([]Level{
		{Index: 99, Price: 99, Count: 0},
		{Index: 100, Price: 100, Count: 2},
		{Index: 101, Price: 101, Count: 0},
		{Index: 102, Price: 102, Count: 2},
	}, 1)
	assert.NoError(t, err)
	assert.Equal(t, va.POC, 100.0)
	assert.Equal(t, va.VAH, 102.0)
	assert.Equal(t, va.VAL, 100.0)
	assert.Equal(t, va.Total, 4)
}

func TestValueAreaIdempotent(t *testing.T) {
	levels := histogram(map[int64]int{95: 1, 96: 3, 97: 4, 98: 7, 99: 7, 100: 5, 101: 2, 102: 2, 103: 1})

	// Ensure recalculating on the same histogram yields identical results.
	first, err := CalculateValueArea(levels, DefaultValueAreaFraction)
	assert.NoError(t, err)
	second, err := CalculateValueArea(levels, DefaultValueAreaFraction)
	assert.NoError(t, err)
	if !cmp.Equal(first, second) {
		t.Fatalf("value area changed: %s", cmp.Diff(first, second))
	}

	// Ensure the profile method matches the calculator.
	p := &Profile{PriceStep: 1, Levels: levels}
	third, err := p.ValueArea(DefaultValueAreaFraction)
	assert.NoError(t, err)
	assert.True(t, cmp.Equal(first, third))
}
