package profile

import (
	"math"
	"slices"

	"github.com/dnldd/marketprofile/shared"
)

// VPOC returns the price with the highest traded volume, grouping ticks by their last
// price rounded to the provided step. The lowest price wins ties. It reports false when
// there are no ticks or the maximum grouped volume is not positive.
func VPOC(ticks []shared.Tick, step float64) (float64, bool) {
	if len(ticks) == 0 || step <= 0 {
		return 0, false
	}

	volumes := make(map[int64]float64)
	for idx := range ticks {
		key := int64(math.RoundToEven(quotient(ticks[idx].Last, step)))
		volumes[key] += ticks[idx].Volume
	}

	keys := make([]int64, 0, len(volumes))
	for key := range volumes {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	best := keys[0]
	for _, key := range keys[1:] {
		if volumes[key] > volumes[best] {
			best = key
		}
	}
	if volumes[best] <= 0 {
		return 0, false
	}

	return levelPrice(best, step), true
}
