package profile

import (
	"errors"
)

// ErrEmptyProfile is returned when a calculation requires at least one touched level.
var ErrEmptyProfile = errors.New("profile has no touched levels")

// ValueArea represents the contiguous price range holding the target share of TPOs.
type ValueArea struct {
	// POC is the price of the level with the highest TPO count.
	POC float64
	VAH float64
	VAL float64
	// Total is the sum of touch counts across all levels.
	Total int
	// Target is the TPO count the value area needed to capture.
	Target int
	// Captured is the TPO count the value area captured.
	Captured int
}

// CalculateValueArea expands outward from the point of control of the provided ascending
// levels until the captured TPO count reaches the target share of the total. The higher
// level is taken on ties and when the lower side is exhausted.
func CalculateValueArea(levels []Level, fraction float64) (*ValueArea, error) {
	valid := make([]Level, 0, len(levels))
	for idx := range levels {
		if levels[idx].Count > 0 {
			valid = append(valid, levels[idx])
		}
	}
	if len(valid) == 0 {
		return nil, ErrEmptyProfile
	}

	var total int
	poc := 0
	for idx := range valid {
		total += valid[idx].Count
		if valid[idx].Count > valid[poc].Count {
			poc = idx
		}
	}

	target := int(float64(total) * fraction)
	captured := valid[poc].Count
	lo, hi := poc, poc
	for captured < target {
		upper := hi+1 < len(valid)
		lower := lo-1 >= 0
		if !upper && !lower {
			break
		}

		if upper && (!lower || valid[hi+1].Count >= valid[lo-1].Count) {
			hi++
			captured += valid[hi].Count
			continue
		}

		lo--
		captured += valid[lo].Count
	}

	return &ValueArea{
		POC:      valid[poc].Price,
		VAH:      valid[hi].Price,
		VAL:      valid[lo].Price,
		Total:    total,
		Target:   target,
		Captured: captured,
	}, nil
}

// ValueArea calculates the value area of the profile.
func (p *Profile) ValueArea(fraction float64) (*ValueArea, error) {
	return CalculateValueArea(p.Levels, fraction)
}
