package rewards

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultRules is the out-of-the-box points table.
func DefaultRules() Rules {
	return Rules{
		CollectorCompletion: decimal.NewFromInt(10),
		RequesterCompletion: decimal.NewFromInt(5),
		Rating:              decimal.NewFromInt(2),
		LateCancellation:    decimal.NewFromInt(5),
	}
}

// RulesFromPoints builds rules from whole-point values, as read from
// configuration.
func RulesFromPoints(collector, requester, rating, lateCancellation int64) Rules {
	return Rules{
		CollectorCompletion: decimal.NewFromInt(collector),
		RequesterCompletion: decimal.NewFromInt(requester),
		Rating:              decimal.NewFromInt(rating),
		LateCancellation:    decimal.NewFromInt(lateCancellation),
	}
}

// DefaultLevels are ordered by threshold.
func DefaultLevels() []Level {
	return []Level{
		{Name: "seed", MinPoints: decimal.Zero},
		{Name: "sprout", MinPoints: decimal.NewFromInt(50)},
		{Name: "tree", MinPoints: decimal.NewFromInt(200)},
		{Name: "forest", MinPoints: decimal.NewFromInt(500)},
	}
}

// LevelFor returns the highest level whose threshold balance reaches and
// the following one, if any. Negative balances stay on the first level.
func LevelFor(levels []Level, balance decimal.Decimal) (Level, *Level) {
	if len(levels) == 0 {
		return Level{}, nil
	}
	sorted := append([]Level(nil), levels...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPoints.LessThan(sorted[j].MinPoints)
	})

	current := 0
	for i, l := range sorted {
		if balance.GreaterThanOrEqual(l.MinPoints) {
			current = i
		}
	}
	if current+1 < len(sorted) {
		next := sorted[current+1]
		return sorted[current], &next
	}
	return sorted[current], nil
}
