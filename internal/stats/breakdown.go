package stats

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"watertrack/internal/core"
)

// Palette colors are assigned to liquid types in first-seen order.
var Palette = []string{
	"#3B82F6",
	"#F59E0B",
	"#10B981",
	"#EF4444",
	"#8B5CF6",
	"#EC4899",
	"#14B8A6",
	"#F97316",
}

// RandomRGB returns a random "rgb(r, g, b)" color.
func RandomRGB() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", rand.IntN(256), rand.IntN(256), rand.IntN(256))
}

// LiquidType is one slice of the per-day type chart.
type LiquidType struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

// LiquidTypeBreakdown groups the drinks of a day by type in first-seen order.
// Colors come from Palette, then from fallback once it is exhausted. A nil
// fallback means RandomRGB.
func LiquidTypeBreakdown(day *core.Day, fallback func() string) []LiquidType {
	if day == nil {
		return nil
	}
	if fallback == nil {
		fallback = RandomRGB
	}
	var out []LiquidType
	index := make(map[string]int)
	for _, bucket := range day.Activity {
		for _, d := range bucket {
			if i, ok := index[d.Type]; ok {
				out[i].Value += d.Amount
				continue
			}
			color := ""
			if n := len(out); n < len(Palette) {
				color = Palette[n]
			} else {
				color = fallback()
			}
			index[d.Type] = len(out)
			out = append(out, LiquidType{ID: d.Type, Label: d.Type, Value: d.Amount, Color: color})
		}
	}
	return out
}

// TypeAmount is one row of the monthly ranking.
type TypeAmount struct {
	Type   string  `json:"type"`
	Liters float64 `json:"amount"`
}

// MonthlyDrinkRanking sums the month's drinks per type and converts them to
// liters rounded to 100 ml. Rows are sorted by rounded liters, descending;
// equal rows keep first-seen order.
func MonthlyDrinkRanking(m core.Month, monthKey string) []TypeAmount {
	drinks := MonthlyDrinks(m, monthKey)
	if drinks == nil {
		return nil
	}
	var (
		types []string
		ml    = make(map[string]int)
	)
	for _, d := range drinks {
		if _, ok := ml[d.Type]; !ok {
			types = append(types, d.Type)
		}
		ml[d.Type] += d.Amount
	}

	deciliters := make(map[string]int, len(types))
	for _, t := range types {
		deciliters[t] = roundHalfUp(ml[t], 100)
	}
	sort.SliceStable(types, func(i, j int) bool {
		return deciliters[types[i]] > deciliters[types[j]]
	})

	out := make([]TypeAmount, len(types))
	for i, t := range types {
		out[i] = TypeAmount{Type: t, Liters: float64(deciliters[t]) / 10}
	}
	return out
}

// roundHalfUp divides v by unit rounding halves away from zero.
func roundHalfUp(v, unit int) int {
	if v < 0 {
		return -roundHalfUp(-v, unit)
	}
	return (v + unit/2) / unit
}
