// Package insights analyses recorded moods for weekday patterns, trends and variability
package insights

import (
	"math"
	"sort"

	"github.com/go-while/go-moodtracker/internal/models"
)

const (
	// TrendDays is how many distinct days feed the trend line
	TrendDays = 7
	// MinTrendDays is the minimum number of distinct days before a trend is reported
	MinTrendDays = 5
	// TrendSlope is the slope beyond which the mood counts as improving or declining
	TrendSlope = 0.1

	LowVariability  = 0.5
	HighVariability = 1.2
)

// Trend directions
const (
	TrendStable    = "stable"
	TrendImproving = "improving"
	TrendDeclining = "declining"
)

// Variability levels
const (
	VariabilityLow      = "low"
	VariabilityModerate = "moderate"
	VariabilityHigh     = "high"
)

var weekdayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Options tunes when insights are shown
type Options struct {
	MinUniqueDays         int     // distinct days of data before insights are available
	BroadenBuildThreshold float64 // overall average above which broaden & build advice is given
}

// DefaultOptions returns the thresholds the app ships with
func DefaultOptions() Options {
	return Options{
		MinUniqueDays:         3,
		BroadenBuildThreshold: 4.5,
	}
}

// WeekdayAverage is the average mood for one weekday
type WeekdayAverage struct {
	Weekday string  `json:"weekday"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Patterns is the result of analysing a set of entries
type Patterns struct {
	Available        bool             `json:"available"`
	UniqueDays       int              `json:"uniqueDays"`
	HighestDay       string           `json:"highestDay,omitempty"`
	HighestAvg       float64          `json:"highestAvg,omitempty"`
	LowestDay        string           `json:"lowestDay,omitempty"`
	LowestAvg        float64          `json:"lowestAvg,omitempty"`
	TrendDirection   string           `json:"trendDirection"`
	OverallAverage   float64          `json:"overallAverage"`
	StandardDev      float64          `json:"standardDeviation"`
	VariabilityLevel string           `json:"variabilityLevel"`
	Weekdays         []WeekdayAverage `json:"weekdays,omitempty"`
}

// Analyze computes mood patterns. Entries may be in any order.
func Analyze(entries []*models.MoodEntry, opts Options) *Patterns {
	p := &Patterns{
		TrendDirection:   TrendStable,
		VariabilityLevel: VariabilityModerate,
		UniqueDays:       countUniqueDates(entries),
	}
	if len(entries) == 0 || p.UniqueDays < opts.MinUniqueDays {
		return p
	}
	p.Available = true

	sorted := sortedOldestFirst(entries)

	var sums [7]float64
	var counts [7]int
	values := make([]float64, 0, len(sorted))
	for _, e := range sorted {
		wd := e.Weekday
		if wd < 0 || wd > 6 {
			continue
		}
		sums[wd] += float64(e.MoodValue)
		counts[wd]++
		values = append(values, float64(e.MoodValue))
	}

	// strict comparisons keep the earliest weekday on ties
	highest, lowest := -1, -1
	highestAvg, lowestAvg := math.Inf(-1), math.Inf(1)
	for wd := 0; wd < 7; wd++ {
		if counts[wd] == 0 {
			continue
		}
		avg := sums[wd] / float64(counts[wd])
		p.Weekdays = append(p.Weekdays, WeekdayAverage{Weekday: weekdayNames[wd], Average: round1(avg), Count: counts[wd]})
		if avg > highestAvg {
			highestAvg, highest = avg, wd
		}
		if avg < lowestAvg {
			lowestAvg, lowest = avg, wd
		}
	}
	if highest >= 0 {
		p.HighestDay = weekdayNames[highest]
		p.HighestAvg = round1(highestAvg)
	}
	if lowest >= 0 {
		p.LowestDay = weekdayNames[lowest]
		p.LowestAvg = round1(lowestAvg)
	}

	p.TrendDirection = trend(sorted)

	if len(values) > 0 {
		mean := average(values)
		sd := stddev(values, mean)
		p.OverallAverage = round1(mean)
		p.StandardDev = round1(sd)
		switch {
		case sd < LowVariability:
			p.VariabilityLevel = VariabilityLow
		case sd > HighVariability:
			p.VariabilityLevel = VariabilityHigh
		}
	}
	return p
}

// trend fits a line through the most recent entry of each of the last TrendDays days.
// sorted must be oldest first.
func trend(sorted []*models.MoodEntry) string {
	var daily []*models.MoodEntry
	seen := make(map[string]bool)
	for i := len(sorted) - 1; i >= 0 && len(daily) < TrendDays; i-- {
		e := sorted[i]
		if seen[e.Date] {
			continue
		}
		seen[e.Date] = true
		daily = append(daily, e)
	}
	if len(daily) < MinTrendDays {
		return TrendStable
	}

	x := make([]float64, len(daily))
	y := make([]float64, len(daily))
	for i := range daily {
		// daily is newest first
		e := daily[len(daily)-1-i]
		x[i] = float64(i)
		y[i] = float64(e.MoodValue)
	}
	slope := Slope(x, y)
	switch {
	case slope > TrendSlope:
		return TrendImproving
	case slope < -TrendSlope:
		return TrendDeclining
	}
	return TrendStable
}

// Slope returns the least squares slope of y over x
func Slope(x, y []float64) float64 {
	n := float64(len(x))
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	var sumX, sumY, sumXY, sumX2 float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// StandardDeviation returns the population standard deviation of values
func StandardDeviation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stddev(values, average(values))
}

func stddev(values []float64, mean float64) float64 {
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)))
}

func average(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func countUniqueDates(entries []*models.MoodEntry) int {
	dates := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		dates[e.Date] = struct{}{}
	}
	return len(dates)
}

func sortedOldestFirst(entries []*models.MoodEntry) []*models.MoodEntry {
	out := make([]*models.MoodEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}
