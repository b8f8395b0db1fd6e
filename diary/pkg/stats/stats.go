package stats

import (
	"math"
	"sort"
	"time"

	"glyko/diary/defs"
	"glyko/diary/pkg/segment"

	"github.com/montanaflynn/stats"
)

// PeriodStats summarizes glucose over a window. The three percentages
// always sum to exactly 100: TIR and TAR are rounded independently and
// TBR is derived by complement, which can leave TBR negative when the
// other two both round up.
type PeriodStats struct {
	TimeInRangePct int `json:"timeInRangePct"`
	TimeAbovePct   int `json:"timeAbovePct"`
	TimeBelowPct   int `json:"timeBelowPct"`

	Mean      float64 `json:"mean"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Deviation float64 `json:"deviation"`
}

// Glucose computes PeriodStats over a window of readings. A nil result
// means no data, which callers must render as an empty state rather
// than zero-filled figures.
func Glucose(grs []defs.GlucoseReading, rng segment.Range) *PeriodStats {
	if len(grs) == 0 {
		return nil
	}

	in, above := 0, 0
	vals := make([]float64, len(grs))
	for i, gr := range grs {
		vals[i] = gr.Mmol
		switch rng.Classify(gr.Mmol) {
		case segment.InRange:
			in++
		case segment.Above:
			above++
		}
	}

	// Half-to-even rounding keeps .5 percentages unbiased across windows.
	n := float64(len(grs))
	tir := int(math.RoundToEven(100 * float64(in) / n))
	tar := int(math.RoundToEven(100 * float64(above) / n))

	mean, _ := stats.Mean(vals)
	min, _ := stats.Min(vals)
	max, _ := stats.Max(vals)
	dev, _ := stats.StandardDeviation(vals)

	return &PeriodStats{
		TimeInRangePct: tir,
		TimeAbovePct:   tar,
		TimeBelowPct:   100 - tir - tar,
		Mean:           mean,
		Min:            min,
		Max:            max,
		Deviation:      dev,
	}
}

type IntakeData struct {
	Ins   []defs.Insulin
	Carbs []defs.Carb
}

// PeriodSummary combines glucose statistics with insulin and carb
// totals and their daily averages over the period.
type PeriodSummary struct {
	Glucose *PeriodStats `json:"glucose"`

	Bolus float64 `json:"bolus"`
	Basal float64 `json:"basal"`
	Carbs float64 `json:"carbs"`

	BolusPerDay float64 `json:"bolusPerDay"`
	BasalPerDay float64 `json:"basalPerDay"`
	CarbsPerDay float64 `json:"carbsPerDay"`

	Days int `json:"days"`
}

// Aggregate builds a PeriodSummary over a window spanning days calendar
// days. Callers guarantee days >= 1.
func Aggregate(grs []defs.GlucoseReading, intake IntakeData, days int, rng segment.Range) PeriodSummary {
	var bolus, basal float64
	for _, in := range intake.Ins {
		switch in.Reason {
		case defs.Basal.String():
			basal += in.Units
		default:
			bolus += in.Units
		}
	}

	var carbs float64
	for _, c := range intake.Carbs {
		carbs += c.Grams
	}

	return PeriodSummary{
		Glucose:     Glucose(grs, rng),
		Bolus:       bolus,
		Basal:       basal,
		Carbs:       carbs,
		BolusPerDay: bolus / float64(days),
		BasalPerDay: basal / float64(days),
		CarbsPerDay: carbs / float64(days),
		Days:        days,
	}
}

type DailyIntake struct {
	Days     []time.Time
	InsMap   map[time.Time][]defs.Insulin
	CarbsMap map[time.Time][]defs.Carb
}

// DailyAggregate groups insulin and carb entries by calendar day in the
// given location, for per-day report tables.
func DailyAggregate(data IntakeData, loc *time.Location) DailyIntake {
	di := DailyIntake{
		InsMap:   make(map[time.Time][]defs.Insulin),
		CarbsMap: make(map[time.Time][]defs.Carb),
	}

	seen := make(map[time.Time]bool)
	addDay := func(day time.Time) {
		if !seen[day] {
			seen[day] = true
			di.Days = append(di.Days, day)
		}
	}

	for _, in := range data.Ins {
		day := startOfDay(in.Time.In(loc))
		addDay(day)
		di.InsMap[day] = append(di.InsMap[day], in)
	}
	for _, c := range data.Carbs {
		day := startOfDay(c.Time.In(loc))
		addDay(day)
		di.CarbsMap[day] = append(di.CarbsMap[day], c)
	}

	sort.Slice(di.Days, func(i, j int) bool { return di.Days[i].Before(di.Days[j]) })
	return di
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
