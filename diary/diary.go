package diary

import (
	"context"
	"time"

	"glyko/diary/pkg/mg"
	"glyko/diary/pkg/segment"
	"glyko/diary/pkg/stats"

	"go.uber.org/zap"
)

type DiaryStore interface {
	mg.GlucoseStore
	mg.InsulinStore
	mg.CarbStore
}

// Diary assembles a renderable view of one date window: zone-colored
// glucose segments plus period statistics. Each call reads a fresh
// snapshot of the window; identical inputs yield identical views.
type Diary struct {
	Store DiaryStore

	Logger   *zap.Logger
	Location *time.Location
	Range    segment.Range
}

type View struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Segments []segment.Segment   `json:"segments"`
	Summary  stats.PeriodSummary `json:"summary"`
}

func (d *Diary) View(ctx context.Context, start, end time.Time) (*View, error) {
	glucose, err := d.Store.ReadGlucose(ctx, start, end)
	if err != nil {
		return nil, err
	}
	insulin, err := d.Store.ReadInsulin(ctx, start, end)
	if err != nil {
		return nil, err
	}
	carbs, err := d.Store.ReadCarbs(ctx, start, end)
	if err != nil {
		return nil, err
	}

	days := calendarDays(start, end, d.Location)
	summary := stats.Aggregate(glucose, stats.IntakeData{Ins: insulin, Carbs: carbs}, days, d.Range)

	d.Logger.Debug("built diary view",
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("readings", len(glucose)),
		zap.Int("days", days),
	)

	return &View{
		Start:    start,
		End:      end,
		Segments: d.Range.Build(glucose),
		Summary:  summary,
	}, nil
}

// calendarDays counts the calendar days a window touches, clamped to a
// minimum of 1 so per-day averages never divide by zero. The dates are
// re-anchored in UTC so DST transitions cannot shorten a day below 24h.
func calendarDays(start, end time.Time, loc *time.Location) int {
	sy, sm, sd := start.In(loc).Date()
	ey, em, ed := end.In(loc).Date()
	s := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	e := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	days := int(e.Sub(s).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	return days
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
