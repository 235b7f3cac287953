package logic

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/redeclipse/stats-api/internal/cache"
	"github.com/redeclipse/stats-api/internal/models"
)

const (
	activityTTL = 5 * time.Minute

	// Lookback used when a request does not name one
	defaultHourDays    = 30
	defaultWeekdayDays = 28

	minutesPerDay = 24 * 60
	barWidth      = 100
)

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Timeline is the number of players in a game for every minute of a window.
// Minute i of the timeline is minute Offset+i of the day Start falls on.
type Timeline struct {
	Start   time.Time
	Minutes []float64
	Offset  int
	Days    float64
}

// BuildTimeline spreads every game ending inside (start, end] over the
// minutes it was in progress. Parts of a game before start are dropped.
func BuildTimeline(rows []models.ActivityRow, start, end time.Time, loc *time.Location) *Timeline {
	if loc == nil {
		loc = time.UTC
	}
	start = start.In(loc)
	ws, we := start.Unix(), end.Unix()
	window := we - ws
	if window < 0 {
		window = 0
	}

	t := &Timeline{
		Start:   start,
		Minutes: make([]float64, (window+59)/60+1),
		Offset:  start.Hour()*60 + start.Minute(),
		Days:    float64(window) / 86400,
	}
	last := int64(len(t.Minutes) - 1)

	for _, r := range rows {
		// Games still running at the window end belong to the next window.
		if r.Time <= ws || r.Time > we {
			continue
		}
		from := r.Time - r.TimePlayed - ws
		if from < 0 {
			from = 0
		}
		lo := from / 60
		hi := min((r.Time-1-ws)/60, last)
		for m := lo; m <= hi; m++ {
			t.Minutes[m] += float64(r.UniquePlayers)
		}
	}
	return t
}

// mondayShift maps a day counted from the timeline start to a Monday-first
// weekday index
func (t *Timeline) mondayShift() int {
	return (int(t.Start.Weekday()) + 6) % 7
}

// FoldHours averages the concurrent players for every hour of the day.
func FoldHours(t *Timeline) []models.ActivityBucket {
	sums := make([]float64, 24)
	for i, v := range t.Minutes {
		sums[(i+t.Offset)/60%24] += v
	}
	divisor := t.Days * 60
	values := make([]float64, 24)
	labels := make([]string, 24)
	for h := range sums {
		if divisor > 0 {
			values[h] = sums[h] / divisor
		}
		labels[h] = strconv.Itoa(h)
	}
	return buckets(labels, values)
}

// FoldWeekdays averages the concurrent players for every day of the week,
// Monday first.
func FoldWeekdays(t *Timeline) []models.ActivityBucket {
	raw := foldSamples(t, 7, func(minute int) int {
		return minute / minutesPerDay % 7
	})

	shift := t.mondayShift()
	values := make([]float64, 7)
	for d, v := range raw {
		values[(d+shift)%7] = v
	}
	return buckets(weekdayLabels[:], values)
}

// FoldWeekdayHours averages the concurrent players for every hour of the
// week, Monday 0:00 first.
func FoldWeekdayHours(t *Timeline) []models.ActivityBucket {
	raw := foldSamples(t, 7*24, func(minute int) int {
		return (minute/minutesPerDay%7)*24 + minute/60%24
	})

	shift := t.mondayShift()
	values := make([]float64, 7*24)
	labels := make([]string, 7*24)
	for i, v := range raw {
		day, hour := (i/24+shift)%7, i%24
		values[day*24+hour] = v
	}
	for i := range labels {
		labels[i] = fmt.Sprintf("%s %d", weekdayLabels[i/24], i%24)
	}
	return buckets(labels, values)
}

// foldSamples sums the timeline into n buckets and divides each by the number
// of minutes that landed in it
func foldSamples(t *Timeline, n int, bucket func(minute int) int) []float64 {
	sums := make([]float64, n)
	samples := make([]int, n)
	// The trailing minute is the window end itself and never holds a game.
	minutes := t.Minutes
	if len(minutes) > 0 {
		minutes = minutes[:len(minutes)-1]
	}
	for i, v := range minutes {
		b := bucket(i + t.Offset)
		sums[b] += v
		samples[b]++
	}
	for b := range sums {
		if samples[b] == 0 {
			sums[b] = 0
			continue
		}
		sums[b] /= float64(samples[b])
	}
	return sums
}

func buckets(labels []string, values []float64) []models.ActivityBucket {
	var top float64
	for _, v := range values {
		top = max(top, v)
	}
	out := make([]models.ActivityBucket, len(values))
	for i, v := range values {
		out[i] = models.ActivityBucket{
			Label: labels[i],
			Value: math.Round(v*10) / 10,
		}
		if top > 0 {
			out[i].Bar = strings.Repeat("|", int(math.Round(v/top*barWidth)))
		}
	}
	return out
}

func histogram(days int, b []models.ActivityBucket) *models.ActivityHistogram {
	h := &models.ActivityHistogram{Days: days, Buckets: b}
	for _, bucket := range b {
		h.Max = max(h.Max, bucket.Value)
	}
	return h
}

type activityService struct {
	source ActivitySource
	loc    *time.Location
	logger *zap.SugaredLogger
	now    func() time.Time

	hours        func(context.Context, int) (*models.ActivityHistogram, error)
	weekdays     func(context.Context, int) (*models.ActivityHistogram, error)
	weekdayHours func(context.Context, int) (*models.ActivityHistogram, error)
}

// NewActivityService creates the histogram service. Calendar buckets are cut
// in loc.
func NewActivityService(source ActivitySource, loc *time.Location, c *cache.Cache, logger *zap.Logger) ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	a := &activityService{
		source: source,
		loc:    loc,
		logger: logger.Sugar(),
		now:    time.Now,
	}
	a.hours = cache.Wrap(c, "activity_hours", activityTTL, daysKey, func(ctx context.Context, days int) (*models.ActivityHistogram, error) {
		days = orDefault(days, defaultHourDays)
		t, err := a.timeline(ctx, days, time.Hour)
		if err != nil {
			return nil, err
		}
		return histogram(days, FoldHours(t)), nil
	})
	a.weekdays = cache.Wrap(c, "activity_weekdays", activityTTL, daysKey, func(ctx context.Context, days int) (*models.ActivityHistogram, error) {
		days = orDefault(days, defaultWeekdayDays)
		t, err := a.timeline(ctx, days, 24*time.Hour)
		if err != nil {
			return nil, err
		}
		return histogram(days, FoldWeekdays(t)), nil
	})
	a.weekdayHours = cache.Wrap(c, "activity_weekday_hours", activityTTL, daysKey, func(ctx context.Context, days int) (*models.ActivityHistogram, error) {
		days = orDefault(days, defaultWeekdayDays)
		t, err := a.timeline(ctx, days, 24*time.Hour)
		if err != nil {
			return nil, err
		}
		return histogram(days, FoldWeekdayHours(t)), nil
	})
	return a
}

func orDefault(days, fallback int) int {
	if days <= 0 {
		return fallback
	}
	return days
}

// timeline covers days whole days ending at the start of the current hour or
// day, so a bucket still in progress is never shown.
func (a *activityService) timeline(ctx context.Context, days int, unit time.Duration) (*Timeline, error) {
	now := a.now().In(a.loc)
	end := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, a.loc)
	if unit == 24*time.Hour {
		end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc)
	}
	start := end.AddDate(0, 0, -days)

	rows, err := a.source.ActivityRows(ctx, start.Unix())
	if err != nil {
		return nil, fmt.Errorf("activity since %d: %w", start.Unix(), err)
	}
	a.logger.Debugw("Built activity timeline", "days", days, "games", len(rows))
	return BuildTimeline(rows, start, end, a.loc), nil
}

func (a *activityService) Hours(ctx context.Context, days int) (*models.ActivityHistogram, error) {
	return a.hours(ctx, days)
}

func (a *activityService) Weekdays(ctx context.Context, days int) (*models.ActivityHistogram, error) {
	return a.weekdays(ctx, days)
}

func (a *activityService) WeekdayHours(ctx context.Context, days int) (*models.ActivityHistogram, error) {
	return a.weekdayHours(ctx, days)
}
