package logic

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/redeclipse/stats-api/internal/cache"
	"github.com/redeclipse/stats-api/internal/models"
)

// 2024-01-01 was a Monday
func day(d, hour, minute int) time.Time {
	return time.Date(2024, time.January, d, hour, minute, 0, 0, time.UTC)
}

func TestBuildTimeline(t *testing.T) {
	start := day(3, 0, 0)
	end := start.Add(24 * time.Hour)
	rows := []models.ActivityRow{
		{Time: day(3, 1, 0).Unix(), TimePlayed: 600, UniquePlayers: 4},
		{Time: day(3, 0, 2).Unix(), TimePlayed: 600, UniquePlayers: 3}, // started before the window
		{Time: start.Unix(), TimePlayed: 60, UniquePlayers: 9},         // ended on the boundary
		{Time: end.Add(time.Minute).Unix(), TimePlayed: 60, UniquePlayers: 9},
		{Time: end.Add(10 * time.Minute).Unix(), TimePlayed: 1200, UniquePlayers: 5}, // still running at the window end
	}

	tl := BuildTimeline(rows, start, end, nil)
	if len(tl.Minutes) != 24*60+1 {
		t.Fatalf("len(Minutes) = %d, want %d", len(tl.Minutes), 24*60+1)
	}
	if tl.Offset != 0 || tl.Days != 1 {
		t.Errorf("Offset = %d, Days = %v", tl.Offset, tl.Days)
	}

	tests := []struct {
		minute int
		want   float64
	}{
		{0, 3}, {1, 3}, {2, 0},
		{49, 0}, {50, 4}, {59, 4}, {60, 0},
		{24*60 - 10, 0}, {24*60 - 1, 0}, {24 * 60, 0},
	}
	for _, tt := range tests {
		if got := tl.Minutes[tt.minute]; got != tt.want {
			t.Errorf("Minutes[%d] = %v, want %v", tt.minute, got, tt.want)
		}
	}
}

func TestFoldHours(t *testing.T) {
	tl := &Timeline{Start: day(3, 0, 30), Minutes: make([]float64, 24*60+1), Offset: 30, Days: 1}
	for i := 0; i < 30; i++ {
		tl.Minutes[i] = 60
	}
	tl.Minutes[30] = 60

	hours := FoldHours(tl)
	if len(hours) != 24 {
		t.Fatalf("len = %d, want 24", len(hours))
	}
	if hours[0].Label != "0" || hours[0].Value != 30 || len(hours[0].Bar) != 100 {
		t.Errorf("hour 0 = %+v", hours[0])
	}
	if hours[1].Value != 1 || hours[1].Bar != "|||" {
		t.Errorf("hour 1 = %+v", hours[1])
	}
	if hours[2].Value != 0 || hours[2].Bar != "" {
		t.Errorf("hour 2 = %+v", hours[2])
	}
}

func TestFoldEmptyTimeline(t *testing.T) {
	tl := BuildTimeline(nil, day(3, 0, 0), day(3, 0, 0), nil)
	for _, fold := range []func(*Timeline) []models.ActivityBucket{FoldHours, FoldWeekdays, FoldWeekdayHours} {
		for _, b := range fold(tl) {
			if b.Value != 0 || b.Bar != "" {
				t.Fatalf("bucket %+v in empty timeline", b)
			}
		}
	}
}

func TestFoldWeekdaysStartsOnMonday(t *testing.T) {
	for d := 1; d <= 7; d++ {
		start := day(d, 0, 0)
		want := weekdayLabels[d-1]
		t.Run(want, func(t *testing.T) {
			rows := []models.ActivityRow{
				{Time: start.Add(13 * time.Hour).Unix(), TimePlayed: 3600, UniquePlayers: 7},
			}
			tl := BuildTimeline(rows, start, start.AddDate(0, 0, 7), time.UTC)

			days := FoldWeekdays(tl)
			if days[0].Label != "Mon" || days[6].Label != "Sun" {
				t.Fatalf("labels = %s .. %s", days[0].Label, days[6].Label)
			}
			for i, b := range days {
				if b.Label == want {
					if b.Value != 0.3 || len(b.Bar) != 100 {
						t.Errorf("%s = %+v", want, b)
					}
				} else if b.Value != 0 {
					t.Errorf("days[%d] = %+v, want 0", i, b)
				}
			}

			hours := FoldWeekdayHours(tl)
			idx := (d-1)*24 + 12
			if hours[idx].Label != want+" 12" || hours[idx].Value != 7 {
				t.Errorf("hours[%d] = %+v", idx, hours[idx])
			}
		})
	}
}

func TestFoldAcrossMidnightInZone(t *testing.T) {
	zone := time.FixedZone("CET", 3600)
	// 23:30 on Wednesday in zone
	start := day(3, 22, 30)
	rows := []models.ActivityRow{
		{Time: start.Add(time.Hour).Unix(), TimePlayed: 3600, UniquePlayers: 2},
	}
	tl := BuildTimeline(rows, start, start.AddDate(0, 0, 7), zone)
	if tl.Offset != 23*60+30 {
		t.Fatalf("Offset = %d", tl.Offset)
	}

	// Half of the game falls on each side of midnight
	hours := FoldWeekdayHours(tl)
	wed23, thu0 := hours[2*24+23], hours[3*24]
	if wed23.Label != "Wed 23" || wed23.Value != 1 || thu0.Label != "Thu 0" || thu0.Value != 1 {
		t.Errorf("Wed 23 = %+v, Thu 0 = %+v", wed23, thu0)
	}

	byHour := FoldHours(tl)
	if byHour[23].Value != byHour[0].Value || byHour[23].Value == 0 {
		t.Errorf("hour 23 = %+v, hour 0 = %+v", byHour[23], byHour[0])
	}
}

type fakeActivity struct {
	rows  []models.ActivityRow
	err   error
	since int64
	calls atomic.Int64
}

func (f *fakeActivity) ActivityRows(_ context.Context, since int64) ([]models.ActivityRow, error) {
	f.calls.Add(1)
	f.since = since
	return f.rows, f.err
}

func TestActivityService(t *testing.T) {
	ctx := context.Background()
	src := &fakeActivity{rows: []models.ActivityRow{
		{Time: day(9, 13, 0).Unix(), TimePlayed: 3600, UniquePlayers: 5},
		{Time: day(10, 9, 0).Unix(), TimePlayed: 3600, UniquePlayers: 50}, // today
	}}
	svc := NewActivityService(src, time.UTC, nil, zap.NewNop()).(*activityService)
	svc.now = func() time.Time { return day(10, 10, 17) }

	hours, err := svc.Hours(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if hours.Days != defaultHourDays || len(hours.Buckets) != 24 {
		t.Errorf("Hours() days = %d, buckets = %d", hours.Days, len(hours.Buckets))
	}
	if want := day(10, 10, 0).AddDate(0, 0, -defaultHourDays).Unix(); src.since != want {
		t.Errorf("Hours() read since %d, want %d", src.since, want)
	}

	weekdays, err := svc.Weekdays(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if src.since != day(3, 0, 0).Unix() {
		t.Errorf("Weekdays() read since %d, want %d", src.since, day(3, 0, 0).Unix())
	}
	tue, wed := weekdays.Buckets[1], weekdays.Buckets[2]
	if tue.Value != 0.2 || wed.Value != 0 || weekdays.Max != 0.2 {
		t.Errorf("Weekdays() tue = %+v, wed = %+v, max = %v", tue, wed, weekdays.Max)
	}

	grid, err := svc.WeekdayHours(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(grid.Buckets) != 168 || grid.Buckets[24+12].Value != 5 {
		t.Errorf("WeekdayHours() Tue 12 = %+v", grid.Buckets[24+12])
	}
	if strings.Count(grid.Buckets[24+12].Bar, "|") != 100 {
		t.Errorf("busiest bucket bar = %q", grid.Buckets[24+12].Bar)
	}
}

func TestActivityServiceErrors(t *testing.T) {
	boom := errors.New("boom")
	svc := NewActivityService(&fakeActivity{err: boom}, nil, nil, nil)
	if _, err := svc.Hours(context.Background(), 1); !errors.Is(err, boom) {
		t.Errorf("Hours() error = %v, want %v", err, boom)
	}
}

func TestActivityServiceCached(t *testing.T) {
	src := &fakeActivity{}
	svc := NewActivityService(src, time.UTC, cache.New(cache.Options{Enabled: true}), zap.NewNop())
	for range 3 {
		if _, err := svc.Weekdays(context.Background(), 28); err != nil {
			t.Fatal(err)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("source read %d times, want 1", n)
	}
}

func TestFoldSamplesSkipsTrailingMinute(t *testing.T) {
	// A full week from Monday: the trailing minute falls on the next Monday.
	start := day(1, 0, 0)
	rows := []models.ActivityRow{
		{Time: day(2, 0, 0).Unix(), TimePlayed: 86400, UniquePlayers: 6},
	}
	tl := BuildTimeline(rows, start, start.AddDate(0, 0, 7), time.UTC)

	raw := foldSamples(tl, 7, func(minute int) int { return minute / minutesPerDay % 7 })
	if raw[0] != 6 {
		t.Errorf("Monday average = %v, want exactly 6", raw[0])
	}
	for d := 1; d < 7; d++ {
		if raw[d] != 0 {
			t.Errorf("day %d average = %v, want 0", d, raw[d])
		}
	}
}
