package availability

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
)

func clock(t *testing.T, s string) model.Clock {
	t.Helper()
	c, err := model.ParseClock(s)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestFreeTimes_Basic(t *testing.T) {
	date := time.Date(2030, 1, 28, 0, 0, 0, 0, time.UTC)
	day := Day{Open: clock(t, "09:00"), Close: clock(t, "10:00"), Step: 15 * time.Minute}

	free := FreeTimes(day, date, []model.Clock{clock(t, "09:15"), clock(t, "09:30")}, date, time.UTC)
	if len(free) != 2 {
		t.Fatalf("expected 2 free times, got %v", free)
	}
	if free[0].String() != "09:00" || free[1].String() != "09:45" {
		t.Fatalf("unexpected free times %v", free)
	}
}

func TestFreeTimes_SkipsPastAndNow(t *testing.T) {
	date := time.Date(2030, 1, 28, 0, 0, 0, 0, time.UTC)
	day := Day{Open: clock(t, "09:00"), Close: clock(t, "10:00"), Step: 15 * time.Minute}

	// 09:30 equals now and is not strictly future.
	now := date.Add(9*time.Hour + 30*time.Minute)
	free := FreeTimes(day, date, nil, now, time.UTC)
	if len(free) != 1 || free[0].String() != "09:45" {
		t.Fatalf("expected only 09:45, got %v", free)
	}
}

func TestFreeTimes_InvalidGrid(t *testing.T) {
	date := time.Date(2030, 1, 28, 0, 0, 0, 0, time.UTC)
	if got := FreeTimes(Day{Open: 600, Close: 540, Step: time.Hour}, date, nil, date, time.UTC); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := FreeTimes(Day{Open: 540, Close: 600}, date, nil, date, time.UTC); got != nil {
		t.Fatalf("expected nil for zero step, got %v", got)
	}
}
