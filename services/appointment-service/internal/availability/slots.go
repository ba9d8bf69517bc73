package availability

import (
	"time"

	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
)

// Day describes the bookable grid of a calendar day: start times from Open
// up to but excluding Close, every Step.
type Day struct {
	Open  model.Clock
	Close model.Clock
	Step  time.Duration
}

// FreeTimes returns the grid times on date that are strictly after now and not
// in taken. Slots are matched by exact start time.
func FreeTimes(day Day, date time.Time, taken []model.Clock, now time.Time, loc *time.Location) []model.Clock {
	step := int(day.Step / time.Minute)
	if step <= 0 || day.Close <= day.Open {
		return nil
	}

	busy := make(map[model.Clock]struct{}, len(taken))
	for _, c := range taken {
		busy[c] = struct{}{}
	}

	var free []model.Clock
	for c := int(day.Open); c < int(day.Close); c += step {
		clock := model.Clock(c)
		if !(model.Slot{Date: date, Time: clock}).At(loc).After(now) {
			continue
		}
		if _, ok := busy[clock]; ok {
			continue
		}
		free = append(free, clock)
	}
	return free
}
