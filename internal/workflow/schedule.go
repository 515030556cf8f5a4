package workflow

import (
	"strconv"
	"strings"
	"time"
)

// NonWaitDelay is the grace period before a non-wait step fires.
const NonWaitDelay = 60 * time.Second

// Delay is the total wait encoded in the config.
func (c StepConfig) Delay() time.Duration {
	mins := c.DelayMinutes + 60*c.DelayHours + 1440*c.DelayDays
	return time.Duration(mins) * time.Minute
}

// NextActionAt computes when step should fire after now.
//
// Wait steps add their delay and, when time_of_day is set, snap to that wall
// clock time in loc, rolling to the next day if the snapped time is earlier
// than the computed one. Invalid time_of_day values are ignored.
func NextActionAt(step Step, now time.Time, loc *time.Location) time.Time {
	if !step.Type.Is(StepWait) {
		return now.Add(NonWaitDelay)
	}
	target := now.Add(step.Config.Delay())
	hh, mm, ok := parseTimeOfDay(step.Config.TimeOfDay)
	if !ok {
		return target
	}
	if loc == nil {
		loc = time.UTC
	}
	local := target.In(loc)
	snapped := time.Date(local.Year(), local.Month(), local.Day(), hh, mm, 0, 0, loc)
	if snapped.Before(local) {
		snapped = snapped.AddDate(0, 0, 1)
	}
	return snapped
}

func parseTimeOfDay(s string) (int, int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, 0, false
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return 0, 0, false
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, 0, false
	}
	return hh, mm, true
}
