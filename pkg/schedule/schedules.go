package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule computes the next activation time after from.
type Schedule interface {
	Next(from time.Time) time.Time
}

// parser accepts standard 5-field expressions and descriptors such as
// @daily and @every.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type everySchedule struct {
	interval time.Duration
}

// Every creates a schedule that runs at fixed intervals.
func Every(d time.Duration) Schedule {
	return everySchedule{interval: d}
}

func (s everySchedule) Next(from time.Time) time.Time {
	return from.Add(s.interval)
}

// ClockSchedule fires at a wall-clock time, daily or on one weekday.
type ClockSchedule struct {
	hour, minute int
	weekly       bool
	day          time.Weekday
	loc          *time.Location
}

// Daily fires every day at hour:minute UTC.
func Daily(hour, minute int) ClockSchedule {
	return ClockSchedule{hour: hour, minute: minute, loc: time.UTC}
}

// Weekly fires every week on day at hour:minute UTC.
func Weekly(day time.Weekday, hour, minute int) ClockSchedule {
	return ClockSchedule{hour: hour, minute: minute, weekly: true, day: day, loc: time.UTC}
}

// In returns the schedule evaluated in loc instead of UTC.
func (s ClockSchedule) In(loc *time.Location) ClockSchedule {
	s.loc = loc
	return s
}

// Next returns the first matching time strictly after from.
func (s ClockSchedule) Next(from time.Time) time.Time {
	from = from.In(s.loc)
	days := 0
	if s.weekly {
		days = (int(s.day) - int(from.Weekday()) + 7) % 7
	}
	next := time.Date(from.Year(), from.Month(), from.Day()+days, s.hour, s.minute, 0, 0, s.loc)
	if next.After(from) {
		return next
	}
	if s.weekly {
		return next.AddDate(0, 0, 7)
	}
	return next.AddDate(0, 0, 1)
}

// Parse parses a cron expression or descriptor.
func Parse(expr string) (Schedule, error) {
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return s, nil
}

// Cron creates a schedule from a cron expression. It panics if expr is
// invalid; use Parse for untrusted input.
func Cron(expr string) Schedule {
	s, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}
