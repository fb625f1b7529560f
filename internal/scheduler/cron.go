package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/plx/internal/shared"
	"github.com/robfig/cron/v3"
)

// Parse validates a standard five-field cron expression (minute, hour, day of month, month, day of week).
func Parse(expr string) (cron.Schedule, error) {
	if len(strings.Fields(expr)) != 5 {
		return nil, fmt.Errorf("%w: cron expression must have five fields: %q", shared.ErrValidation, expr)
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cron expression %q: %v", shared.ErrValidation, expr, err)
	}
	return sched, nil
}

// Next returns the first activation of expr strictly after t.
func Next(expr string, t time.Time) (time.Time, error) {
	sched, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(t), nil
}

// FrequencyKind names a simple schedule shape.
type FrequencyKind string

const (
	Hourly   FrequencyKind = "hourly"
	Interval FrequencyKind = "interval"
	Daily    FrequencyKind = "daily"
	Weekly   FrequencyKind = "weekly"
	Monthly  FrequencyKind = "monthly"
)

// Frequency is the simplified view of a cron expression used by the schedule forms.
//
// The cron expression stays canonical. Expressions that fit none of the shapes decompose to daily at
// 00:00 with Lossy set, and composing that value back would overwrite the original expression.
type Frequency struct {
	Kind     FrequencyKind `json:"kind"`
	Interval int           `json:"interval,omitempty"` // hours, for Interval
	Minute   int           `json:"minute"`
	Hour     int           `json:"hour"`
	Weekday  time.Weekday  `json:"weekday,omitempty"`
	Day      int           `json:"day,omitempty"` // day of month, for Monthly
	Lossy    bool          `json:"lossy,omitempty"`
}

// Cron composes the cron expression for f.
func (f Frequency) Cron() (string, error) {
	if f.Minute < 0 || f.Minute > 59 {
		return "", fmt.Errorf("%w: minute out of range: %d", shared.ErrValidation, f.Minute)
	}
	if f.Kind != Hourly && f.Kind != Interval && (f.Hour < 0 || f.Hour > 23) {
		return "", fmt.Errorf("%w: hour out of range: %d", shared.ErrValidation, f.Hour)
	}

	switch f.Kind {
	case Hourly:
		return fmt.Sprintf("%d * * * *", f.Minute), nil
	case Interval:
		if f.Interval < 1 || f.Interval > 23 {
			return "", fmt.Errorf("%w: interval must be between 1 and 23 hours: %d", shared.ErrValidation, f.Interval)
		}
		return fmt.Sprintf("%d */%d * * *", f.Minute, f.Interval), nil
	case Daily:
		return fmt.Sprintf("%d %d * * *", f.Minute, f.Hour), nil
	case Weekly:
		if f.Weekday < time.Sunday || f.Weekday > time.Saturday {
			return "", fmt.Errorf("%w: weekday out of range: %d", shared.ErrValidation, f.Weekday)
		}
		return fmt.Sprintf("%d %d * * %d", f.Minute, f.Hour, f.Weekday), nil
	case Monthly:
		if f.Day < 1 || f.Day > 31 {
			return "", fmt.Errorf("%w: day of month out of range: %d", shared.ErrValidation, f.Day)
		}
		return fmt.Sprintf("%d %d %d * *", f.Minute, f.Hour, f.Day), nil
	default:
		return "", fmt.Errorf("%w: unknown frequency %q", shared.ErrValidation, f.Kind)
	}
}

func (f Frequency) String() string {
	at := fmt.Sprintf("%02d:%02d", f.Hour, f.Minute)
	switch f.Kind {
	case Hourly:
		return fmt.Sprintf("hourly at :%02d", f.Minute)
	case Interval:
		if f.Interval == 1 {
			return "every hour"
		}
		return fmt.Sprintf("every %d hours", f.Interval)
	case Weekly:
		return fmt.Sprintf("weekly on %s at %s", f.Weekday, at)
	case Monthly:
		return fmt.Sprintf("monthly on day %d at %s", f.Day, at)
	default:
		return "daily at " + at
	}
}

// Decompose maps a cron expression onto the simple shapes.
func Decompose(expr string) Frequency {
	fallback := Frequency{Kind: Daily, Lossy: true}

	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return fallback
	}
	minute, ok := number(fields[0], 0, 59)
	if !ok {
		return fallback
	}
	hourField, dom, month, dow := fields[1], fields[2], fields[3], fields[4]
	if month != "*" {
		return fallback
	}

	if dom == "*" && dow == "*" {
		if hourField == "*" {
			return Frequency{Kind: Hourly, Minute: minute}
		}
		if step, found := strings.CutPrefix(hourField, "*/"); found {
			if n, ok := number(step, 1, 23); ok {
				return Frequency{Kind: Interval, Interval: n, Minute: minute}
			}
			return fallback
		}
	}

	hour, ok := number(hourField, 0, 23)
	if !ok {
		return fallback
	}
	switch {
	case dom == "*" && dow == "*":
		return Frequency{Kind: Daily, Minute: minute, Hour: hour}
	case dom == "*":
		if d, ok := number(dow, 0, 7); ok {
			return Frequency{Kind: Weekly, Minute: minute, Hour: hour, Weekday: time.Weekday(d % 7)}
		}
	case dow == "*":
		if d, ok := number(dom, 1, 31); ok {
			return Frequency{Kind: Monthly, Minute: minute, Hour: hour, Day: d}
		}
	}
	return fallback
}

func number(s string, lo, hi int) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}
