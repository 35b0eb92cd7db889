package service

import (
	"time"

	"github.com/google/uuid"

	"telemetry-metrics-service/internal/model"
)

// Result is the outcome of a metric computation. Empty means there was no
// input to aggregate and nothing should be written.
type Result struct {
	Value float64
	Empty bool
}

// SessionSummary is the outcome of SessionStats.
type SessionSummary struct {
	Count       Result
	AvgDuration Result
}

// DayWindow returns [UTC midnight of now, next UTC midnight).
func DayWindow(now time.Time) model.Window {
	return model.DayOf(now)
}

// MonthWindow returns [first of now's month, first of the following month).
func MonthWindow(now time.Time) model.Window {
	return model.MonthOf(now)
}

// CountDistinctDevices counts distinct non-null device references.
func CountDistinctDevices(events []model.Event) Result {
	seen := make(map[uuid.UUID]struct{}, len(events))
	for _, e := range events {
		if e.DeviceID.Valid {
			seen[e.DeviceID.UUID] = struct{}{}
		}
	}
	return Result{Value: float64(len(seen))}
}

// SessionStats counts completed sessions and averages their duration in
// seconds. Both results are Empty when no session is completed.
func SessionStats(sessions []model.Session) SessionSummary {
	var count, total int64
	for _, s := range sessions {
		if !s.Completed() {
			continue
		}
		count++
		total += *s.Duration
	}

	if count == 0 {
		return SessionSummary{
			Count:       Result{Empty: true},
			AvgDuration: Result{Empty: true},
		}
	}

	return SessionSummary{
		Count:       Result{Value: float64(count)},
		AvgDuration: Result{Value: float64(total) / float64(count)},
	}
}

// PlatformBreakdown counts device-bearing events per non-empty platform.
// ok is false when no event qualifies.
func PlatformBreakdown(events []model.Event) (dims model.PlatformDimensions, ok bool) {
	counts := make(map[string]int64)
	for _, e := range events {
		if !e.DeviceID.Valid || e.Platform == "" {
			continue
		}
		counts[e.Platform]++
	}
	if len(counts) == 0 {
		return model.PlatformDimensions{}, false
	}
	return model.PlatformDimensions{Platforms: counts}, true
}
