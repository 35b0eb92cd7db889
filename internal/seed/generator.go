// Package seed generates synthetic telemetry and bulk-loads it into
// PostgreSQL so the aggregator has data to work on in development.
package seed

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"telemetry-metrics-service/internal/model"
)

var (
	platforms  = []string{"iOS", "Android", "WebGL", "Windows", ""}
	eventNames = []string{"level_start", "level_complete", "purchase", "ad_watched", "tutorial_step"}
	countries  = []string{"TR", "US", "DE", "BR", "JP"}
)

// Options controls the shape of a generated dataset.
type Options struct {
	DevicesPerProject  int
	EventsPerDevice    int
	SessionsPerDevice  int
	Days               int
	NullDevicePercent  int
	OpenSessionPercent int
}

// Dataset is the telemetry of one project.
type Dataset struct {
	Project  model.Project
	Devices  []model.Device
	Events   []model.Event
	Sessions []model.Session
}

// Generate builds one project worth of telemetry spread over the opts.Days
// UTC days ending at now.
func Generate(rng *rand.Rand, opts Options, now time.Time) Dataset {
	now = now.UTC()
	first := model.DayOf(now).Start.AddDate(0, 0, -max(opts.Days-1, 0))
	span := now.Sub(first)
	randomTime := func() time.Time {
		if span <= 0 {
			return now
		}
		return first.Add(time.Duration(rng.Int64N(int64(span))))
	}

	project := model.Project{
		ID:        uuid.New(),
		Name:      fmt.Sprintf("game-%04d", rng.IntN(10000)),
		OwnerID:   uuid.New(),
		APIKey:    uuid.NewString(),
		CreatedAt: first,
		UpdatedAt: first,
	}
	ds := Dataset{Project: project}

	for d := 0; d < opts.DevicesPerProject; d++ {
		device := model.Device{
			ID:         uuid.New(),
			ProjectID:  project.ID,
			DeviceID:   fmt.Sprintf("dev-%d-%d", d, rng.IntN(1_000_000)),
			Platform:   platforms[rng.IntN(len(platforms))],
			OSVersion:  fmt.Sprintf("%d.%d", 10+rng.IntN(8), rng.IntN(10)),
			AppVersion: fmt.Sprintf("1.%d.%d", rng.IntN(5), rng.IntN(20)),
			Country:    countries[rng.IntN(len(countries))],
			FirstSeen:  first,
			LastSeen:   now,
		}
		ds.Devices = append(ds.Devices, device)

		for e := 0; e < opts.EventsPerDevice; e++ {
			event := model.Event{
				ID:         uuid.New(),
				ProjectID:  project.ID,
				EventType:  model.EventCustom,
				EventName:  eventNames[rng.IntN(len(eventNames))],
				Parameters: fmt.Sprintf(`{"score":%d}`, rng.IntN(1000)),
				Timestamp:  randomTime(),
			}
			if rng.IntN(100) >= opts.NullDevicePercent {
				event.DeviceID = uuid.NullUUID{UUID: device.ID, Valid: true}
			}
			ds.Events = append(ds.Events, event)
		}

		for s := 0; s < opts.SessionsPerDevice; s++ {
			session := model.Session{
				ID:        uuid.New(),
				DeviceID:  device.ID,
				SessionID: uuid.NewString(),
				StartTime: randomTime(),
			}
			if rng.IntN(100) >= opts.OpenSessionPercent {
				duration := int64(30 + rng.IntN(1800))
				end := session.StartTime.Add(time.Duration(duration) * time.Second)
				session.EndTime = &end
				session.Duration = &duration
			}
			ds.Sessions = append(ds.Sessions, session)
		}
	}

	return ds
}
