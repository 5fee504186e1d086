// internal/janitor/janitor.go
package janitor

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/stashbot/internal/session"
)

// Janitor periodically sweeps sessions stuck mid-flow, resetting them to
// idle and discarding any pending (unfiled) references. An abandoned filing
// flow is the only way a pending reference outlives the user walking away.
type Janitor struct {
	sessions *session.Store
	schedule string
	ttl      time.Duration
	cron     *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Janitor that sweeps on the given cron schedule, resetting
// sessions idle-ward once they have been stuck longer than ttl.
func New(sessions *session.Store, schedule string, ttl time.Duration) *Janitor {
	return &Janitor{
		sessions: sessions,
		schedule: schedule,
		ttl:      ttl,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the sweep and starts the cron ticker.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		if swept := j.sessions.SweepStale(j.ttl); swept > 0 {
			slog.Info("swept stale sessions", "count", swept, "ttl", j.ttl.String())
		}
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop stops the cron ticker.
func (j *Janitor) Stop() {
	j.cron.Stop()
}
