package queue

import (
	"context"

	"github.com/robfig/cron/v3"
)

// PeriodicTrigger schedules the ≤60s-cadence external scan trigger
// (§6's "Scheduler trigger") using robfig/cron/v3, the same scheduling
// library the pack carries for its own periodic jobs.
type PeriodicTrigger struct {
	cron *cron.Cron
}

// NewPeriodicTrigger wires a cron schedule (e.g. "@every 30s") to
// publish an untargeted (full-scan) TriggerMessage.
func NewPeriodicTrigger(spec string, pub Publisher) (*PeriodicTrigger, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		_ = pub.PublishTrigger(context.Background(), TriggerMessage{})
	})
	if err != nil {
		return nil, err
	}
	return &PeriodicTrigger{cron: c}, nil
}

func (t *PeriodicTrigger) Start() { t.cron.Start() }
func (t *PeriodicTrigger) Stop()  { t.cron.Stop() }
