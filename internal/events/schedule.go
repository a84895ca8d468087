package events

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "evsched/internal/log"
)

var resyncParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ScheduleResync runs s.Resync on the given five-field cron spec until ctx is
// done. Each run is bounded by timeout. An empty spec returns a nil Cron and
// no error. The caller stops the returned Cron on shutdown.
func ScheduleResync(ctx context.Context, s *Service, spec string, loc *time.Location, timeout time.Duration) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := cron.New(cron.WithParser(resyncParser), cron.WithLocation(loc))
	_, err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := s.Resync(runCtx); err != nil {
			appLog.Error("scheduled resync failed", err, "spec", spec)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("resync schedule %q: %w", spec, err)
	}

	c.Start()
	appLog.Info("resync scheduled", "spec", spec, "tz", loc.String())
	return c, nil
}
