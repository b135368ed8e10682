package reaper

import (
	"errors"
	"time"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/renderservice/renderjobs"
	"github.com/phuslu/log"
	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "@every 1h"

/**
RunnerCleaner removes whatever a render left running on the CI side. Only the Kubernetes dispatcher has
anything to remove.
*/
type RunnerCleaner interface {
	RemoveRunners(renderId string) (int, error)
}

/**
Reaper periodically purges render records older than the retention window
*/
type Reaper struct {
	store     *renderjobs.Store
	retention time.Duration
	schedule  string
	cleaner   RunnerCleaner
	cron      *cron.Cron
}

func NewReaper(store *renderjobs.Store, config helpers.ReaperConfig, cleaner RunnerCleaner) (*Reaper, error) {
	if config.Retention <= 0 {
		return nil, errors.New("reaper retention must be positive")
	}
	schedule := config.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Reaper{
		store:     store,
		retention: config.Retention,
		schedule:  schedule,
		cleaner:   cleaner,
		cron:      cron.New(),
	}, nil
}

func (r *Reaper) Start() error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		r.RunOnce(time.Now())
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	log.Info().Msgf("Render reaper started on schedule '%s', keeping %s of renders", r.schedule, r.retention)
	return nil
}

func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
	log.Info().Msg("Render reaper stopped")
}

/**
RunOnce purges everything created more than the retention window before `now`. Returns the number of
records removed.
*/
func (r *Reaper) RunOnce(now time.Time) int {
	startTime := time.Now()
	cutoff := now.Add(-r.retention)
	log.Debug().Msgf("Reaping renders created before %s", cutoff.Format(time.RFC3339))

	purged, err := r.store.PurgeOlderThan(cutoff)
	if err != nil {
		log.Error().Msgf("Could not purge old renders: %s", err)
		return 0
	}

	if r.cleaner != nil {
		for _, renderId := range purged {
			if _, cleanErr := r.cleaner.RemoveRunners(renderId); cleanErr != nil {
				//not a fatal error
				log.Warn().Str("render_id", renderId).Msgf("Could not remove render runners: %s", cleanErr)
			}
		}
	}

	if len(purged) > 0 {
		log.Info().Msgf("Reaping run removed %d renders and took %s", len(purged), time.Since(startTime))
	}
	return len(purged)
}
