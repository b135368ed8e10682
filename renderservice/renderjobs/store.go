package renderjobs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/common/models"
	"github.com/phuslu/log"
	"github.com/timshannon/badgerhold/v4"
)

var ErrNotFound = errors.New("render job not found")
var ErrDuplicate = errors.New("render job already exists")
var ErrAlreadyTerminal = errors.New("render job is already finished")

/**
one render the service has accepted, keyed by the caller's render uuid
*/
type RenderJob struct {
	Uuid        string           `json:"uuid" badgerhold:"key"`
	Status      models.JobStatus `json:"status" badgerhold:"index"`
	Code        string           `json:"-"`
	SceneName   string           `json:"scene_name"`
	Quality     string           `json:"quality"`
	VideoUrl    string           `json:"video_url,omitempty"`
	PublicId    string           `json:"public_id,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

/**
Outcome carries what a renderer reports back when it finishes
*/
type Outcome struct {
	Status      models.JobStatus
	VideoUrl    string
	PublicId    string
	Error       string
	CompletedAt *time.Time
}

/**
Store is the render service's job table. Read-modify-write operations are serialised on a mutex so that a
webhook and a dispatch result for the same job cannot interleave.
*/
type Store struct {
	store *badgerhold.Store
	mutex sync.Mutex
}

func Open(config helpers.StoreConfig) (*Store, error) {
	options := badgerhold.DefaultOptions
	if config.InMemory {
		options.Options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if config.Path == "" {
			return nil, errors.New("no store path configured")
		}
		options.Dir = config.Path
		options.ValueDir = config.Path
	}
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open render job store: %w", err)
	}
	if config.InMemory {
		log.Info().Msg("Render job store opened in memory")
	} else {
		log.Info().Msgf("Render job store opened at %s", config.Path)
	}
	return &Store{store: store}, nil
}

func (s *Store) Close() error {
	return s.store.Close()
}

/**
Insert records a new job as PENDING. A second insert with the same uuid gives ErrDuplicate.
*/
func (s *Store) Insert(job *RenderJob) error {
	if job.Uuid == "" {
		return errors.New("render job uuid is required")
	}
	now := time.Now().UTC()
	job.Status = models.JOB_PENDING
	job.CreatedAt = now
	job.UpdatedAt = now
	job.CompletedAt = nil

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.store.Insert(job.Uuid, *job); err != nil {
		if err == badgerhold.ErrKeyExists {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to save render job: %w", err)
	}
	return nil
}

func (s *Store) get(uuid string) (*RenderJob, error) {
	var job RenderJob
	if err := s.store.Get(uuid, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get render job: %w", err)
	}
	return &job, nil
}

func (s *Store) Get(uuid string) (*RenderJob, error) {
	return s.get(uuid)
}

/**
applies `modify` to the stored job and writes it back, unless the job is already terminal
*/
func (s *Store) update(uuid string, modify func(job *RenderJob)) (*RenderJob, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, err := s.get(uuid)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, ErrAlreadyTerminal
	}

	modify(job)
	job.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(uuid, *job); err != nil {
		return nil, fmt.Errorf("failed to update render job: %w", err)
	}
	return job, nil
}

/**
MarkProcessing moves a PENDING job on once it has been handed to a renderer. A job whose webhook already
arrived is left alone.
*/
func (s *Store) MarkProcessing(uuid string) (*RenderJob, error) {
	return s.update(uuid, func(job *RenderJob) {
		if job.Status == models.JOB_PENDING {
			job.Status = models.JOB_PROCESSING
		}
	})
}

func (s *Store) MarkFailed(uuid string, message string) (*RenderJob, error) {
	return s.update(uuid, func(job *RenderJob) {
		completedAt := time.Now().UTC()
		job.Status = models.JOB_FAILED
		job.Error = message
		job.CompletedAt = &completedAt
	})
}

/**
Complete records the renderer's final report. Only COMPLETED or FAILED are accepted, and a job that is
already terminal keeps its first outcome.
*/
func (s *Store) Complete(uuid string, outcome Outcome) (*RenderJob, error) {
	if !outcome.Status.IsTerminal() {
		return nil, fmt.Errorf("'%s' is not a final render status", outcome.Status)
	}
	return s.update(uuid, func(job *RenderJob) {
		completedAt := time.Now().UTC()
		if outcome.CompletedAt != nil {
			completedAt = outcome.CompletedAt.UTC()
		}
		job.Status = outcome.Status
		job.CompletedAt = &completedAt
		if outcome.Status == models.JOB_COMPLETED {
			job.VideoUrl = outcome.VideoUrl
			job.PublicId = outcome.PublicId
			job.Error = ""
		} else {
			job.Error = outcome.Error
			if job.Error == "" {
				job.Error = "render failed"
			}
		}
	})
}

/**
List returns every job, newest first
*/
func (s *Store) List() ([]RenderJob, error) {
	var jobs []RenderJob
	if err := s.store.Find(&jobs, nil); err != nil {
		return nil, fmt.Errorf("failed to list render jobs: %w", err)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

func (s *Store) CountByStatus(status models.JobStatus) (int, error) {
	count, err := s.store.Count(&RenderJob{}, badgerhold.Where("Status").Eq(status))
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *Store) Delete(uuid string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.store.Delete(uuid, RenderJob{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete render job: %w", err)
	}
	return nil
}

/**
PurgeOlderThan removes every job created before the cutoff and returns the uuids that went
*/
func (s *Store) PurgeOlderThan(cutoff time.Time) ([]string, error) {
	jobs, err := s.List()
	if err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	purged := make([]string, 0)
	for _, job := range jobs {
		if !job.CreatedAt.Before(cutoff) {
			continue
		}
		if delErr := s.store.Delete(job.Uuid, RenderJob{}); delErr != nil && delErr != badgerhold.ErrNotFound {
			log.Warn().Str("render_id", job.Uuid).Msgf("Could not purge render job: %s", delErr)
			continue
		}
		purged = append(purged, job.Uuid)
	}
	return purged, nil
}
