package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/google/uuid"
	"github.com/phuslu/log"
)

var ErrNotFound = errors.New("job not found")
var ErrSuperseded = errors.New("job record belongs to a newer run")
var ErrTerminal = errors.New("job record is already in a terminal state")
var ErrBadTransition = errors.New("status transition is not allowed")

const DefaultJobTTL = 4 * time.Hour

/**
deletes any existing record and writes a fresh one, with expiry, in one step.
KEYS[1] = record key
ARGV = uuid, status, query, run_id, timestamp, ttl seconds
*/
const createScript = `
redis.call('DEL', KEYS[1])
redis.call('HMSET', KEYS[1], 'uuid', ARGV[1], 'status', ARGV[2], 'query', ARGV[3], 'run_id', ARGV[4],
  'created_at', ARGV[5], 'updated_at', ARGV[5], 'url', '', 'error', '')
redis.call('EXPIRE', KEYS[1], ARGV[6])
return 1
`

/**
compare-and-set on run_id plus the status ordering check.
KEYS[1] = record key
ARGV = run_id, new status, new status rank, url, error, timestamp
returns 1 on success, -1 not found, -2 superseded, -3 terminal, -4 illegal transition
*/
const transitionScript = `
local cur = redis.call('HMGET', KEYS[1], 'run_id', 'status')
if not cur[1] then return -1 end
if cur[1] ~= ARGV[1] then return -2 end
local ranks = {pending=0, processing=1, completed=2, failed=2}
local curRank = ranks[cur[2]]
if curRank == nil then curRank = -1 end
if curRank == 2 then return -3 end
if tonumber(ARGV[3]) <= curRank then return -4 end
redis.call('HMSET', KEYS[1], 'status', ARGV[2], 'url', ARGV[4], 'error', ARGV[5], 'updated_at', ARGV[6])
return 1
`

/**
JobStore keeps job records as redis hashes, one per uuid, each with an expiry
*/
type JobStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewJobStore(client redis.Cmdable, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &JobStore{client: client, ttl: ttl}
}

func jobKey(jobId uuid.UUID) string {
	return fmt.Sprintf("enginimate:job:%s", jobId.String())
}

/**
replaces any record for the given uuid with a new PENDING one owned by runId
*/
func (s *JobStore) Create(jobId uuid.UUID, query string, runId string) (*JobRecord, error) {
	now := time.Now().UTC().Truncate(time.Second)
	_, err := s.client.Eval(createScript, []string{jobKey(jobId)},
		jobId.String(), string(JOB_PENDING), query, runId, now.Format(time.RFC3339), int64(s.ttl/time.Second)).Result()
	if err != nil {
		log.Error().Str("uuid", jobId.String()).Msgf("Could not create job record: %s", err)
		return nil, err
	}

	return &JobRecord{
		Uuid:      jobId,
		Status:    JOB_PENDING,
		Query:     query,
		RunId:     runId,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

/**
moves the record to newStatus, provided runId still owns it and the move goes forwards
*/
func (s *JobStore) Transition(jobId uuid.UUID, runId string, newStatus JobStatus, url string, errorMessage string) error {
	if !newStatus.IsValid() {
		return ErrBadTransition
	}
	now := time.Now().UTC().Truncate(time.Second)
	result, err := s.client.Eval(transitionScript, []string{jobKey(jobId)},
		runId, string(newStatus), newStatus.rank(), url, errorMessage, now.Format(time.RFC3339)).Result()
	if err != nil {
		return err
	}

	code, isInt := result.(int64)
	if !isInt {
		return fmt.Errorf("unexpected response from transition script: %v", result)
	}
	switch code {
	case 1:
		return nil
	case -1:
		return ErrNotFound
	case -2:
		return ErrSuperseded
	case -3:
		return ErrTerminal
	default:
		return ErrBadTransition
	}
}

func (s *JobStore) MarkProcessing(jobId uuid.UUID, runId string) error {
	return s.Transition(jobId, runId, JOB_PROCESSING, "", "")
}

func (s *JobStore) MarkCompleted(jobId uuid.UUID, runId string, url string) error {
	return s.Transition(jobId, runId, JOB_COMPLETED, url, "")
}

func (s *JobStore) MarkFailed(jobId uuid.UUID, runId string, errorMessage string) error {
	return s.Transition(jobId, runId, JOB_FAILED, "", errorMessage)
}

func (s *JobStore) Get(jobId uuid.UUID) (*JobRecord, error) {
	content, err := s.client.HGetAll(jobKey(jobId)).Result()
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, ErrNotFound
	}
	return JobRecordFromMap(content)
}

func (s *JobStore) Delete(jobId uuid.UUID) error {
	return s.client.Del(jobKey(jobId)).Err()
}

func JobRecordFromMap(content map[string]string) (*JobRecord, error) {
	var rec JobRecord
	decodeErr := decodeRecordHash(content, &rec)
	if decodeErr != nil {
		log.Error().Msgf("Could not decode job record %v: %s", content, decodeErr)
		return nil, decodeErr
	}
	return &rec, nil
}
