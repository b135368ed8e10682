package jobrunner

import (
	"net/http"

	"github.com/guardian/enginimate/common/helpers"
)

type RunnerStats struct {
	Status     string `json:"status"`
	ActiveRuns int    `json:"active_runs"`
	Queued     int    `json:"queued"`
}

type StatsHandler struct {
	runner *JobRunner
}

func (h StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !helpers.AssertHttpMethod(r, w, "GET") {
		return
	}
	helpers.WriteJsonContent(RunnerStats{
		Status:     "ok",
		ActiveRuns: h.runner.ActiveRuns(),
		Queued:     h.runner.QueueDepth(),
	}, w, 200)
}

type JobRunnerEndpoints struct {
	Stats StatsHandler
}

func NewJobRunnerEndpoints(runner *JobRunner) JobRunnerEndpoints {
	return JobRunnerEndpoints{
		Stats: StatsHandler{runner: runner},
	}
}

func (e JobRunnerEndpoints) WireUp(mux *http.ServeMux) {
	mux.Handle("/runner/stats", e.Stats)
}
