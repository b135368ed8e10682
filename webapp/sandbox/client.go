package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phuslu/log"
)

/**
Result of a sandbox run. Defect is empty when the code ran cleanly.
*/
type Result struct {
	Defect string
}

func (r Result) Clean() bool {
	return r.Defect == ""
}

/**
Checker submits code to an isolated executor and reports whether it ran. An error return means the
executor itself could not be used; a defect in the code comes back in Result.
*/
type Checker interface {
	Check(ctx context.Context, jobId string, code string) (Result, error)
}

type triggerRequest struct {
	Uuid string `json:"uuid"`
	Code string `json:"code"`
}

/**
what the executor reports: Error carries manim's stderr when the code failed, ErrorMessage is set when the
executor itself went wrong
*/
type testResult struct {
	ErrorMessage string `json:"error_message"`
	Error        string `json:"error"`
}

type HTTPChecker struct {
	baseURL      string
	pollInterval time.Duration
	timeout      time.Duration
	httpClient   *http.Client
}

func NewHTTPChecker(baseURL string, pollInterval time.Duration, timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		baseURL:      strings.TrimRight(baseURL, "/"),
		pollInterval: pollInterval,
		timeout:      timeout,
		httpClient:   &http.Client{Timeout: timeout + 30*time.Second},
	}
}

func (c *HTTPChecker) Check(ctx context.Context, jobId string, code string) (Result, error) {
	body, _ := json.Marshal(triggerRequest{Uuid: jobId, Code: code})
	triggerReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/trigger-test-code", bytes.NewReader(body))
	if reqErr != nil {
		return Result{}, reqErr
	}
	triggerReq.Header.Set("Content-Type", "application/json")

	triggerResp, err := c.httpClient.Do(triggerReq)
	if err != nil {
		return Result{}, fmt.Errorf("could not trigger sandbox run: %w", err)
	}
	ioutil.ReadAll(triggerResp.Body)
	triggerResp.Body.Close()
	if triggerResp.StatusCode < 200 || triggerResp.StatusCode > 299 {
		return Result{}, fmt.Errorf("sandbox refused the run with status %d", triggerResp.StatusCode)
	}

	query := url.Values{}
	query.Set("poll_interval", fmt.Sprintf("%d", int(c.pollInterval/time.Second)))
	query.Set("timeout", fmt.Sprintf("%d", int(c.timeout/time.Second)))
	resultUrl := fmt.Sprintf("%s/result/test-code/%s?%s", c.baseURL, url.PathEscape(jobId), query.Encode())

	resultReq, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, resultUrl, nil)
	if reqErr != nil {
		return Result{}, reqErr
	}
	resultResp, err := c.httpClient.Do(resultReq)
	if err != nil {
		return Result{}, fmt.Errorf("could not retrieve sandbox result: %w", err)
	}
	defer resultResp.Body.Close()

	content, _ := ioutil.ReadAll(resultResp.Body)
	if resultResp.StatusCode != 200 {
		return Result{}, fmt.Errorf("sandbox result returned status %d: %s", resultResp.StatusCode, string(content))
	}

	var parsed testResult
	if unmarshalErr := json.Unmarshal(content, &parsed); unmarshalErr != nil {
		return Result{}, fmt.Errorf("could not understand sandbox result: %w", unmarshalErr)
	}

	defect := strings.TrimSpace(parsed.Error)
	if defect != "" {
		log.Debug().Str("uuid", jobId).Msgf("Sandbox reported a defect: %s", defect)
		return Result{Defect: defect}, nil
	}
	if executorErr := strings.TrimSpace(parsed.ErrorMessage); executorErr != "" {
		return Result{}, fmt.Errorf("sandbox could not run the code: %s", executorErr)
	}
	return Result{}, nil
}
