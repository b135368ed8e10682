package renderclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/common/models"
	"github.com/h2non/filetype"
	"github.com/phuslu/log"
)

const maxTransientPollFailures = 5

type Result struct {
	Url      string
	PublicId string
}

/**
Dispatcher hands generated code to the render service and waits, bounded, for the finished video
*/
type Dispatcher interface {
	Render(ctx context.Context, renderId uuid.UUID, code string, sceneName string) (*Result, error)
}

type HTTPDispatcher struct {
	baseURL         string
	quality         string
	pollInterval    time.Duration
	waitChunk       time.Duration
	timeout         time.Duration
	triggerAttempts int
	triggerBackoff  time.Duration
	verifyAsset     bool
	httpClient      *http.Client
}

func NewHTTPDispatcher(config helpers.RenderConfig) *HTTPDispatcher {
	waitChunk := config.WaitChunk
	if waitChunk <= 0 {
		waitChunk = 60 * time.Second
	}
	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &HTTPDispatcher{
		baseURL:         strings.TrimRight(config.ServiceURL, "/"),
		quality:         config.Quality,
		pollInterval:    pollInterval,
		waitChunk:       waitChunk,
		timeout:         config.Timeout,
		triggerAttempts: 3,
		triggerBackoff:  1 * time.Second,
		verifyAsset:     config.VerifyAsset,
		httpClient:      &http.Client{Timeout: waitChunk + 30*time.Second},
	}
}

func (d *HTTPDispatcher) Render(ctx context.Context, renderId uuid.UUID, code string, sceneName string) (*Result, error) {
	triggerErr := d.trigger(ctx, renderId, code, sceneName)
	if triggerErr != nil {
		return nil, triggerErr
	}

	result, err := d.awaitResult(ctx, renderId)
	if err != nil {
		return nil, err
	}

	if d.verifyAsset {
		if verifyErr := d.checkAsset(ctx, result.Url); verifyErr != nil {
			return nil, verifyErr
		}
	}
	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

/**
posts the trigger request, retrying transport errors and 5xx responses that are not dispatch failures.
A 409 on a retry means an earlier attempt got through before its response was lost.
*/
func (d *HTTPDispatcher) trigger(ctx context.Context, renderId uuid.UUID, code string, sceneName string) error {
	body, _ := json.Marshal(models.RenderTriggerRequest{
		Uuid:      renderId.String(),
		Code:      code,
		SceneName: sceneName,
		Quality:   d.quality,
	})

	var lastErr error
	for attempt := 1; attempt <= d.triggerAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, d.triggerBackoff); err != nil {
				return err
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/trigger-rendering", bytes.NewReader(body))
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Str("render_id", renderId.String()).Msgf("Could not reach render service on attempt %d: %s", attempt, err)
			lastErr = err
			continue
		}

		content, _ := ioutil.ReadAll(resp.Body)
		resp.Body.Close()

		var parsed models.RenderTriggerResponse
		json.Unmarshal(content, &parsed)

		switch {
		case resp.StatusCode == 200 && parsed.Success:
			log.Info().Str("render_id", renderId.String()).Msgf("Render dispatched, status %s", parsed.Status)
			return nil
		case resp.StatusCode == 409 && attempt > 1:
			log.Info().Str("render_id", renderId.String()).Msg("Render already known after retry, an earlier attempt was accepted")
			return nil
		case resp.StatusCode == 502 || resp.StatusCode == 409 || (resp.StatusCode >= 400 && resp.StatusCode < 500):
			return &DispatchFailure{StatusCode: resp.StatusCode, Message: parsed.Message}
		case resp.StatusCode >= 500:
			log.Warn().Str("render_id", renderId.String()).Msgf("Render service unavailable on attempt %d (got a %d response)", attempt, resp.StatusCode)
			lastErr = fmt.Errorf("render service returned %d", resp.StatusCode)
		default:
			return &DispatchFailure{StatusCode: resp.StatusCode, Message: parsed.Message}
		}
	}
	return &DispatchFailure{Message: fmt.Sprintf("render service unreachable after %d attempts: %s", d.triggerAttempts, lastErr)}
}

/**
long-polls the render result in chunks until it is terminal or the overall deadline passes
*/
func (d *HTTPDispatcher) awaitResult(ctx context.Context, renderId uuid.UUID) (*Result, error) {
	deadline := time.Now().Add(d.timeout)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	transientFailures := 0
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrWaitTimeout
		}
		chunk := d.waitChunk
		if remaining < chunk {
			chunk = remaining
		}

		result, done, err := d.pollOnce(waitCtx, renderId, chunk)
		switch {
		case err == ErrRenderUnknown:
			return nil, err
		case done:
			if err != nil {
				return nil, err
			}
			return result, nil
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if waitCtx.Err() != nil {
				return nil, ErrWaitTimeout
			}
			transientFailures += 1
			log.Warn().Str("render_id", renderId.String()).Msgf("Render status poll failed (%d/%d): %s", transientFailures, maxTransientPollFailures, err)
			if transientFailures >= maxTransientPollFailures {
				return nil, fmt.Errorf("render status unavailable: %w", err)
			}
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrWaitTimeout
		case <-ticker.C:
		}
	}
}

/**
one GET /render-result call. done is true once the render is terminal; a failed render comes back as RenderFailed
*/
func (d *HTTPDispatcher) pollOnce(ctx context.Context, renderId uuid.UUID, chunk time.Duration) (*Result, bool, error) {
	seconds := int(math.Ceil(chunk.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	resultUrl := fmt.Sprintf("%s/render-result/%s?wait=true&timeout=%d", d.baseURL, renderId.String(), seconds)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, resultUrl, nil)
	if reqErr != nil {
		return nil, false, reqErr
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	content, _ := ioutil.ReadAll(resp.Body)

	switch resp.StatusCode {
	case 200:
		var parsed models.RenderResultResponse
		if unmarshalErr := json.Unmarshal(content, &parsed); unmarshalErr != nil {
			return nil, false, unmarshalErr
		}
		switch parsed.Status {
		case models.JOB_COMPLETED:
			return &Result{Url: parsed.VideoUrl, PublicId: parsed.PublicId}, true, nil
		case models.JOB_FAILED:
			return nil, true, &RenderFailed{Message: parsed.Error}
		default:
			return nil, false, nil
		}
	case 408:
		return nil, false, nil
	case 404:
		return nil, false, ErrRenderUnknown
	default:
		return nil, false, fmt.Errorf("render service returned %d: %s", resp.StatusCode, string(content))
	}
}

/**
fetches the first bytes of the rendered asset and checks that it really is a video
*/
func (d *HTTPDispatcher) checkAsset(ctx context.Context, assetUrl string) error {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, assetUrl, nil)
	if reqErr != nil {
		return &RenderFailed{Message: fmt.Sprintf("invalid video url '%s'", assetUrl)}
	}
	req.Header.Set("Range", "bytes=0-511")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		log.Warn().Msgf("Could not fetch %s to verify it, trusting the url: %s", assetUrl, err)
		if helpers.AssetTypeForUrl(assetUrl) != helpers.ASSET_TYPE_VIDEO {
			return &RenderFailed{Message: "rendered asset does not look like a video"}
		}
		return nil
	}
	defer resp.Body.Close()

	head, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 512))
	if !filetype.IsVideo(head) {
		return &RenderFailed{Message: "rendered asset is not a video"}
	}
	return nil
}
