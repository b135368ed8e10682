package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/guardian/enginimate/common/models"
	"github.com/phuslu/log"
)

func GetMaxRetries() (int, error) {
	stringVal := os.Getenv("MAX_RETRIES")
	if stringVal == "" {
		return 10, nil //default value
	}
	value, err := strconv.ParseInt(stringVal, 10, 16)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("invalid value for MAX_RETRIES '%s'", stringVal)
	}
	return int(value), nil
}

/**
builds the render-complete report from the environment. A completed render must have a video url; a
failed one gets a default message if the pipeline gave none.
*/
func ReportFromEnv(getenv func(string) string) (*models.RenderWebhookPayload, error) {
	report := &models.RenderWebhookPayload{
		Uuid:     getenv("RENDER_UUID"),
		Status:   models.JobStatus(getenv("RENDER_STATUS")),
		VideoUrl: getenv("VIDEO_URL"),
		PublicId: getenv("PUBLIC_ID"),
		Error:    getenv("RENDER_ERROR"),
	}
	if report.Uuid == "" {
		return nil, errors.New("RENDER_UUID is not set")
	}

	switch report.Status {
	case models.JOB_COMPLETED:
		if report.VideoUrl == "" {
			return nil, errors.New("a completed render needs VIDEO_URL")
		}
		report.Error = ""
	case models.JOB_FAILED:
		if report.Error == "" {
			report.Error = "render failed without a message"
		}
		report.VideoUrl = ""
		report.PublicId = ""
	default:
		return nil, fmt.Errorf("RENDER_STATUS '%s' is not recognised", report.Status)
	}

	completedAt := time.Now().UTC()
	report.CompletedAt = &completedAt
	return report, nil
}

/**
we expect the following environment variables to be set:
RENDER_UUID={uuid-string}
RENDER_STATUS={completed|failed}
VIDEO_URL={url-string}      [completed only]
PUBLIC_ID={string}          [completed only, optional]
RENDER_ERROR={string}       [failed only]
WEBHOOK_URL={url-string}    [the render service's /webhook/render-complete]
WEBHOOK_SECRET={string}
MAX_RETRIES={count}
*/
func main() {
	videoFilePtr := flag.String("video", "", "rendered file to check before reporting a completed render")
	flag.Parse()
	helpers.SetupLogging(os.Getenv("LOG_LEVEL"), true)

	maxTries, retriesErr := GetMaxRetries()
	if retriesErr != nil {
		log.Fatal().Msgf("%s", retriesErr)
	}
	log.Info().Msgf("Max retries set to %d", maxTries)

	webhookUrl := os.Getenv("WEBHOOK_URL")
	secret := os.Getenv("WEBHOOK_SECRET")
	if webhookUrl == "" || secret == "" {
		log.Fatal().Msgf("WEBHOOK_URL and WEBHOOK_SECRET must both be set")
	}

	report, reportErr := ReportFromEnv(os.Getenv)
	if reportErr != nil {
		log.Fatal().Msgf("Could not build render report: %s", reportErr)
	}

	if report.Status == models.JOB_COMPLETED && *videoFilePtr != "" {
		if verifyErr := VerifyVideoFile(*videoFilePtr); verifyErr != nil {
			log.Error().Str("render_id", report.Uuid).Msgf("Render output failed verification: %s", verifyErr)
			report.Status = models.JOB_FAILED
			report.Error = verifyErr.Error()
			report.VideoUrl = ""
			report.PublicId = ""
		}
	}

	log.Info().Str("render_id", report.Uuid).Msgf("Reporting render as %s", report.Status)
	sendErr := SendWebhook(webhookUrl, []byte(secret), report, 0, maxTries)
	if sendErr != nil {
		log.Fatal().Msgf("Could not send result to %s: %s", webhookUrl, sendErr)
	}
}
