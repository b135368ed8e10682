package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/phuslu/log"
)

var retryDelay = 2 * time.Second
var httpClient = &http.Client{Timeout: 30 * time.Second}

/**
signs `data` with the shared secret and posts it to the render service, retrying while the service looks
unavailable. Any other refusal is fatal, a 403 in particular means the secret is wrong.
*/
func SendWebhook(forUrl string, secret []byte, data interface{}, attempt int, maxTries int) error {
	byteData, marshalErr := json.Marshal(data)
	if marshalErr != nil {
		log.Error().Msgf("Could not marshal data for webhook send: %s", marshalErr)
		return marshalErr
	}

	req, reqErr := http.NewRequest(http.MethodPost, forUrl, bytes.NewReader(byteData))
	if reqErr != nil {
		return reqErr
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(helpers.SignatureHeader, helpers.SignPayload(secret, byteData))

	response, err := httpClient.Do(req)
	if err != nil {
		log.Warn().Msgf("Could not send webhook on attempt %d: %s", attempt, err)
		return retryOrGiveUp(forUrl, secret, data, attempt, maxTries, err)
	}
	responseContent, _ := ioutil.ReadAll(response.Body)
	response.Body.Close()

	switch response.StatusCode {
	case 200, 201, 202, 204:
		log.Info().Msgf("Render service accepted the webhook: %s", string(responseContent))
		return nil
	case 500, 502, 503, 504:
		log.Warn().Msgf("Render service said %s", string(responseContent))
		log.Warn().Msgf("Render service is not accessible on attempt %d (got a %d response)", attempt, response.StatusCode)
		return retryOrGiveUp(forUrl, secret, data, attempt, maxTries, fmt.Errorf("render service returned %d", response.StatusCode))
	default:
		log.Error().Msgf("Render service returned a fatal error (got a %d response): %s", response.StatusCode, string(responseContent))
		return fmt.Errorf("render service refused the webhook with %d", response.StatusCode)
	}
}

func retryOrGiveUp(forUrl string, secret []byte, data interface{}, attempt int, maxTries int, lastErr error) error {
	if attempt+1 >= maxTries {
		return errors.New("render service was not accessible: " + lastErr.Error())
	}
	time.Sleep(retryDelay)
	return SendWebhook(forUrl, secret, data, attempt+1, maxTries)
}
