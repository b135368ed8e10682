package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/guardian/enginimate/common/helpers"
	"github.com/phuslu/log"
	"golang.org/x/oauth2"
)

/**
GitHubDispatcher fires a repository_dispatch event; a workflow in the target repo renders the scene and
calls our webhook when it is done
*/
type GitHubDispatcher struct {
	client    *github.Client
	owner     string
	repo      string
	eventType string
}

func NewGitHubDispatcher(config helpers.GithubDispatchConfig) (*GitHubDispatcher, error) {
	if config.Owner == "" || config.Repo == "" {
		return nil, errors.New("github dispatch needs an owner and a repo")
	}
	if config.Token == "" {
		return nil, errors.New("github dispatch needs a token")
	}

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Token})
	client := github.NewClient(oauth2.NewClient(context.Background(), tokenSource))

	if config.BaseURL != "" {
		baseURL := config.BaseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url: %w", err)
		}
		client.BaseURL = parsed
	}

	eventType := config.EventType
	if eventType == "" {
		eventType = "render-manim"
	}
	return &GitHubDispatcher{
		client:    client,
		owner:     config.Owner,
		repo:      config.Repo,
		eventType: eventType,
	}, nil
}

func (d *GitHubDispatcher) Dispatch(ctx context.Context, req Request) error {
	payload, marshalErr := json.Marshal(req)
	if marshalErr != nil {
		return marshalErr
	}
	raw := json.RawMessage(payload)

	_, resp, err := d.client.Repositories.Dispatch(ctx, d.owner, d.repo, github.DispatchRequestOptions{
		EventType:     d.eventType,
		ClientPayload: &raw,
	})
	if err != nil {
		if resp != nil {
			log.Error().Str("render_id", req.Uuid).Msgf("GitHub refused the dispatch with %d: %s", resp.StatusCode, err)
		} else {
			log.Error().Str("render_id", req.Uuid).Msgf("Could not reach GitHub: %s", err)
		}
		return fmt.Errorf("github dispatch failed: %w", err)
	}
	log.Info().Str("render_id", req.Uuid).Msgf("Dispatched %s to %s/%s", d.eventType, d.owner, d.repo)
	return nil
}
