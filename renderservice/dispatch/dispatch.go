package dispatch

import (
	"context"
	"fmt"

	"github.com/guardian/enginimate/common/helpers"
	"github.com/phuslu/log"
)

/**
everything a renderer needs to produce one video
*/
type Request struct {
	Uuid      string `json:"uuid"`
	Code      string `json:"code"`
	SceneName string `json:"scene_name"`
	Quality   string `json:"quality"`
}

/**
Dispatcher hands a render to whatever actually runs it. A nil return only means the renderer accepted the
work; the result arrives later through the webhook.
*/
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) error
}

func NewDispatcherFromConfig(config helpers.DispatchConfig) (Dispatcher, error) {
	switch config.Mode {
	case "github", "":
		log.Info().Msgf("Renders will be dispatched to GitHub Actions on %s/%s", config.Github.Owner, config.Github.Repo)
		return NewGitHubDispatcher(config.Github)
	case "kubernetes", "k8s":
		log.Info().Msgf("Renders will be dispatched as Kubernetes jobs from %s", config.Kubernetes.TemplateFile)
		return NewKubernetesDispatcherFromConfig(config.Kubernetes)
	default:
		return nil, fmt.Errorf("unknown dispatch mode '%s'", config.Mode)
	}
}
