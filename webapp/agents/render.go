package agents

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/guardian/enginimate/webapp/renderclient"
	"github.com/guardian/enginimate/webapp/workflow"
)

/**
RenderIdFor gives the render service id for one run of a job. Each submission gets its own render record.
*/
func RenderIdFor(jobId uuid.UUID, runId string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(jobId.String()+":"+runId))
}

/**
Renderer sends the accepted code to the render service and waits for the video
*/
type Renderer struct {
	dispatcher renderclient.Dispatcher
	sceneName  string
}

func NewRenderer(dispatcher renderclient.Dispatcher, sceneName string) *Renderer {
	return &Renderer{dispatcher: dispatcher, sceneName: sceneName}
}

func (r *Renderer) Apply(ctx context.Context, state workflow.State) workflow.State {
	if strings.TrimSpace(state.CodeGenerated) == "" {
		state.ErrorMessage = "there is no code to render"
		return state
	}

	renderId := RenderIdFor(state.Uuid, state.RunId)
	state.RenderId = renderId.String()

	result, err := r.dispatcher.Render(ctx, renderId, state.CodeGenerated, r.sceneName)
	if err != nil {
		state.ErrorMessage = err.Error()
		return state
	}
	state.Url = result.Url
	state.PublicId = result.PublicId
	return state
}
