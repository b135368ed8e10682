package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrEmptyResponse = errors.New("inference provider returned an empty response")

/**
Request is a single-turn call: a system instruction plus one user prompt
*/
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	JSON        bool
}

/**
Client is the narrow view of an inference provider that the pipeline steps use
*/
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

/**
finds the outermost JSON object in a model reply, tolerating fences and surrounding chatter
*/
func ExtractJSONObject(reply string) (string, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object in reply")
	}
	return reply[start : end+1], nil
}

/**
CompleteJSON asks for JSON output, checks it against schema and unmarshals it into out.
Any mismatch is returned as an error so the caller's retry policy can ask again.
*/
func CompleteJSON(ctx context.Context, client Client, req Request, schema *jsonschema.Schema, out interface{}) error {
	req.JSON = true
	reply, err := client.Complete(ctx, req)
	if err != nil {
		return err
	}

	body, extractErr := ExtractJSONObject(reply)
	if extractErr != nil {
		return extractErr
	}

	if schema != nil {
		var generic interface{}
		if unmarshalErr := json.Unmarshal([]byte(body), &generic); unmarshalErr != nil {
			return fmt.Errorf("reply is not valid JSON: %w", unmarshalErr)
		}
		if validateErr := schema.Validate(generic); validateErr != nil {
			return fmt.Errorf("reply does not match schema: %w", validateErr)
		}
	}

	if unmarshalErr := json.Unmarshal([]byte(body), out); unmarshalErr != nil {
		return fmt.Errorf("could not decode reply: %w", unmarshalErr)
	}
	return nil
}
