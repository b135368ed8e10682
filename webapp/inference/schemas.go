package inference

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const planSchemaText = `{
  "type": "object",
  "required": ["steps"],
  "properties": {
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["step_id", "description"],
        "properties": {
          "step_id": {"type": "integer"},
          "description": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

const promptsSchemaText = `{
  "type": "object",
  "required": ["code_prompt"],
  "properties": {
    "code_prompt": {"type": "string", "minLength": 1},
    "documentation_prompt": {"type": "string"},
    "summary_prompt": {"type": "string"}
  }
}`

const evaluationSchemaText = `{
  "type": "object",
  "required": ["evaluation"],
  "properties": {
    "evaluation": {"type": "string", "enum": ["retry", "continue"]},
    "feedback": {"type": "string"}
  }
}`

/**
compiled schemas for the structured replies the pipeline asks for
*/
type Schemas struct {
	Plan       *jsonschema.Schema
	Prompts    *jsonschema.Schema
	Evaluation *jsonschema.Schema
}

func compileSchema(name string, text string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(text)); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}

func CompileSchemas() (*Schemas, error) {
	plan, err := compileSchema("plan.json", planSchemaText)
	if err != nil {
		return nil, err
	}
	prompts, err := compileSchema("prompts.json", promptsSchemaText)
	if err != nil {
		return nil, err
	}
	evaluation, err := compileSchema("evaluation.json", evaluationSchemaText)
	if err != nil {
		return nil, err
	}
	return &Schemas{Plan: plan, Prompts: prompts, Evaluation: evaluation}, nil
}

/**
like CompileSchemas but panics on failure; the schemas are constants so failure is a programming error
*/
func MustCompileSchemas() *Schemas {
	s, err := CompileSchemas()
	if err != nil {
		panic(err)
	}
	return s
}
