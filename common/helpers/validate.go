package helpers

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"
)

var validate = validator.New()

/**
reads a json body into `to` and checks its `validate` tags. On failure the returned GenericErrorResponse
can be written straight back to the client with a 400.
*/
func ReadValidatedJsonBody(from io.Reader, to interface{}) *GenericErrorResponse {
	if readErr := ReadJsonBody(from, to); readErr != nil {
		log.Warn().Msgf("Could not parse request body: %s", readErr)
		return &GenericErrorResponse{Status: "error", Detail: "invalid json request body"}
	}

	if validateErr := validate.Struct(to); validateErr != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(validateErr, &fieldErrors) {
			problems := make([]string, 0, len(fieldErrors))
			for _, fe := range fieldErrors {
				problems = append(problems, fmt.Sprintf("%s failed '%s'", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return &GenericErrorResponse{Status: "error", Detail: strings.Join(problems, "; ")}
		}
		return &GenericErrorResponse{Status: "error", Detail: validateErr.Error()}
	}
	return nil
}
