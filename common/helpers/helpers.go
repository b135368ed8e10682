package helpers

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/phuslu/log"
)

type GenericErrorResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

func WriteJsonContent(content interface{}, w http.ResponseWriter, statusCode int) {
	contentBytes, marshalErr := json.Marshal(content)
	if marshalErr != nil {
		log.Error().Msgf("Could not marshal content for json write: %s", marshalErr)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.Header().Add("Content-Length", strconv.FormatInt(int64(len(contentBytes)), 10))
	w.WriteHeader(statusCode)
	_, writeErr := w.Write(contentBytes)
	if writeErr != nil {
		log.Warn().Msgf("Could not write content to HTTP socket: %s", writeErr)
	}
}

func ReadJsonBody(from io.Reader, to interface{}) error {
	byteContent, readErr := ioutil.ReadAll(from)
	if readErr != nil {
		return readErr
	}

	marshalErr := json.Unmarshal(byteContent, to)
	return marshalErr
}

func AssertHttpMethod(request *http.Request, w http.ResponseWriter, method string) bool {
	if request.Method != method {
		log.Warn().Msgf("Got a %s request, expecting %s", request.Method, method)
		WriteJsonContent(GenericErrorResponse{"error", "wrong method type"}, w, 405)
		return false
	} else {
		return true
	}
}

/**
gets the "uuid" path parameter from the request and parses it.
if it does not exist or is not a valid UUID, a GenericErrorResponse object is returned that is suitable
to be written directly to the outgoing response.
*/
func GetJobIdFromPath(request *http.Request) (*uuid.UUID, *GenericErrorResponse) {
	jobIdString := request.PathValue("uuid")

	jobId, uuidParseErr := uuid.Parse(jobIdString)
	if uuidParseErr != nil {
		log.Warn().Msgf("Could not parse job ID string '%s' into a UUID: %s", jobIdString, uuidParseErr)
		return nil, &GenericErrorResponse{
			Status: "error",
			Detail: "malformed UUID",
		}
	}
	return &jobId, nil
}
