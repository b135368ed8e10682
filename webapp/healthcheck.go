package main

import (
	"net/http"

	"github.com/go-redis/redis/v7"
	"github.com/guardian/enginimate/common/helpers"
	"github.com/phuslu/log"
)

type HealthcheckHandler struct {
	redisClient redis.Cmdable
}

func (h HealthcheckHandler) ServeHTTP(w http.ResponseWriter, request *http.Request) {
	_, err := h.redisClient.Ping().Result()

	if err == nil {
		w.WriteHeader(200)
	} else {
		log.Error().Msgf("HEALTHCHECK FAILED: %s connecting to Redis", err)
		response := helpers.GenericErrorResponse{
			Status: "error",
			Detail: "could not contact redis db",
		}
		helpers.WriteJsonContent(response, w, 500)
	}
}
