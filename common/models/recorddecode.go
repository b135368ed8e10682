package models

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

var (
	uuidType   = reflect.TypeOf(uuid.UUID{})
	timeType   = reflect.TypeOf(time.Time{})
	statusType = reflect.TypeOf(JOB_PENDING)
	stringType = reflect.TypeOf("")
)

/**
decodes a redis hash into a record struct. Strings are parsed into uuids and RFC3339 times on the way,
and a status we do not know is an error rather than a silently odd record.
*/
func decodeRecordHash(incoming map[string]string, outgoing interface{}) error {
	decoder, setupErr := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(uuidHook, timeHook, statusHook),
		Result:     outgoing,
	})
	if setupErr != nil {
		return setupErr
	}
	return decoder.Decode(incoming)
}

func uuidHook(inType reflect.Type, outType reflect.Type, value interface{}) (interface{}, error) {
	if inType != stringType || outType != uuidType {
		return value, nil
	}
	return uuid.Parse(value.(string))
}

func timeHook(inType reflect.Type, outType reflect.Type, value interface{}) (interface{}, error) {
	if inType != stringType || outType != timeType {
		return value, nil
	}
	if value.(string) == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value.(string))
}

func statusHook(inType reflect.Type, outType reflect.Type, value interface{}) (interface{}, error) {
	if inType != stringType || outType != statusType {
		return value, nil
	}
	status := JobStatus(value.(string))
	if !status.IsValid() {
		return nil, fmt.Errorf("unknown job status '%s'", status)
	}
	return status, nil
}
