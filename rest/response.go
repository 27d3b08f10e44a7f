// Package rest exposes registered models over HTTP. Each repository mounts
// as a chi sub-router with create, update, read, search and delete
// endpoints, all wrapped in a uniform response envelope.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/persistence"
	"github.com/joewhite86/frogr/repository"
)

// Application error codes carried in the envelope, layered under the HTTP
// status code.
const (
	CodeGeneric   = 600
	CodePersist   = 601
	CodeDuplicate = 602
)

// Response is the uniform envelope every endpoint answers with.
type Response struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message,omitempty"`
	ErrorCode int          `json:"errorCode,omitempty"`
	Total     int64        `json:"total,omitempty"`
	Pages     int          `json:"pages,omitempty"`
	Data      []model.Base `json:"data"`
}

// NewResponse builds a successful envelope around the given models.
func NewResponse(data ...model.Base) *Response {
	if data == nil {
		data = []model.Base{}
	}
	return &Response{Success: true, Data: data}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error onto status and application code. Expected
// persistence failures log without a stack, everything else is severe.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	response := &Response{Success: false, Message: err.Error(), Data: []model.Base{}}
	status := http.StatusBadRequest

	var duplicate *persistence.DuplicateEntryError
	var missing *persistence.MissingRequiredError
	var unresolved *persistence.ResolutionError
	var notPersisted *persistence.RelatedNotPersistedError
	var badField *persistence.FieldNotFoundError
	var badEndpoint *persistence.EndpointMismatchError
	var badQuery *model.QueryParseError

	switch {
	case errors.As(err, &duplicate):
		response.ErrorCode = CodeDuplicate
		logger.Warn("duplicate entry", zap.Error(err))
	case errors.As(err, &missing), errors.As(err, &notPersisted),
		errors.As(err, &badField), errors.As(err, &badEndpoint):
		response.ErrorCode = CodePersist
		logger.Warn("persist failed", zap.Error(err))
	case errors.As(err, &unresolved):
		response.ErrorCode = CodePersist
		logger.Error("persist failed", zap.Error(err))
	case errors.Is(err, persistence.ErrNotFound):
		response.ErrorCode = CodeGeneric
		status = http.StatusNotFound
		logger.Warn("not found", zap.Error(err))
	case errors.Is(err, repository.ErrAmbiguousResult), errors.As(err, &badQuery):
		response.ErrorCode = CodeGeneric
		logger.Warn("bad request", zap.Error(err))
	default:
		response.ErrorCode = CodeGeneric
		logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, response)
}
