package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/persistence"
	"github.com/joewhite86/frogr/repository"
)

var errNotYetPersisted = errors.New("the model is not yet persisted")
var errAlreadyPersisted = errors.New("the model has to be created first")

// Service serves one repository over HTTP.
type Service struct {
	repo   repository.Repository
	logger *zap.Logger
}

// NewService creates a service around a repository.
func NewService(repo repository.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Repository returns the repository this service serves.
func (s *Service) Repository() repository.Repository { return s.repo }

// Routes mounts the CRUD endpoints on a fresh sub-router.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", s.create)
	r.Put("/", s.update)
	r.Get("/", s.search)
	r.Post("/search", s.searchPost)
	r.Get("/{uuid:[a-zA-Z0-9]+}", s.read)
	r.Delete("/{uuid:[a-zA-Z0-9]+}", s.delete)
	return r
}

// Mount registers services for the given type names on the router, each
// under its lower-cased label.
func Mount(router chi.Router, factory *repository.Factory, logger *zap.Logger, labels ...string) error {
	for _, label := range labels {
		repo, err := factory.Get(label)
		if err != nil {
			return err
		}
		router.Mount("/"+strings.ToLower(label), NewService(repo, logger).Routes())
	}
	return nil
}

// decodeModels accepts a single json object or an array of them and binds
// each onto a fresh instance of the served type.
func (s *Service) decodeModels(body io.Reader) ([]model.Base, error) {
	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(payload))
	var raws []json.RawMessage
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(payload, &raws); err != nil {
			return nil, fmt.Errorf("cannot parse request body: %w", err)
		}
	} else {
		raws = []json.RawMessage{payload}
	}
	models := make([]model.Base, 0, len(raws))
	for _, raw := range raws {
		m, err := s.repo.NewModel()
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, m); err != nil {
			return nil, fmt.Errorf("cannot parse %s: %w", s.repo.Label(), err)
		}
		models = append(models, m)
	}
	return models, nil
}

func (s *Service) create(w http.ResponseWriter, r *http.Request) {
	models, err := s.decodeModels(r.Body)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	for _, m := range models {
		if m.Persisted() {
			writeJSON(w, http.StatusForbidden, &Response{
				Success: false, Message: errNotYetPersisted.Error(), Data: []model.Base{},
			})
			return
		}
	}
	if err := s.repo.Save(r.Context(), models...); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, NewResponse(models...))
}

func (s *Service) update(w http.ResponseWriter, r *http.Request) {
	models, err := s.decodeModels(r.Body)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	for _, m := range models {
		if !m.Persisted() {
			writeJSON(w, http.StatusForbidden, &Response{
				Success: false, Message: errAlreadyPersisted.Error(), Data: []model.Base{},
			})
			return
		}
	}
	if err := s.repo.Save(r.Context(), models...); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, NewResponse(models...))
}

func (s *Service) read(w http.ResponseWriter, r *http.Request) {
	params, err := ResolveSearchParameter(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	params.UUIDs(chi.URLParam(r, "uuid"))
	found, err := s.repo.Search().Params(params).Single(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if found == nil {
		writeError(w, s.logger, fmt.Errorf("%s %s: %w", s.repo.Label(), chi.URLParam(r, "uuid"), persistence.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, NewResponse(found))
}

func (s *Service) search(w http.ResponseWriter, r *http.Request) {
	params, err := ResolveSearchParameter(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.respondSearch(w, r, params)
}

func (s *Service) searchPost(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	params, err := ResolveString(string(payload))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.respondSearch(w, r, params)
}

func (s *Service) respondSearch(w http.ResponseWriter, r *http.Request, params *model.SearchParameter) {
	// count runs on a clone, paging on the parameters would skew it
	counted := params.Clone()
	list, err := s.repo.Search().Params(params).List(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	response := NewResponse(list...)
	if params.Counted() {
		total, err := s.repo.Search().Params(counted).Count(r.Context())
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		response.Total = total
		if limit := params.GetLimit(); limit > 0 {
			response.Pages = int((total + int64(limit) - 1) / int64(limit))
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Service) delete(w http.ResponseWriter, r *http.Request) {
	found, err := s.repo.FindByUUID(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if err := s.repo.Remove(r.Context(), found); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
