package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joewhite86/frogr/graph/sqlitestore"
	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/persistence"
	"github.com/joewhite86/frogr/repository"
	"github.com/joewhite86/frogr/rest"
	"github.com/joewhite86/frogr/schema"
)

type Character struct {
	model.Entity
	Name string `json:"name,omitempty" frogr:"unique,indexed=lowercase,required"`
	Age  int64  `json:"age,omitempty"`
}

type envelope struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	ErrorCode int              `json:"errorCode"`
	Total     int64            `json:"total"`
	Pages     int              `json:"pages"`
	Data      []map[string]any `json:"data"`
}

func newServer(t *testing.T) (*httptest.Server, repository.Repository) {
	t.Helper()
	store, err := sqlitestore.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := schema.NewRegistry(nil)
	require.NoError(t, registry.Register(&Character{}))
	engine := persistence.NewEngine(registry, nil)

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, engine.EnsureSchema(tx))
	require.NoError(t, tx.Commit())

	factory := repository.NewFactory(store, engine, nil)
	router := chi.NewRouter()
	require.NoError(t, rest.Mount(router, factory, nil, "Character"))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	repo, err := factory.Get("Character")
	require.NoError(t, err)
	return server, repo
}

func do(t *testing.T, method, url, body string, header map[string]string) (*http.Response, *envelope) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if resp.StatusCode == http.StatusNoContent {
		return resp, nil
	}
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, &env
}

func createCharacter(t *testing.T, server *httptest.Server, body string) *envelope {
	t.Helper()
	resp, env := do(t, http.MethodPost, server.URL+"/character", body, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.True(t, env.Success)
	return env
}

func TestCreate(t *testing.T) {
	server, _ := newServer(t)

	env := createCharacter(t, server, `{"name":"Homer","age":39}`)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "Homer", env.Data[0]["name"])
	assert.NotEmpty(t, env.Data[0]["uuid"])
}

func TestCreateArray(t *testing.T) {
	server, _ := newServer(t)

	env := createCharacter(t, server, `[{"name":"Homer"},{"name":"Marge"}]`)
	require.Len(t, env.Data, 2)
}

func TestCreateRejectsPersisted(t *testing.T) {
	server, _ := newServer(t)
	env := createCharacter(t, server, `{"name":"Homer"}`)
	uuid := env.Data[0]["uuid"].(string)

	resp, env := do(t, http.MethodPost, server.URL+"/character", `{"uuid":"`+uuid+`","name":"Homer"}`, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestCreateDuplicate(t *testing.T) {
	server, _ := newServer(t)
	createCharacter(t, server, `{"name":"Homer"}`)

	resp, env := do(t, http.MethodPost, server.URL+"/character", `{"name":"Homer"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, rest.CodeDuplicate, env.ErrorCode)
}

func TestCreateMissingRequired(t *testing.T) {
	server, _ := newServer(t)

	resp, env := do(t, http.MethodPost, server.URL+"/character", `{"age":39}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, rest.CodePersist, env.ErrorCode)
}

func TestUpdate(t *testing.T) {
	server, _ := newServer(t)
	env := createCharacter(t, server, `{"name":"Homer","age":39}`)
	uuid := env.Data[0]["uuid"].(string)

	resp, env := do(t, http.MethodPut, server.URL+"/character", `{"uuid":"`+uuid+`","name":"Homer","age":40}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)

	resp, env = do(t, http.MethodGet, server.URL+"/character/"+uuid, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(40), env.Data[0]["age"])
}

func TestUpdateRejectsUnpersisted(t *testing.T) {
	server, _ := newServer(t)

	resp, env := do(t, http.MethodPut, server.URL+"/character", `{"name":"Homer"}`, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, env.Success)
}

func TestRead(t *testing.T) {
	server, _ := newServer(t)
	env := createCharacter(t, server, `{"name":"Homer","age":39}`)
	uuid := env.Data[0]["uuid"].(string)

	resp, env := do(t, http.MethodGet, server.URL+"/character/"+uuid, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "Homer", env.Data[0]["name"])
}

func TestReadUnknown(t *testing.T) {
	server, _ := newServer(t)

	resp, env := do(t, http.MethodGet, server.URL+"/character/deadbeef", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
}

func seedFamily(t *testing.T, server *httptest.Server) {
	t.Helper()
	createCharacter(t, server,
		`[{"name":"Homer","age":39},{"name":"Marge","age":36},{"name":"Bart","age":10},{"name":"Lisa","age":8}]`)
}

func characterNames(env *envelope) []string {
	names := make([]string, len(env.Data))
	for i, d := range env.Data {
		names[i] = d["name"].(string)
	}
	return names
}

func TestSearchFlatParameters(t *testing.T) {
	server, _ := newServer(t)
	seedFamily(t, server)

	resp, env := do(t, http.MethodGet, server.URL+"/character?filter=age:>9&order=-age&count=true", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Homer", "Marge", "Bart"}, characterNames(env))
	assert.Equal(t, int64(3), env.Total)
	assert.Equal(t, 1, env.Pages)
}

func TestSearchPaging(t *testing.T) {
	server, _ := newServer(t)
	seedFamily(t, server)

	resp, env := do(t, http.MethodGet, server.URL+"/character?order=-age&limit=3&page=2&count=true", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Lisa"}, characterNames(env))
	assert.Equal(t, int64(4), env.Total)
	assert.Equal(t, 2, env.Pages)
}

func TestSearchParamsHeader(t *testing.T) {
	server, _ := newServer(t)
	seedFamily(t, server)

	header := map[string]string{"params": `{"filters":["name:B*"],"orderBy":[{"field":"name"}]}`}
	resp, env := do(t, http.MethodGet, server.URL+"/character", "", header)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Bart"}, characterNames(env))
}

func TestSearchCompactHeader(t *testing.T) {
	server, _ := newServer(t)
	seedFamily(t, server)

	header := map[string]string{"params": "q:mar;limit:10"}
	resp, env := do(t, http.MethodGet, server.URL+"/character", "", header)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Marge"}, characterNames(env))
}

func TestSearchPost(t *testing.T) {
	server, _ := newServer(t)
	seedFamily(t, server)

	body := `{"filters":["age:(8-10)"],"orderBy":[{"field":"age","dir":"DESC"}]}`
	resp, env := do(t, http.MethodPost, server.URL+"/character/search", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Bart", "Lisa"}, characterNames(env))
}

func TestDelete(t *testing.T) {
	server, repo := newServer(t)
	env := createCharacter(t, server, `{"name":"Homer"}`)
	uuid := env.Data[0]["uuid"].(string)

	resp, _ := do(t, http.MethodDelete, server.URL+"/character/"+uuid, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err := repo.FindByUUID(context.Background(), uuid)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestDeleteUnknown(t *testing.T) {
	server, _ := newServer(t)

	resp, env := do(t, http.MethodDelete, server.URL+"/character/deadbeef", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
}
