package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joewhite86/frogr/graph/sqlitestore"
	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/persistence"
	"github.com/joewhite86/frogr/repository"
	"github.com/joewhite86/frogr/schema"
)

type Actor struct {
	model.Entity
	Name    string `frogr:"unique,indexed=lowercase,required"`
	Age     int64
	City    string
	Follows []*Actor `frogr:"relatedTo=Follows"`
}

type Movie struct {
	model.Entity
	Title string `frogr:"unique,required"`
}

func newFactory(t *testing.T) *repository.Factory {
	t.Helper()
	store, err := sqlitestore.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := schema.NewRegistry(nil)
	require.NoError(t, registry.Register(&Actor{}, &Movie{}))
	engine := persistence.NewEngine(registry, nil)

	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, engine.EnsureSchema(tx))
	require.NoError(t, tx.Commit())

	return repository.NewFactory(store, engine, nil)
}

func actors(t *testing.T, f *repository.Factory) repository.Repository {
	t.Helper()
	repo, err := f.Get("Actor")
	require.NoError(t, err)
	return repo
}

func seedActors(t *testing.T, repo repository.Repository, people ...*Actor) {
	t.Helper()
	models := make([]model.Base, len(people))
	for i, p := range people {
		models[i] = p
	}
	require.NoError(t, repo.Save(context.Background(), models...))
}

func TestFactorySynthesizesAndCaches(t *testing.T) {
	f := newFactory(t)

	first, err := f.Get("Actor")
	require.NoError(t, err)
	second, err := f.Get("Actor")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "Actor", first.Label())

	_, err = f.Get("Director")
	assert.ErrorIs(t, err, repository.ErrRepositoryNotFound)
}

func TestFactoryForModel(t *testing.T) {
	f := newFactory(t)

	repo, err := f.ForModel(&Movie{})
	require.NoError(t, err)
	assert.Equal(t, "Movie", repo.Label())
}

func TestRepositoryRejectsWrongType(t *testing.T) {
	f := newFactory(t)
	repo := actors(t, f)

	err := repo.Save(context.Background(), &Movie{Title: "Heat"})
	assert.ErrorIs(t, err, repository.ErrWrongModelType)
}

func TestSaveAndFind(t *testing.T) {
	f := newFactory(t)
	repo := actors(t, f)

	seedActors(t, repo, &Actor{Name: "Ada", Age: 36, City: "London"})

	found, err := repo.Search().FilterEquals("name", "Ada").Single(context.Background())
	require.NoError(t, err)
	require.NotNil(t, found)
	ada := found.(*Actor)
	require.True(t, ada.GetID().Assigned())

	byID, err := repo.Find(context.Background(), ada.GetID().Int64())
	require.NoError(t, err)
	assert.Equal(t, "Ada", byID.(*Actor).Name)
	assert.Equal(t, int64(36), byID.(*Actor).Age)

	byUUID, err := repo.FindByUUID(context.Background(), ada.UUID)
	require.NoError(t, err)
	assert.Equal(t, ada.GetID().Int64(), byUUID.(*Actor).GetID().Int64())
}

func TestFindNotFound(t *testing.T) {
	f := newFactory(t)
	repo := actors(t, f)

	_, err := repo.Find(context.Background(), 424242)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	_, err = repo.FindByUUID(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestRemove(t *testing.T) {
	f := newFactory(t)
	repo := actors(t, f)

	ada := &Actor{Name: "Ada"}
	seedActors(t, repo, ada)
	require.NoError(t, repo.Remove(context.Background(), ada))

	_, err := repo.FindByUUID(context.Background(), ada.UUID)
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestFetchRelationshipField(t *testing.T) {
	f := newFactory(t)
	repo := actors(t, f)

	grace := &Actor{Name: "Grace"}
	seedActors(t, repo, grace)
	ada := &Actor{Name: "Ada", Follows: []*Actor{grace}}
	seedActors(t, repo, ada)

	reloaded, err := repo.FindByUUID(context.Background(), ada.UUID)
	require.NoError(t, err)
	fresh := reloaded.(*Actor)
	require.Empty(t, fresh.Follows)

	require.NoError(t, repo.Fetch(context.Background(), fresh, "follows"))
	require.Len(t, fresh.Follows, 1)
	assert.Equal(t, "Grace", fresh.Follows[0].Name)
}

func TestTypedRepository(t *testing.T) {
	f := newFactory(t)
	typed, err := repository.Typed[*Actor](f)
	require.NoError(t, err)

	ada, err := typed.Create()
	require.NoError(t, err)
	ada.Name = "Ada"
	ada.Age = 36
	require.NoError(t, typed.Save(context.Background(), ada))

	found, err := typed.FindByUUIDTyped(context.Background(), ada.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", found.Name)

	list, err := typed.ListTyped(context.Background(), typed.Search())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(36), list[0].Age)

	missing, err := typed.SingleTyped(context.Background(), typed.Search().FilterEquals("name", "Grace"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func seedCrowd(t *testing.T, repo repository.Repository) {
	t.Helper()
	seedActors(t, repo,
		&Actor{Name: "Ada", Age: 36, City: "London"},
		&Actor{Name: "Alan", Age: 41, City: "London"},
		&Actor{Name: "Grace", Age: 52, City: "Arlington"},
		&Actor{Name: "Edsger", Age: 72, City: "Austin"},
	)
}

func names(t *testing.T, results []model.Base) []string {
	t.Helper()
	out := make([]string, len(results))
	for i, m := range results {
		out[i] = m.(*Actor).Name
	}
	return out
}

func TestSearchFilters(t *testing.T) {
	f := newFactory(t)
	repo := actors(t, f)
	seedCrowd(t, repo)
	ctx := context.Background()

	list, err := repo.Search().FilterEquals("city", "London").OrderBy("name", model.Ascending).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada", "Alan"}, names(t, list))

	// the "*" affix turns FilterEquals into a prefix match
	list, err = repo.Search().FilterEquals("name", "A*").OrderBy("name", model.Ascending).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada", "Alan"}, names(t, list))

	list, err = repo.Search().Filter(model.NewGreaterThan("age", 50)).OrderBy("age", model.Ascending).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Grace", "Edsger"}, names(t, list))

	list, err = repo.Search().Filter(model.NewRange("age", 40, 52)).OrderBy("age", model.Ascending).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alan", "Grace"}, names(t, list))
}

func TestSearchCaseInsensitiveUsesShadow(t *testing.T) {
	f := newFactory(t)
	repo := actors(t, f)
	seedCrowd(t, repo)

	eq := model.NewEquals("name", "ADA")
	eq.CaseInsensitive = true
	found, err := repo.Search().Filter(eq).Single(context.Background())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Ada", found.(*Actor).Name)
}

func TestSearchFreeTextQuery(t *testing.T) {
	f := newFactory(t)
	repo := actors(t, f)
	seedCrowd(t, repo)

	list, err := repo.Search().Query("GRA").List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Grace", list[0].(*Actor).Name)
}

func TestSearchOrderAndPaging(t *testing.T) {
	f := newFactory(t)
	repo := actors(t, f)
	seedCrowd(t, repo)
	ctx := context.Background()

	page1, err := repo.Search().OrderBy("age", model.Descending).Limit(2).Page(1).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Edsger", "Grace"}, names(t, page1))

	page2, err := repo.Search().OrderBy("age", model.Descending).Limit(2).Page(2).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alan", "Ada"}, names(t, page2))
}

func TestSearchByUUIDs(t *testing.T) {
	f := newFactory(t)
	repo := actors(t, f)
	ada := &Actor{Name: "Ada"}
	grace := &Actor{Name: "Grace"}
	seedActors(t, repo, ada, grace)
	ctx := context.Background()

	list, err := repo.Search().UUIDs(ada.UUID).List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ada", list[0].(*Actor).Name)

	// unknown uuids must not degrade into an unrestricted search
	list, err = repo.Search().UUIDs("deadbeef").List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSearchSingleAmbiguous(t *testing.T) {
	f := newFactory(t)
	repo := actors(t, f)
	seedCrowd(t, repo)

	_, err := repo.Search().FilterEquals("city", "London").Single(context.Background())
	assert.ErrorIs(t, err, repository.ErrAmbiguousResult)
}

func TestSearchCountAndSum(t *testing.T) {
	f := newFactory(t)
	repo := actors(t, f)
	seedCrowd(t, repo)
	ctx := context.Background()

	count, err := repo.Search().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	// aggregates ignore paging
	count, err = repo.Search().Limit(1).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	sum, err := repo.Search().FilterEquals("city", "London").Sum(ctx, "age")
	require.NoError(t, err)
	assert.Equal(t, float64(77), sum)
}

func TestSearchValuesAndToInt(t *testing.T) {
	f := newFactory(t)
	repo := actors(t, f)
	seedCrowd(t, repo)
	ctx := context.Background()

	values, err := repo.Search().Returns("age").OrderBy("age", model.Ascending).Values(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(36), int64(41), int64(52), int64(72)}, values)

	_, err = repo.Search().Values(ctx)
	assert.ErrorIs(t, err, repository.ErrMissingReturns)

	age, err := repo.Search().FilterEquals("name", "Grace").Returns("age").ToInt(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(52), age)

	_, err = repo.Search().FilterEquals("name", "Zuse").Returns("age").ToInt(ctx)
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	_, err = repo.Search().Returns("age").ToInt(ctx)
	assert.ErrorIs(t, err, repository.ErrAmbiguousResult)
}

func TestSortInMemory(t *testing.T) {
	f := newFactory(t)
	repo := actors(t, f)

	models := []model.Base{
		&Actor{Name: "Grace", Age: 52, City: "Arlington"},
		&Actor{Name: "Ada", Age: 36, City: "London"},
		&Actor{Name: "Alan", Age: 41, City: "London"},
	}
	require.NoError(t, repo.Sort(models,
		model.OrderBy{Field: "city", Dir: model.Descending},
		model.OrderBy{Field: "age", Dir: model.Ascending},
	))
	assert.Equal(t, []string{"Ada", "Alan", "Grace"}, names(t, models))

	err := repo.Sort(models, model.OrderBy{Field: "shoeSize"})
	assert.Error(t, err)
}
