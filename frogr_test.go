package frogr_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joewhite86/frogr"
	"github.com/joewhite86/frogr/graph"
	"github.com/joewhite86/frogr/model"
	"github.com/joewhite86/frogr/persistence"
	"github.com/joewhite86/frogr/repository"
)

type Song struct {
	model.Entity
	Title string `frogr:"unique,indexed=lowercase,required"`
	Plays int64
}

func newService(t *testing.T) *frogr.Service {
	t.Helper()
	service := frogr.New(&frogr.Config{Database: frogr.DatabaseConfig{Path: ":memory:"}}, nil)
	require.NoError(t, service.Register(&Song{}))
	require.NoError(t, service.Connect(context.Background()))
	t.Cleanup(func() { service.Close() })
	return service
}

func TestServiceLifecycle(t *testing.T) {
	service := newService(t)
	require.True(t, service.Connected())

	assert.ErrorIs(t, service.Connect(context.Background()), frogr.ErrAlreadyConnected)
	require.NoError(t, service.Close())
	assert.False(t, service.Connected())

	_, err := service.Repository("Song")
	assert.ErrorIs(t, err, frogr.ErrNotConnected)
}

func TestServiceRepositoryRoundTrip(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	songs, err := service.Repository("Song")
	require.NoError(t, err)

	require.NoError(t, songs.Save(ctx, &Song{Title: "Hey Jude", Plays: 7}))

	found, err := songs.Search().FilterEquals("title", "Hey Jude").Single(ctx)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(7), found.(*Song).Plays)

	// the unique constraint from Register is effective after Connect
	err = songs.Save(ctx, &Song{Title: "Hey Jude"})
	var duplicate *persistence.DuplicateEntryError
	assert.ErrorAs(t, err, &duplicate)
}

func TestServiceTypedRepository(t *testing.T) {
	service := newService(t)

	songs, err := repository.Typed[*Song](service.Factory())
	require.NoError(t, err)

	song, err := songs.Create()
	require.NoError(t, err)
	song.Title = "Let It Be"
	require.NoError(t, songs.Save(context.Background(), song))

	found, err := songs.FindByUUIDTyped(context.Background(), song.UUID)
	require.NoError(t, err)
	assert.Equal(t, "Let It Be", found.Title)
}

type renamePatch struct{ applied *bool }

func (p *renamePatch) Version() string { return "1.0.0" }
func (p *renamePatch) Priority() int   { return 0 }
func (p *renamePatch) Update(tx graph.Tx, engine *persistence.Engine) error {
	*p.applied = true
	return nil
}

func TestServiceAppliesPatchesOnConnect(t *testing.T) {
	service := frogr.New(&frogr.Config{Database: frogr.DatabaseConfig{Path: ":memory:"}}, nil)
	var applied bool
	service.RegisterPatches(&renamePatch{applied: &applied})
	require.NoError(t, service.Connect(context.Background()))
	t.Cleanup(func() { service.Close() })
	assert.True(t, applied)
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := frogr.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "graph.db", config.Database.Path)
	assert.Equal(t, 8282, config.Server.Port)
	assert.Equal(t, frogr.Version, config.Version)
}
