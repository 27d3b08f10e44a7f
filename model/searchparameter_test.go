package model_test

import (
	"encoding/json"
	"testing"

	"github.com/joewhite86/frogr/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchParameterDefaults(t *testing.T) {
	params := model.NewSearchParameter()
	assert.Equal(t, model.DefaultLimit, params.GetLimit())
	assert.Equal(t, 1, params.GetPage())
	assert.Zero(t, params.GetStart())
	assert.False(t, params.Counted())
	assert.False(t, params.Filtered())
	assert.False(t, params.Ordered())
}

func TestSearchParameterPageComputesStart(t *testing.T) {
	params := model.NewSearchParameter().Limit(25).Page(3)
	assert.Equal(t, 50, params.GetStart())
	assert.Equal(t, 3, params.GetPage())

	assert.Panics(t, func() { model.NewSearchParameter().Page(0) })
}

func TestSearchParameterStartComputesPage(t *testing.T) {
	params := model.NewSearchParameter().Limit(10).Start(30)
	assert.Equal(t, 4, params.GetPage())

	// setting the limit after a start offset recomputes the page too
	params = model.NewSearchParameter().Start(30).Limit(15)
	assert.Equal(t, 3, params.GetPage())
}

func TestSearchParameterFilters(t *testing.T) {
	params := model.NewSearchParameter().
		FilterEquals("name", "Ada").
		Filter(model.NewGreaterThan("age", 18))

	assert.True(t, params.Filtered())
	assert.True(t, params.ContainsFilter("age"))
	assert.False(t, params.ContainsFilter("city"))

	params.RemoveFilter("age")
	require.Len(t, params.Filters(), 1)
	assert.Equal(t, "name", params.Filters()[0].Property())
}

func TestSearchParameterClone(t *testing.T) {
	params := model.NewSearchParameter().
		Query("ada").
		Limit(5).
		Page(2).
		Count(true).
		UUIDs("abc").
		OrderBy("name", model.Ascending).
		Fields("name,friends.{name}")

	clone := params.Clone()
	clone.Limit(50).Page(9).UUIDs("def").OrderBy("age", model.Descending)

	assert.Equal(t, 5, params.GetLimit())
	assert.Equal(t, 2, params.GetPage())
	assert.Equal(t, []string{"abc"}, params.GetUUIDs())
	assert.Len(t, params.GetOrderBy(), 1)

	assert.Equal(t, "ada", clone.QueryString())
	assert.True(t, clone.Counted())
	assert.True(t, clone.GetFieldList().ContainsField("friends"))
}

func TestStringFilterAffixes(t *testing.T) {
	filter := model.StringFilter("name", "Ada")
	_, ok := filter.(*model.Equals)
	require.True(t, ok)
	assert.Equal(t, "Ada", filter.Value())

	filter = model.StringFilter("name", "Ada*")
	_, ok = filter.(*model.StartsWith)
	require.True(t, ok)
	assert.Equal(t, "Ada", filter.Value())

	filter = model.StringFilter("name", "*ace")
	_, ok = filter.(*model.EndsWith)
	require.True(t, ok)
	assert.Equal(t, "ace", filter.Value())

	filter = model.StringFilter("name", "*da*")
	_, ok = filter.(*model.Contains)
	require.True(t, ok)
	assert.Equal(t, "da", filter.Value())
}

func TestIdentity(t *testing.T) {
	var unassigned model.Identity
	assert.False(t, unassigned.Assigned())
	assert.Equal(t, int64(-1), unassigned.Int64())
	assert.Equal(t, "-", unassigned.String())

	id := model.NewIdentity(42)
	value, ok := id.Value()
	assert.True(t, ok)
	assert.Equal(t, int64(42), value)
	assert.Equal(t, "42", id.String())
}

func TestIdentityJSON(t *testing.T) {
	data, err := json.Marshal(model.NewIdentity(7))
	require.NoError(t, err)
	assert.Equal(t, "7", string(data))

	data, err = json.Marshal(model.Identity{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	var id model.Identity
	require.NoError(t, json.Unmarshal([]byte("7"), &id))
	assert.Equal(t, int64(7), id.Int64())
	require.NoError(t, json.Unmarshal([]byte("null"), &id))
	assert.False(t, id.Assigned())
}
