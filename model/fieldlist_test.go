package model_test

import (
	"testing"

	"github.com/joewhite86/frogr/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldsSimple(t *testing.T) {
	fields, err := model.ParseFields("name,age,city")
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, "name", fields[0].Name)
	assert.Equal(t, "age", fields[1].Name)
	assert.Equal(t, "city", fields[2].Name)
	assert.Equal(t, model.DefaultLimit, fields[0].Limit())
	assert.Zero(t, fields[0].Skip())
}

func TestParseFieldsIgnoresSpaces(t *testing.T) {
	fields, err := model.ParseFields("name, age")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "age", fields[1].Name)
}

func TestParseFieldsWindow(t *testing.T) {
	fields, err := model.ParseFields("friends(30)")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Zero(t, fields[0].Skip())
	assert.Equal(t, 30, fields[0].Limit())

	fields, err = model.ParseFields("friends(10;20)")
	require.NoError(t, err)
	assert.Equal(t, 10, fields[0].Skip())
	assert.Equal(t, 20, fields[0].Limit())

	fields, err = model.ParseFields("friends(5;max)")
	require.NoError(t, err)
	assert.Equal(t, 5, fields[0].Skip())
	assert.Equal(t, model.MaxLimit, fields[0].Limit())
}

func TestParseFieldsSubFields(t *testing.T) {
	fields, err := model.ParseFields("name,friends(30).{name,age},age")
	require.NoError(t, err)
	require.Len(t, fields, 3)

	friends := fields.Get("friends")
	require.NotNil(t, friends)
	assert.Equal(t, 30, friends.Limit())
	require.Len(t, friends.SubFields(), 2)
	assert.True(t, friends.SubFields().ContainsField("name"))
	assert.True(t, friends.SubFields().ContainsField("age"))
}

func TestParseFieldsDotShorthand(t *testing.T) {
	fields, err := model.ParseFields("friends.name")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	sub := fields[0].SubFields()
	require.Len(t, sub, 1)
	assert.Equal(t, "name", sub[0].Name)
}

func TestParseFieldsNested(t *testing.T) {
	fields, err := model.ParseFields("friends.{name,friends.{name}}")
	require.NoError(t, err)

	friends := fields.Get("friends")
	require.NotNil(t, friends)
	inner := friends.SubFields().Get("friends")
	require.NotNil(t, inner)
	assert.True(t, inner.SubFields().ContainsField("name"))
}

func TestParseFieldsErrors(t *testing.T) {
	for expr, message := range map[string]string{
		"name}":             "missing {",
		"friends.{name":     "missing }",
		"friends.{name}age": "missing } on field",
		"friends(3":         "missing ) on field",
		"friends(x)":        "cannot parse limit value",
		"friends(a;3)":      "cannot parse skip value",
		"na-me":             "cannot parse character '-'",
	} {
		_, err := model.ParseFields(expr)
		require.Error(t, err, expr)
		var parseErr *model.QueryParseError
		require.ErrorAs(t, err, &parseErr, expr)
		assert.Contains(t, err.Error(), message, expr)
	}
}

func TestParseFieldsMergesDuplicateNames(t *testing.T) {
	fields, err := model.ParseFields("friends.{name},friends(5;20).{age}")
	require.NoError(t, err)
	require.Len(t, fields, 1)

	friends := fields[0]
	assert.Equal(t, 5, friends.Skip())
	assert.Equal(t, 20, friends.Limit())
	assert.True(t, friends.SubFields().ContainsField("name"))
	assert.True(t, friends.SubFields().ContainsField("age"))
}

func TestParseFieldStrings(t *testing.T) {
	fields, err := model.ParseFieldStrings("name", "friends.{name}", "friends.{age}")
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Len(t, fields.Get("friends").SubFields(), 2)

	_, err = model.ParseFieldStrings("name", "na!me")
	assert.Error(t, err)
}

func TestFieldListGetOrEmpty(t *testing.T) {
	fields, err := model.ParseFields("name")
	require.NoError(t, err)

	assert.Same(t, fields[0], fields.GetOrEmpty("name"))

	fresh := fields.GetOrEmpty("missing")
	require.NotNil(t, fresh)
	assert.Equal(t, "missing", fresh.Name)
	assert.Equal(t, model.DefaultLimit, fresh.Limit())
	assert.False(t, fields.ContainsField("missing"))
}

func TestFieldListRemove(t *testing.T) {
	fields, err := model.ParseFields("name,age,city")
	require.NoError(t, err)

	fields = fields.Remove("age")
	require.Len(t, fields, 2)
	assert.False(t, fields.ContainsField("age"))

	fields = fields.Remove("unknown")
	assert.Len(t, fields, 2)
}

func TestFieldListStringRoundTrip(t *testing.T) {
	for _, expr := range []string{
		"name",
		"name,age",
		"friends(30)",
		"friends(5;20)",
		"name,friends(30).{name,age},age",
	} {
		fields, err := model.ParseFields(expr)
		require.NoError(t, err)
		assert.Equal(t, expr, fields.String())
	}
}

func TestNewQueryField(t *testing.T) {
	qf, err := model.NewQueryField("friends(2;7)")
	require.NoError(t, err)
	assert.Equal(t, "friends", qf.Name)
	assert.Equal(t, 2, qf.Skip())
	assert.Equal(t, 7, qf.Limit())

	assert.Panics(t, func() { model.MustQueryField("friends(") })
}
