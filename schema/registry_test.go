package schema

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joewhite86/frogr/graph"
	"github.com/joewhite86/frogr/model"
)

type Person struct {
	model.Entity
	Name        string    `frogr:"unique,indexed=lowercase"`
	Nickname    string    `frogr:"nullRemove"`
	Secret      string    `frogr:"-"`
	Age         int64     `frogr:"indexed"`
	Partner     *Person   `frogr:"relatedTo=MarriedWith"`
	Friends     []*Person `frogr:"relatedTo=Knows,multiple"`
	MarriedWith *MarriedWith
	LikeCount   int64 `frogr:"relationshipCount=Likes,direction=incoming"`
}

type MarriedWith struct {
	model.BaseRelationship[*Person, *Person]
	Since string
}

type named interface {
	model.Model
	DisplayName() string
}

func (p *Person) DisplayName() string { return p.Name }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&Person{}, &MarriedWith{}))
	return r
}

func TestRegisterRejectsNonPointer(t *testing.T) {
	r := NewRegistry(nil)
	assert.Error(t, r.Register(nil))
}

func TestRegisterSkipsBaseFields(t *testing.T) {
	r := newTestRegistry(t)
	descriptors, err := r.Descriptors(&Person{})
	require.NoError(t, err)

	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name())
	}
	assert.NotContains(t, names, "id")
	assert.NotContains(t, names, "uuid")
	assert.NotContains(t, names, "created")
	assert.NotContains(t, names, "secret")
	assert.Contains(t, names, "name")
	assert.Contains(t, names, "likeCount")
}

func TestRegisterSkipsRelationshipEndpoints(t *testing.T) {
	r := newTestRegistry(t)
	descriptors, err := r.Descriptors(&MarriedWith{})
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "since", descriptors[0].Name())
}

func TestAnnotationsParsed(t *testing.T) {
	r := newTestRegistry(t)
	personType := StructType(&Person{})

	name, err := r.Descriptor(personType, "name")
	require.NoError(t, err)
	assert.True(t, name.Annotations().Unique)
	assert.Equal(t, IndexLowerCase, name.Annotations().Indexed)

	age, err := r.Descriptor(personType, "age")
	require.NoError(t, err)
	assert.Equal(t, IndexDefault, age.Annotations().Indexed)

	nickname, err := r.Descriptor(personType, "nickname")
	require.NoError(t, err)
	assert.True(t, nickname.Annotations().NullRemove)

	friends, err := r.Descriptor(personType, "friends")
	require.NoError(t, err)
	require.NotNil(t, friends.Annotations().RelatedTo)
	assert.Equal(t, "Knows", friends.Annotations().RelatedTo.Type)
	assert.True(t, friends.Annotations().RelatedTo.Multiple)
	assert.True(t, friends.IsCollection())
	assert.True(t, friends.IsModel())

	count, err := r.Descriptor(personType, "likeCount")
	require.NoError(t, err)
	require.NotNil(t, count.Annotations().RelationshipCount)
	assert.Equal(t, graph.Incoming, count.Annotations().RelationshipCount.Direction)

	married, err := r.Descriptor(personType, "marriedWith")
	require.NoError(t, err)
	assert.True(t, married.IsRelationship())
	assert.False(t, married.IsModel())
}

func TestDescriptorDottedPath(t *testing.T) {
	r := newTestRegistry(t)
	personType := StructType(&Person{})

	nested, err := r.Descriptor(personType, "partner.name")
	require.NoError(t, err)
	assert.Equal(t, "name", nested.Name())
	assert.True(t, nested.Annotations().Unique)

	_, err = r.Descriptor(personType, "age.name")
	assert.Error(t, err)

	_, err = r.Descriptor(personType, "missing")
	assert.Error(t, err)
}

func TestDescriptorValueAccess(t *testing.T) {
	r := newTestRegistry(t)
	p := &Person{Name: "Ada"}

	d, err := r.Descriptor(StructType(p), "name")
	require.NoError(t, err)
	assert.Equal(t, "Ada", d.Value(StructValue(p)).String())
}

func TestTypeLookups(t *testing.T) {
	r := newTestRegistry(t)

	assert.True(t, r.Contains("Person"))
	assert.False(t, r.Contains("Animal"))
	assert.Equal(t, "Person", r.NameOf(&Person{}))

	instance, err := r.NewInstance("Person")
	require.NoError(t, err)
	_, ok := instance.(*Person)
	assert.True(t, ok)

	_, err = r.NewInstance("Animal")
	assert.Error(t, err)

	assert.Equal(t, []string{"MarriedWith", "Person"}, r.Names())
}

func TestSubTypesOf(t *testing.T) {
	r := newTestRegistry(t)
	types := r.SubTypesOf(reflect.TypeOf((*named)(nil)).Elem())
	require.Len(t, types, 1)
	assert.Equal(t, "Person", types[0].Name())
}
