package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestEntity_IDAndMetadata(t *testing.T) {
	e := Entity{"name": "ann"}
	assert.Equal(t, "", e.ID())

	e.SetID("p1")
	assert.Equal(t, "p1", e.ID())

	e["_kmd"] = map[string]any{"ect": "2024-01-02T03:04:05Z", "lmt": "2024-02-03T04:05:06.5Z"}
	md := e.Metadata()
	assert.Equal(t, "2024-01-02T03:04:05Z", md.Created)
	assert.Equal(t, time.Date(2024, 2, 3, 4, 5, 6, 500000000, time.UTC), e.ModifiedAt())

	e["_kmd"] = "garbage"
	assert.Equal(t, Metadata{}, e.Metadata())
	assert.True(t, e.ModifiedAt().IsZero())
}

func TestFromValueDecode(t *testing.T) {
	p := person{ID: "p1", Name: "ann", Age: 30}

	e, err := FromValue(p)
	require.NoError(t, err)
	assert.Equal(t, "p1", e.ID())
	assert.Equal(t, 30.0, e["age"])

	back, err := Decode[person](e)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestFromValue_RejectsNonObjects(t *testing.T) {
	_, err := FromValue([]int{1, 2})
	require.Error(t, err)

	_, err = FromValue((*person)(nil))
	require.ErrorIs(t, err, ErrNotADocument)
}

func TestClone_IsDeep(t *testing.T) {
	e := Entity{"_id": "x", "nested": map[string]any{"a": 1}}
	c, err := e.Clone()
	require.NoError(t, err)

	c["nested"].(map[string]any)["a"] = 2.0
	assert.Equal(t, 1, e["nested"].(map[string]any)["a"])

	var nilEntity Entity
	c, err = nilEntity.Clone()
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestOperationValid(t *testing.T) {
	for _, op := range []Operation{OperationGet, OperationPut, OperationPost, OperationDelete, OperationQuery} {
		assert.True(t, op.Valid(), op)
	}
	assert.False(t, Operation("PATCH").Valid())
}
