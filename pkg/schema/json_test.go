package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONValueAndScan(t *testing.T) {
	j := JSON(`{"a":1}`)
	v, err := j.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), v)

	var empty JSON
	v, err = empty.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	var scanned JSON
	require.NoError(t, scanned.Scan([]byte(`{"b":2}`)))
	assert.Equal(t, `{"b":2}`, string(scanned))

	require.NoError(t, scanned.Scan("{\"c\":3}"))
	assert.Equal(t, `{"c":3}`, string(scanned))

	require.NoError(t, scanned.Scan(nil))
	assert.Nil(t, []byte(scanned))

	assert.Error(t, scanned.Scan(42))
}

func TestJSONIsNull(t *testing.T) {
	var j JSON
	assert.True(t, j.IsNull())
	assert.True(t, JSON("null").IsNull())
	assert.False(t, JSON(`{}`).IsNull())
}

func TestJSONMarshalUnmarshal(t *testing.T) {
	type wrapper struct {
		Payload JSON `json:"payload"`
	}

	w := wrapper{Payload: JSON(`{"x":1}`)}
	b, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"payload":{"x":1}}`, string(b))

	var out wrapper
	require.NoError(t, json.Unmarshal(b, &out))
	assert.JSONEq(t, `{"x":1}`, string(out.Payload))

	var empty wrapper
	b, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"payload":null}`, string(b))
}

func TestJSONUnmarshalInto(t *testing.T) {
	type target struct {
		X int `json:"x"`
	}
	var out target
	require.NoError(t, JSON(`{"x":5}`).Unmarshal(&out))
	assert.Equal(t, 5, out.X)

	var out2 target
	require.NoError(t, JSON(nil).Unmarshal(&out2))
	assert.Equal(t, 0, out2.X)
}

func TestMarshalToJSONAndNewJSON(t *testing.T) {
	j, err := MarshalToJSON(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(j))

	raw := NewJSON([]byte(`[1,2,3]`))
	assert.Equal(t, `[1,2,3]`, string(raw))
}
