package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBinding(t *testing.T) {
	b, err := ParseBinding([]byte(`{
		"name": "items",
		"type": "queueTrigger",
		"direction": "In",
		"dataType": "String",
		"queueName": "orders",
		"properties": {"supportsDeferredBinding": "True", "isBatched": true}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "items", b.Name())
	assert.Equal(t, "queueTrigger", b.Type())
	assert.Equal(t, DirectionIn, b.Direction())
	assert.Equal(t, DataTypeString, b.DataType())
	assert.Equal(t, CardinalityMany, b.Cardinality())
	assert.True(t, b.IsTrigger())
	assert.True(t, b.SupportsDeferredBinding())

	v, ok := b.Property("queueName")
	require.True(t, ok)
	assert.Equal(t, "orders", v)
	assert.NotEmpty(t, b.Raw())

	// The property bag handed out is a copy.
	props := b.Properties()
	props["queueName"] = "changed"
	v, _ = b.Property("queueName")
	assert.Equal(t, "orders", v)
}

func TestParseBinding_DeferredOnlyOnInput(t *testing.T) {
	b, err := ParseBinding([]byte(`{"name":"out","type":"blob","direction":"out","supportsDeferredBinding":true}`))
	require.NoError(t, err)
	assert.Equal(t, DirectionOut, b.Direction())
	assert.False(t, b.IsTrigger())
	assert.False(t, b.SupportsDeferredBinding())
	_, ok := b.Property(PropSupportsDeferredBinding)
	assert.False(t, ok)
}

func TestParseBinding_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"missing direction", `{"name":"a","type":"queue"}`, "Bindings must declare a direction and type."},
		{"missing type", `{"name":"a","direction":"in"}`, "Bindings must declare a direction and type."},
		{"bad direction", `{"name":"a","type":"queue","direction":"sideways"}`, "direction"},
		{"bad data type", `{"name":"a","type":"queue","direction":"in","dataType":"xml"}`, "dataType"},
		{"not json", `{`, "Bindings must declare a direction and type."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBinding([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
