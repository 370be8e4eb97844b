package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecificationsFromJSON(t *testing.T) {
	var specs Specifications
	require.NoError(t, json.Unmarshal([]byte(`{"storage":"256GB","ram":8,"screen":6.1,"5g":true}`), &specs))

	assert.Equal(t, []string{"5g", "ram", "screen", "storage"}, specs.Keys())
	assert.Equal(t, KindString, specs["storage"].Kind())
	assert.Equal(t, KindBool, specs["5g"].Kind())

	n, ok := specs["screen"].AsNumber()
	require.True(t, ok)
	assert.True(t, n.Equal(decimal.RequireFromString("6.1")))
	assert.Equal(t, "8", specs["ram"].Text())
}

func TestSpecificationsRejectNonScalar(t *testing.T) {
	var specs Specifications
	assert.Error(t, json.Unmarshal([]byte(`{"storage":{"size":256}}`), &specs))
	assert.Error(t, json.Unmarshal([]byte(`{"storage":null}`), &specs))
	assert.Error(t, json.Unmarshal([]byte(`{"storage":[1,2]}`), &specs))
}

func TestSpecValueEqual(t *testing.T) {
	assert.True(t, StringValue("a").Equal(StringValue("a")))
	assert.False(t, StringValue("a").Equal(StringValue("A")))
	assert.False(t, IntValue(128).Equal(StringValue("128")))
	assert.False(t, StringValue("128").Equal(IntValue(128)))
	assert.True(t, IntValue(8).Equal(NumberValue(decimal.RequireFromString("8.0"))))
	assert.False(t, BoolValue(true).Equal(StringValue("true")))
	assert.False(t, SpecValue{}.Equal(SpecValue{}))
}

func TestSpecificationsScanValue(t *testing.T) {
	in := Specifications{"storage": StringValue("128GB"), "ram": IntValue(8)}
	v, err := in.Value()
	require.NoError(t, err)

	var out Specifications
	require.NoError(t, out.Scan(v))
	assert.True(t, out["storage"].Equal(in["storage"]))
	assert.True(t, out["ram"].Equal(in["ram"]))

	require.NoError(t, out.Scan(nil))
	assert.Empty(t, out)
}

func TestConditionJSON(t *testing.T) {
	var conds SpecConditions
	require.NoError(t, json.Unmarshal([]byte(`{"storage":"256GB","screen":{"min":6,"max":6.7},"ram":{"min":"8"}}`), &conds))

	assert.False(t, conds["storage"].IsRange())
	assert.True(t, conds["screen"].IsRange())
	assert.True(t, conds["ram"].IsRange())
	assert.Nil(t, conds["ram"].Max)

	assert.True(t, conds["screen"].Matches(StringValue("6.5")))
	assert.False(t, conds["screen"].Matches(BoolValue(true)))

	data, err := json.Marshal(conds)
	require.NoError(t, err)
	var again SpecConditions
	require.NoError(t, json.Unmarshal(data, &again))
	assert.True(t, again["ram"].Min.Equal(decimal.NewFromInt(8)))
	assert.True(t, again["storage"].Exact.Equal(StringValue("256GB")))
}
