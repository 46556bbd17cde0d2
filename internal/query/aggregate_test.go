package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orders() []doc {
	return []doc{
		{"_id": "1", "city": "riga", "total": 10.0},
		{"_id": "2", "city": "oslo", "total": 5.0},
		{"_id": "3", "city": "riga", "total": 30.0},
		{"_id": "4", "city": "oslo", "total": "n/a"},
		{"_id": "5", "total": 7.0},
	}
}

func results(gs []Group, field string) map[any]float64 {
	out := map[any]float64{}
	for _, g := range gs {
		out[g.Key[field]] = g.Result
	}
	return out
}

func TestAggregate_ReduceFunctions(t *testing.T) {
	tests := []struct {
		name string
		a    Aggregation
		want map[any]float64
	}{
		{"count", Count("city"), map[any]float64{"riga": 2, "oslo": 2, nil: 1}},
		{"sum skips non-numeric", Sum("total", "city"), map[any]float64{"riga": 40, "oslo": 5, nil: 7}},
		{"min", Min("total", "city"), map[any]float64{"riga": 10, "oslo": 5, nil: 7}},
		{"max", Max("total", "city"), map[any]float64{"riga": 30, "oslo": 5, nil: 7}},
		{"average over numeric values", Average("total", "city"), map[any]float64{"riga": 20, "oslo": 5, nil: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Aggregate(tt.a, nil, orders())
			require.NoError(t, err)
			assert.Equal(t, tt.want, results(got, "city"))
		})
	}
}

func TestAggregate_OrderConditionAndNoKey(t *testing.T) {
	got, err := Aggregate(Count("city"), nil, orders())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "riga", got[0].Key["city"])
	assert.Equal(t, "oslo", got[1].Key["city"])
	assert.Nil(t, got[2].Key["city"])

	got, err = Aggregate(Sum("total"), New().Equals("city", "riga").SetLimit(1), orders())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Key)
	assert.Equal(t, 40.0, got[0].Result)

	got, err = Aggregate(Count(), New().Equals("city", "nowhere"), orders())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAggregate_Validation(t *testing.T) {
	for _, a := range []Aggregation{
		{Reduce: "median", Field: "x"},
		{Reduce: ReduceSum},
		Count("city", ""),
	} {
		_, err := Aggregate(a, nil, orders())
		assert.ErrorIs(t, err, ErrInvalidQuery, a)
	}
	_, err := Aggregate(Count(), New().SetSkip(-1), orders())
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestAggregationWire(t *testing.T) {
	body, err := EncodeAggregation(Sum("total", "city"), New().GreaterThan("total", 6))
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":["city"],"reduce":"sum","field":"total","condition":{"total":{"$gt":6}}}`, string(body))

	a, cond, err := DecodeAggregation(body)
	require.NoError(t, err)
	assert.Equal(t, Sum("total", "city"), a)
	got, err := Aggregate(a, cond, orders())
	require.NoError(t, err)
	assert.Equal(t, map[any]float64{"riga": 40, nil: 7}, results(got, "city"))

	body, err = EncodeAggregation(Count(), nil)
	require.NoError(t, err)
	a, cond, err = DecodeAggregation(body)
	require.NoError(t, err)
	assert.Equal(t, ReduceCount, a.Reduce)
	assert.Nil(t, cond)

	_, _, err = DecodeAggregation([]byte(`{"reduce":"median"}`))
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestGroupJSON(t *testing.T) {
	b, err := json.Marshal([]Group{{Key: map[string]any{"city": "riga"}, Result: 2}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"city":"riga","_result":2}]`, string(b))

	var gs []Group
	require.NoError(t, json.Unmarshal(b, &gs))
	require.Len(t, gs, 1)
	assert.Equal(t, "riga", gs[0].Key["city"])
	assert.Equal(t, 2.0, gs[0].Result)

	assert.Error(t, json.Unmarshal([]byte(`[{"city":"riga"}]`), &gs))
}
