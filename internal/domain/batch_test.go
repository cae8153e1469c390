package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindInteger, "integer"},
		{KindFloat, "float"},
		{KindString, "string"},
		{KindTimestamp, "timestamp"},
		{KindNull, "null"},
		{KindUnsupported, "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestFieldValue_Any(t *testing.T) {
	ts := time.Unix(1700000000, 0)

	assert.Equal(t, int64(7), IntValue(7).Any())
	assert.InDelta(t, 3.5, FloatValue(3.5).Any(), 0)
	assert.Equal(t, "x", StringValue("x").Any())
	assert.Equal(t, ts.UTC(), TimestampValue(ts).Any())
	assert.Nil(t, NullValue().Any())
}

func TestTimestampValue_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	v := TimestampValue(time.Unix(1700000000, 0).In(loc))
	assert.Equal(t, time.UTC, v.Time.Location())
	assert.Equal(t, int64(1700000000), v.Time.Unix())
}

func TestColumnarBatch_Row(t *testing.T) {
	b := &ColumnarBatch{
		Columns: []*Column{
			{Name: "a", Kind: KindInteger, Values: []FieldValue{IntValue(1), NullValue()}},
			{Name: "b", Kind: KindString, Values: []FieldValue{StringValue("x"), StringValue("y")}},
		},
		RowCount: 2,
	}

	assert.Equal(t, []any{int64(1), "x"}, b.Row(0))
	assert.Equal(t, []any{nil, "y"}, b.Row(1))
	assert.NotNil(t, b.Column("b"))
	assert.Nil(t, b.Column("missing"))
}

func TestMismatchPolicy_Validate(t *testing.T) {
	assert.NoError(t, MismatchReject.Validate())
	assert.NoError(t, MismatchDropRow.Validate())
	assert.Error(t, MismatchPolicy("skip").Validate())
}
