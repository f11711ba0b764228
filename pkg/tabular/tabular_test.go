package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berkeley-demography/bigtab/pkg/errors"
)

func TestInferFieldType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   FieldType
	}{
		{"all ints", []string{"1920", "1921", "1922"}, FieldTypeInt},
		{"ints with blanks", []string{"70", "", "  ", "75"}, FieldTypeInt},
		{"mixed int and float", []string{"70", "75.5"}, FieldTypeFloat},
		{"all floats", []string{"1.5", "2.25", "3e4"}, FieldTypeFloat},
		{"one non-numeric poisons column", []string{"1", "2", "JOSH"}, FieldTypeString},
		{"all text", []string{"JOSH", "JOSHUA", "MARY"}, FieldTypeString},
		{"empty column", []string{"", ""}, FieldTypeString},
		{"no values", nil, FieldTypeString},
		{"negative ints", []string{"-3", "0", "12"}, FieldTypeInt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferFieldType(tt.values))
		})
	}
}

func TestConvertValue(t *testing.T) {
	assert.Equal(t, int64(1920), ConvertValue("1920", FieldTypeInt))
	assert.Equal(t, 75.5, ConvertValue("75.5", FieldTypeFloat))
	assert.Equal(t, float64(70), ConvertValue("70", FieldTypeFloat))
	assert.Equal(t, "JOSH", ConvertValue("JOSH", FieldTypeString))
	assert.Equal(t, "JOSH", ConvertValue(" JOSH ", FieldTypeString))
	assert.Nil(t, ConvertValue("", FieldTypeInt))
	assert.Nil(t, ConvertValue("   ", FieldTypeString))
}

func TestFormatValueRoundTrip(t *testing.T) {
	assert.Equal(t, "1920", FormatValue(ConvertValue("1920", FieldTypeInt)))
	assert.Equal(t, "75.5", FormatValue(ConvertValue("75.5", FieldTypeFloat)))
	assert.Equal(t, "JOSH", FormatValue(ConvertValue("JOSH", FieldTypeString)))
	assert.Equal(t, "", FormatValue(nil))
}

func testBatch() *Batch {
	schema := &Schema{
		Name: "deaths",
		Fields: []Field{
			{Name: "fname", Type: FieldTypeString},
			{Name: "byear", Type: FieldTypeInt},
			{Name: "death_age", Type: FieldTypeInt},
		},
	}
	return &Batch{
		Schema: schema,
		Rows: []Row{
			{"fname": "JOSH", "byear": int64(1920), "death_age": int64(70)},
			{"fname": "JOSHUA", "byear": int64(1921), "death_age": int64(75)},
			{"fname": "MARY", "byear": int64(1922), "death_age": int64(80)},
		},
	}
}

func TestFilter(t *testing.T) {
	b := testBatch()

	got, err := b.Filter(Predicate{Column: "fname", Values: []string{"JOSH", "JOSHUA"}})
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "JOSH", got.Rows[0]["fname"])
	assert.Equal(t, "JOSHUA", got.Rows[1]["fname"])
	// Full schema retained, no implicit projection
	assert.Equal(t, 3, got.Width())
}

func TestFilterTypedColumn(t *testing.T) {
	b := testBatch()

	// Predicate values arrive as text and are matched against the typed column
	got, err := b.Filter(Predicate{Column: "byear", Values: []string{"1920", "1922"}})
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "JOSH", got.Rows[0]["fname"])
	assert.Equal(t, "MARY", got.Rows[1]["fname"])
}

func TestFilterNoMatches(t *testing.T) {
	b := testBatch()

	got, err := b.Filter(Predicate{Column: "fname", Values: []string{"NOBODY"}})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestFilterUnknownColumn(t *testing.T) {
	b := testBatch()

	_, err := b.Filter(Predicate{Column: "fname2", Values: []string{"JOSH"}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownColumn))
}

func TestFilterValueOfWrongType(t *testing.T) {
	b := testBatch()

	// A non-numeric value can never match an int column; it is dropped, not
	// an error
	got, err := b.Filter(Predicate{Column: "byear", Values: []string{"JOSH", "1920"}})
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "JOSH", got.Rows[0]["fname"])
}

func TestParseTyped(t *testing.T) {
	v, ok := ParseTyped("1920", FieldTypeInt)
	assert.True(t, ok)
	assert.Equal(t, int64(1920), v)

	_, ok = ParseTyped("JOSH", FieldTypeInt)
	assert.False(t, ok)

	_, ok = ParseTyped("", FieldTypeString)
	assert.False(t, ok)

	v, ok = ParseTyped("70", FieldTypeFloat)
	assert.True(t, ok)
	assert.Equal(t, float64(70), v)
}

func TestPredicateValidation(t *testing.T) {
	_, err := Predicate{Column: "", Values: []string{"x"}}.TypedValues(FieldTypeString)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Predicate{Column: "fname"}.TypedValues(FieldTypeString)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSortRows(t *testing.T) {
	b := testBatch()
	b.Rows[0], b.Rows[2] = b.Rows[2], b.Rows[0]

	SortRows(b)
	assert.Equal(t, "JOSH", b.Rows[0]["fname"])
	assert.Equal(t, "JOSHUA", b.Rows[1]["fname"])
	assert.Equal(t, "MARY", b.Rows[2]["fname"])
}
