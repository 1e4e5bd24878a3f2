package queryir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datastack/internal/ir"
)

func personSchema() *ir.EntitySchema {
	return &ir.EntitySchema{Name: "Person", Attributes: map[string]ir.AttributeType{
		"name":      ir.TypeString,
		"age":       ir.TypeInt,
		"score":     ir.TypeFloat,
		"active":    ir.TypeBool,
		"birthDate": ir.TypeTime,
	}}
}

func TestParseCondition(t *testing.T) {
	es := personSchema()
	born := time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want Compare
	}{
		{"name=Ada", Eq("name", ir.String("Ada"))},
		{`name="Ada Lovelace"`, Eq("name", ir.String("Ada Lovelace"))},
		{"name = 42", Eq("name", ir.String("42"))},
		{"age>=21", Ge("age", ir.Int(21))},
		{"age<=21", Le("age", ir.Int(21))},
		{"age<21", Lt("age", ir.Int(21))},
		{"age>21", Gt("age", ir.Int(21))},
		{"age!=null", Ne("age", ir.Null{})},
		{"score>1.5", Gt("score", ir.Float(1.5))},
		{"active=true", Eq("active", ir.Bool(true))},
		{"birthDate<1815-12-10T00:00:00Z", Lt("birthDate", ir.NewTime(born))},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseCondition(es, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCondition_Errors(t *testing.T) {
	es := personSchema()

	for _, expr := range []string{
		"name",         // no operator
		"=Ada",         // no field
		"nickname=Ada", // undeclared
		"age=old",      // not an int
		"active=maybe", // not a bool
		"birthDate<yesterday",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseCondition(es, expr)
			assert.Error(t, err)
		})
	}
}

func TestParseConditions(t *testing.T) {
	es := personSchema()

	p, err := ParseConditions(es, nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = ParseConditions(es, []string{"age>20"})
	require.NoError(t, err)
	assert.Equal(t, Gt("age", ir.Int(20)), p)

	p, err = ParseConditions(es, []string{"age>20", "active=true"})
	require.NoError(t, err)
	assert.Equal(t, AllOf(Gt("age", ir.Int(20)), Eq("active", ir.Bool(true))), p)
}

func TestParseSort(t *testing.T) {
	d, err := ParseSort("name")
	require.NoError(t, err)
	assert.Equal(t, Asc("name"), d)

	d, err = ParseSort("age:desc")
	require.NoError(t, err)
	assert.Equal(t, Desc("age"), d)

	d, err = ParseSort("age:ASC")
	require.NoError(t, err)
	assert.Equal(t, Asc("age"), d)

	_, err = ParseSort("age:sideways")
	assert.Error(t, err)
	_, err = ParseSort("bad key")
	assert.Error(t, err)
}
