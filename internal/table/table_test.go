package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaIndexAndNames(t *testing.T) {
	t.Parallel()

	s := Schema{{"ANIO", Int64}, {"VALOR", Float64}, {"TRANSPORTE", String}}
	assert.Equal(t, []string{"ANIO", "VALOR", "TRANSPORTE"}, s.Names())
	assert.Equal(t, 1, s.Index("VALOR"))
	assert.Equal(t, -1, s.Index("valor"))
	assert.Equal(t, "ANIO:int64,VALOR:float64,TRANSPORTE:string", s.String())
}

func TestAppend_AdoptsThenEnforcesSchema(t *testing.T) {
	t.Parallel()

	tb := New(nil)
	s := Schema{{"A", Int64}}
	require.NoError(t, tb.Append(s, [][]any{{int64(1)}}))
	require.NoError(t, tb.Append(s, [][]any{{int64(2)}, {int64(3)}}))
	assert.Equal(t, 3, tb.Len())

	err := tb.Append(Schema{{"A", Float64}}, [][]any{{1.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema mismatch")

	col, err := tb.Column("A")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, col)

	_, err = tb.Column("B")
	assert.Error(t, err)
}

func TestClone_IsIndependent(t *testing.T) {
	t.Parallel()

	s := Schema{{"A", String}}
	c := s.Clone()
	c[0].Kind = Int64
	assert.Equal(t, String, s[0].Kind)
	assert.False(t, s.Equal(c))
}
