package pgvectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/cortex-recall/pkg/store"
)

func TestBuildWhereSQL_Empty(t *testing.T) {
	t.Parallel()

	clause, args, err := buildWhereSQL(nil, 2)
	require.NoError(t, err)
	assert.Empty(t, clause)
	assert.Empty(t, args)
}

func TestBuildWhereSQL_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	where := &store.Where{Clauses: []store.Clause{{Field: "bogus", Op: "=", Value: "x"}}}

	_, _, err := buildWhereSQL(where, 2)
	require.Error(t, err)

	var malformed *store.ErrMalformedPredicate
	assert.ErrorAs(t, err, &malformed)
}

func TestBuildWhereSQL_FilePathUsesAnyArray(t *testing.T) {
	t.Parallel()

	where := &store.Where{Clauses: []store.Clause{{Field: store.FieldFilePath, Op: "=", Value: "pkg/a.go"}}}

	clause, args, err := buildWhereSQL(where, 2)
	require.NoError(t, err)
	assert.Equal(t, "$2 = ANY(files_changed)", clause)
	assert.Equal(t, []any{"pkg/a.go"}, args)
}

func TestEscapeLikePrefix_EscapesWildcards(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `100\%`, escapeLikePrefix("100%"))
}
