package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/newthinker/btsweep/internal/result"
	"github.com/newthinker/btsweep/internal/storage/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListTestNumbers(t *testing.T) {
	ctx := context.Background()
	store, err := sqlstore.Open(filepath.Join(t.TempDir(), "results.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	for _, tn := range []string{"aa11", "bb22"} {
		_, err := store.Append(ctx, &result.Aggregate{TestNumber: tn, Tables: []result.Table{{
			Name: result.TableDimension, Columns: []string{"test_number", "sma_fast"}, Rows: [][]any{{tn, 2}},
		}}})
		require.NoError(t, err)
	}

	var out bytes.Buffer
	require.NoError(t, listTestNumbers(ctx, &out, store))
	assert.Equal(t, "aa11\nbb22\n", out.String())
}
