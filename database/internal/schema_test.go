package internal_test

import (
	"testing"

	"github.com/sagarc03/satchel/database/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareColumns(t *testing.T) {
	want := internal.Columns{
		"id":   {Type: "uuid"},
		"dir":  {Type: "text"},
		"size": {Type: "bigint"},
	}

	t.Run("match with extra columns", func(t *testing.T) {
		got := internal.Columns{
			"id":    {Type: "uuid"},
			"dir":   {Type: "text"},
			"size":  {Type: "bigint"},
			"notes": {Type: "text", Nullable: true},
		}
		assert.NoError(t, internal.CompareColumns("downloads", want, got))
	})

	t.Run("differences are listed in name order", func(t *testing.T) {
		got := internal.Columns{
			"dir":  {Type: "varchar", Nullable: true},
			"size": {Type: "bigint"},
		}

		err := internal.CompareColumns("downloads", want, got)
		require.Error(t, err)
		assert.Equal(t, "table downloads does not match:\n"+
			"  missing columns: id\n"+
			"  - dir: expected text, got varchar\n"+
			"  - dir: expected nullable=false, got nullable=true\n", err.Error())
	})
}
