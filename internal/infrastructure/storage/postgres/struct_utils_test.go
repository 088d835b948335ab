package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/entity"
	"stockpost/internal/core/id"
)

type shelfRow struct {
	entity.BaseCatalog
	Code     string `db:"code" json:"code"`
	Name     string `db:"name" json:"name"`
	Capacity int    `db:"capacity" json:"capacity"`
	internal string // unexported, must not surface as a column
}

func TestExtractDBColumns_IncludesEmbedded(t *testing.T) {
	cols := ExtractDBColumns[shelfRow]()

	for _, want := range []string{"id", "deletion_mark", "version", "code", "name", "capacity"} {
		assert.Contains(t, cols, want)
	}
	assert.NotContains(t, cols, "internal")
}

func TestExtractDBColumns_CachesLayout(t *testing.T) {
	first := ExtractDBColumns[shelfRow]()
	second := ExtractDBColumns[shelfRow]()
	require.Equal(t, first, second)
}

func TestStructToMap_FlattensEmbedded(t *testing.T) {
	row := shelfRow{
		BaseCatalog: entity.BaseCatalog{
			BaseEntity: entity.BaseEntity{
				ID:           id.New(),
				DeletionMark: true,
				Version:      3,
			},
		},
		Code:     "SHELF-01",
		Name:     "Lower shelf",
		Capacity: 12,
	}

	m := StructToMap(row)

	assert.Equal(t, row.ID, m["id"])
	assert.Equal(t, true, m["deletion_mark"])
	assert.Equal(t, 3, m["version"])
	assert.Equal(t, "SHELF-01", m["code"])
	assert.Equal(t, "Lower shelf", m["name"])
	assert.Equal(t, 12, m["capacity"])
	assert.NotContains(t, m, "internal")
}
