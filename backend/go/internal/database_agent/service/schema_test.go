package service

import (
	"Conductor/backend/go/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnKinds(t *testing.T) {
	assert.Equal(t, models.KindInteger, models.KindFromType("bigint"))
	assert.Equal(t, models.KindString, models.KindFromType("varchar(255)"))
	assert.Equal(t, models.KindJSON, models.KindFromType("jsonb"))
	assert.Equal(t, models.KindTimestamp, models.KindFromType("timestamp with time zone"))
	assert.Equal(t, models.KindAny, models.KindFromType("tsvector"))

	assert.True(t, models.KindInteger.Accepts(3.0))
	assert.False(t, models.KindInteger.Accepts(3.5))
	assert.True(t, models.KindJSON.Accepts(map[string]any{"a": 1}))
	assert.True(t, models.KindTimestamp.Accepts("2025-01-02T03:04:05Z"))
	assert.True(t, models.KindTimestamp.Accepts("2025-01-02T03:04:05"))
	assert.True(t, models.KindTimestamp.Accepts("2025-01-02 03:04:05.123456+08"))
	assert.False(t, models.KindTimestamp.Accepts("yesterday"))
	assert.True(t, models.KindAny.Accepts(struct{}{}))
}

func TestTimestampAcceptsPostgresForms(t *testing.T) {
	for _, v := range []string{
		"2025-01-02",
		"2025-01-02T03:04:05",
		"2025-01-02 03:04:05",
		"2025-01-02T03:04:05.123456",
		"2025-01-02 03:04:05.5",
		"2025-01-02T03:04:05.123Z",
		"2025-01-02T03:04:05+08:00",
		"2025-01-02 03:04:05+08",
		"2025-01-02 03:04:05.123456-05",
		"2025-01-02T03:04:05+0530",
	} {
		assert.True(t, models.KindTimestamp.Accepts(v), v)
	}
	for _, v := range []string{"2025-01-02T03:04", "02/01/2025", "2025-13-02", "2025-01-02 03:04:05 PST"} {
		assert.False(t, models.KindTimestamp.Accepts(v), v)
	}

	schema := models.NewTableSchema("events", []models.Column{
		{Name: "starts_at", Kind: models.KindFromType("timestamp without time zone"), Required: true},
	})
	assert.Empty(t, schema.Validate(map[string]any{"starts_at": "2025-06-01 09:30:00"}))
	assert.Len(t, schema.Validate(map[string]any{"starts_at": "soon"}), 1)
	assert.True(t, models.KindAny.Accepts(struct{}{}))
}

func TestValidate_CategoryNeverRequired(t *testing.T) {
	schema := models.NewTableSchema("notes", []models.Column{
		{Name: "title", Kind: models.KindString, Required: true},
		{Name: "category", Kind: models.KindString, Required: true},
	})
	assert.Empty(t, schema.Validate(map[string]any{"title": "x"}))
	assert.Len(t, schema.Validate(map[string]any{"title": nil}), 1)
}

func TestSchemaCommandSQL(t *testing.T) {
	sql, err := SchemaCommand{Type: CommandAddColumn, Table: "t", Column: "c", DataType: "numeric(10,2)"}.SQL()
	assert.NoError(t, err)
	assert.Equal(t, "ALTER TABLE t ADD COLUMN c numeric(10,2);", sql)

	_, err = SchemaCommand{Type: CommandCreateTable, Table: "t"}.SQL()
	assert.Error(t, err)

	_, err = SchemaCommand{Type: CommandAddColumn, Table: "t", Column: "c", DataType: "text; drop"}.SQL()
	assert.Error(t, err)
}

func TestCleanLabel(t *testing.T) {
	assert.Equal(t, "travel", CleanLabel(`"travel".`))
	assert.Equal(t, "Work Notes", CleanLabel("Category: Work Notes\nbecause..."))
	assert.Equal(t, Uncategorized, CleanLabel("  \n"))
}

func TestClassifierPrompt(t *testing.T) {
	p := ClassifierPrompt(map[string]any{"title": "flight"}, []string{"work"})
	assert.Equal(t, `Given the following data: {"title":"flight"}, and these categories: ["work"], suggest the best category or a new concise one.`, p)
}
