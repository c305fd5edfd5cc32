package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_GooseAnnotated(t *testing.T) {
	files, err := fs.Glob(migrationFS, migrationDir+"/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		t.Run(name, func(t *testing.T) {
			raw, err := migrationFS.ReadFile(name)
			require.NoError(t, err)
			body := string(raw)

			assert.True(t, strings.HasPrefix(body, "-- +goose Up"), "must open with the Up marker")
			assert.Contains(t, body, "-- +goose Down")
			assert.Equal(t,
				strings.Count(body, "-- +goose StatementBegin"),
				strings.Count(body, "-- +goose StatementEnd"),
				"statement blocks must be balanced",
			)
			if strings.Contains(body, "$$") {
				assert.Contains(t, body, "-- +goose StatementBegin", "function bodies need a statement block")
			}
		})
	}
}
