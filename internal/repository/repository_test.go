package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/live-relay/internal/domain"
	"github.com/weiawesome/live-relay/pkg/database"
)

func newRepos(t *testing.T) map[string]AdminRepository {
	t.Helper()

	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &domain.AdminModel{}))
	t.Cleanup(func() { _ = database.Close(db) })

	return map[string]AdminRepository{
		"memory": NewMemoryAdminRepository(),
		"gorm":   NewGormAdminRepository(db),
	}
}

func TestAdminRepository(t *testing.T) {
	for name, repo := range newRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			a := &domain.Admin{Username: "Alice", PasswordHash: "hash"}
			require.NoError(t, repo.Create(ctx, a))
			assert.NotEmpty(t, a.ID)

			got, err := repo.GetByUsername(ctx, "ALICE")
			require.NoError(t, err)
			assert.Equal(t, a.ID, got.ID)
			assert.Equal(t, "Alice", got.Username)
			assert.Equal(t, "hash", got.PasswordHash)

			err = repo.Create(ctx, &domain.Admin{Username: "alice", PasswordHash: "x"})
			assert.ErrorIs(t, err, ErrUsernameExists)

			_, err = repo.GetByUsername(ctx, "bob")
			assert.ErrorIs(t, err, ErrAdminNotFound)
		})
	}
}
