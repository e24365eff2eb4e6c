package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbus/internal/users"
)

func TestUsersRepository(t *testing.T) {
	db := SetupMongo(t)
	repo := users.NewRepository(db)
	ctx := context.Background()

	alice := &users.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, repo.Create(ctx, alice))
	assert.NotEmpty(t, alice.ID)
	assert.False(t, alice.CreatedAt.IsZero())

	bob := &users.User{Name: "Bob", Email: "bob@example.com"}
	require.NoError(t, repo.Create(ctx, bob))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// Newest first.
	assert.Equal(t, "Bob", list[0].Name)
	assert.Equal(t, "Alice", list[1].Name)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
