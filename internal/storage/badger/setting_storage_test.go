package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recensio/internal/models"
)

func TestSettingRoundTrip(t *testing.T) {
	db := newTestDB(t)
	storage := NewSettingStorage(db, arbor.NewLogger())
	ctx := context.Background()

	url := "https://yandex.ru/maps/org/italy/42/reviews/"
	require.NoError(t, storage.Set(ctx, models.SettingSourceURL, url))

	got, err := storage.Get(ctx, models.SettingSourceURL)
	require.NoError(t, err)
	assert.Equal(t, url, got)
}

func TestSettingMissingKeyReturnsEmpty(t *testing.T) {
	db := newTestDB(t)
	storage := NewSettingStorage(db, arbor.NewLogger())

	got, err := storage.Get(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSettingOverwrite(t *testing.T) {
	db := newTestDB(t)
	storage := NewSettingStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "key", "first"))
	require.NoError(t, storage.Set(ctx, "key", "second"))

	got, err := storage.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestSettingGetAll(t *testing.T) {
	db := newTestDB(t)
	storage := NewSettingStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "a", "1"))
	require.NoError(t, storage.Set(ctx, "b", "2"))

	all, err := storage.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)
}
