package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestore_Navigate(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())
	key := Key("sess", BatchKey)

	items, err := Restore(ctx, s, key, Navigate)
	require.NoError(t, err)
	assert.Empty(t, items, "nothing stored yet")

	require.NoError(t, s.Save(ctx, key, []byte(`[{"id":"v1","amountPayable":"150"}]`)))
	items, err = Restore(ctx, s, key, Navigate)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(150), items[0].AmountPayable)
}

func TestRestore_ReloadDiscards(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())
	key := Key("sess", BatchKey)
	require.NoError(t, s.Save(ctx, key, []byte(`[{"id":"v1"}]`)))

	items, err := Restore(ctx, s, key, Reload)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, ok, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "reload should delete the stored batch")
}

func TestRestore_Corrupt(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())
	key := Key("sess", BatchKey)
	require.NoError(t, s.Save(ctx, key, []byte(`garbage`)))

	items, err := Restore(ctx, s, key, Navigate)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Empty(t, items)
}

func TestParseNavigation(t *testing.T) {
	assert.Equal(t, Reload, ParseNavigation("reload"))
	assert.Equal(t, Navigate, ParseNavigation("navigate"))
	assert.Equal(t, Navigate, ParseNavigation(""))
}

func TestCurrentAndRotate(t *testing.T) {
	dir := t.TempDir()

	first, err := Current(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	again, err := Current(dir)
	require.NoError(t, err)
	assert.Equal(t, first, again, "current session is stable")

	next, err := Rotate(dir)
	require.NoError(t, err)
	assert.NotEqual(t, first, next)

	now, err := Current(dir)
	require.NoError(t, err)
	assert.Equal(t, next, now)
}
