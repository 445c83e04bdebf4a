package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pansave/pansave/internal/config"
	"github.com/pansave/pansave/internal/drive"
	"github.com/pansave/pansave/internal/registry"
)

func TestPickSources(t *testing.T) {
	entries := []drive.FileEntry{
		{ID: "1", Name: "a.mkv"},
		{ID: "2", Name: "b.mkv"},
		{ID: "3", Name: "notes.txt"},
	}

	t.Run("all by default", func(t *testing.T) {
		got, err := pickSources(entries, nil)
		require.NoError(t, err)
		assert.Equal(t, entries, got)
	})

	t.Run("subset in requested order", func(t *testing.T) {
		got, err := pickSources(entries, []string{"notes.txt", "a.mkv"})
		require.NoError(t, err)

		require.Len(t, got, 2)
		assert.Equal(t, "notes.txt", got[0].Name)
		assert.Equal(t, "a.mkv", got[1].Name)
	})

	t.Run("unknown name rejected", func(t *testing.T) {
		_, err := pickSources(entries, []string{"missing.bin"})
		assert.ErrorContains(t, err, "missing.bin")
	})

	t.Run("empty share rejected", func(t *testing.T) {
		_, err := pickSources(nil, nil)
		assert.Error(t, err)
	})
}

func TestCollidingNames(t *testing.T) {
	sources := []drive.FileEntry{
		{Name: "a.mkv"},
		{Name: "b.mkv"},
		{Name: "c.mkv"},
	}
	existing := []drive.FileEntry{
		{Name: "c.mkv"},
		{Name: "a.mkv"},
		{Name: "unrelated.txt"},
	}

	assert.Equal(t, []string{"a.mkv", "c.mkv"}, collidingNames(sources, existing))
	assert.Empty(t, collidingNames(sources, nil))
}

func TestLookupError(t *testing.T) {
	t.Run("names the provider when the lookup was provider-specific", func(t *testing.T) {
		err := lookupError(&registry.NoAccountError{Kind: drive.KindBaidu})
		assert.Contains(t, err.Error(), "Baidu Netdisk")
		assert.Contains(t, err.Error(), config.DefaultConfigPath())
	})

	t.Run("generic message without a provider", func(t *testing.T) {
		err := lookupError(&registry.NoAccountError{})
		assert.Contains(t, err.Error(), "no usable account")
	})

	t.Run("other errors pass through", func(t *testing.T) {
		orig := errors.New("boom")
		assert.Same(t, orig, lookupError(orig))
	})
}
