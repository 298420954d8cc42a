package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreMemory(t *testing.T) {
	for _, kind := range []string{"", "memory"} {
		store, err := NewStore(kind, "")
		require.NoError(t, err)
		require.NotNil(t, store)
		assert.NoError(t, CloseIfSupported(store))
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("unknown", "")
	assert.Error(t, err)
}

func TestDefaultStoreKindIsKnown(t *testing.T) {
	assert.Contains(t, []string{"memory", "sqlite"}, DefaultStoreKind())
}
