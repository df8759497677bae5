package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-ai/cli/internal/domain"
)

func TestResolveModelDefaults(t *testing.T) {
	model, err := ResolveModel("")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, model)
}

func TestResolveModelKnown(t *testing.T) {
	for _, m := range AvailableModels {
		got, err := ResolveModel(m.ID)
		require.NoError(t, err)
		assert.Equal(t, m.ID, got)
	}
}

func TestResolveModelUnknown(t *testing.T) {
	_, err := ResolveModel("acme/imaginary-1")
	assert.ErrorIs(t, err, domain.ErrUnknownModel)
}

func TestDefaultModelIsAvailable(t *testing.T) {
	_, err := ResolveModel(DefaultModel)
	assert.NoError(t, err)
}
