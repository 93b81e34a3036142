package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedUsesDefaultModelWithoutOverrides(t *testing.T) {
	for _, p := range Seed(nil) {
		assert.Equal(t, DefaultModel, p.ModelName, "persona %s", p.ID)
		assert.NotEmpty(t, p.SystemPrompt)
		assert.NotEmpty(t, p.Voice.ID)
	}
}

func TestSeedAppliesFineTunedModels(t *testing.T) {
	store := NewMemoryStore(Seed(map[string]string{"a": "ft:gpt-4o-mini:museum:a", "b": "  "}))

	a, ok := store.FindByID("a")
	require.True(t, ok)
	assert.Equal(t, "ft:gpt-4o-mini:museum:a", a.ModelName)

	b, ok := store.FindByID("b")
	require.True(t, ok)
	assert.Equal(t, DefaultModel, b.ModelName)
}

func TestLookupKnownArtifact(t *testing.T) {
	store := NewMemoryStore(Seed(nil))

	b := store.Lookup("b")
	assert.Equal(t, "b", b.ID)
	assert.Equal(t, "EXAVITQu4vr4xnSDxMaL", b.Voice.ID)
	assert.Contains(t, b.SystemPrompt, "화문기와")
}

func TestLookupUnknownArtifactFallsBack(t *testing.T) {
	store := NewMemoryStore(Seed(map[string]string{"a": "ft:custom"}))
	a, _ := store.FindByID("a")

	z := store.Lookup("z")
	assert.Equal(t, "z", z.ID)
	assert.Equal(t, DefaultModel, z.ModelName)
	assert.Empty(t, z.SystemPrompt)
	assert.Equal(t, a.Voice.ID, z.Voice.ID)
	assert.Equal(t, a.Voice.Settings, z.Voice.Settings)
}

func TestListReturnsCopy(t *testing.T) {
	store := NewMemoryStore(Seed(nil))

	list := store.List()
	require.Len(t, list, 2)
	list[0].Name = "changed"

	again, _ := store.FindByID(list[0].ID)
	assert.NotEqual(t, "changed", again.Name)
}
