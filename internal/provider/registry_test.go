package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLoadFromConfig(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.LoadFromConfig(&ProviderConfig{
		Name:    "offline",
		Type:    ProviderTypeFixture,
		Enabled: true,
		Config:  map[string]interface{}{"dir": t.TempDir()},
	}))
	require.NoError(t, r.LoadFromConfig(&ProviderConfig{
		Name:    "anthropic",
		Type:    ProviderTypeAPI,
		Enabled: true,
		Config:  map[string]interface{}{"api_key": "k"},
	}))
	require.NoError(t, r.LoadFromConfig(&ProviderConfig{
		Name: "openai",
		Type: ProviderTypeAPI,
	}), "disabled providers are skipped")

	assert.Equal(t, []string{"anthropic", "offline"}, r.List())

	p, err := r.Get("offline")
	require.NoError(t, err)
	assert.Equal(t, ProviderTypeFixture, p.GetInfo().Type)

	_, err = r.Get("openai")
	assert.Error(t, err)

	require.NoError(t, r.CloseAll())
	assert.Empty(t, r.List())
}

func TestRegistryRejects(t *testing.T) {
	r := NewRegistry()
	stub := &stubClient{}

	require.NoError(t, r.Register("stub", stub))
	assert.Error(t, r.Register("stub", stub))

	assert.Error(t, r.LoadFromConfig(&ProviderConfig{Enabled: true}))
	assert.Error(t, r.LoadFromConfig(&ProviderConfig{Name: "x", Type: "grpc", Enabled: true}))
	assert.Error(t, r.LoadFromConfig(&ProviderConfig{Name: "mystery", Type: ProviderTypeAPI, Enabled: true}))
}

func TestNewProviderAPIAlias(t *testing.T) {
	p, err := NewProvider(&ProviderConfig{
		Name:   "azure-openai",
		Type:   ProviderTypeAPI,
		Config: map[string]interface{}{"api": "openai", "api_key": "k"},
	})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)
}
