package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setPublicEnv(t *testing.T) {
	t.Setenv("API_LINK", "https://api.kraken.com")
	t.Setenv("SERVER_TIME_ENDPOINT", "/0/public/Time")
	t.Setenv("ASSET_PAIR_ENDPOINT", "/0/public/AssetPairs")
}

func setPrivateEnv(t *testing.T) {
	t.Setenv("API_LINK", "https://api.kraken.com")
	t.Setenv("OPEN_ORDERS_ENDPOINT", "/0/private/OpenOrders")
	t.Setenv("API_KEY", "key")
	t.Setenv("API_SECRET", "c2VjcmV0")
	t.Setenv("OTP_SECRET", "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ")
}

func TestLoadConfigDefaults(t *testing.T) {
	setPublicEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "features", cfg.Run.FeaturesDir)
	assert.Equal(t, "schemas", cfg.Run.SchemasDir)
	assert.Equal(t, "results", cfg.Run.ResultsDir)
	assert.Equal(t, 10*time.Second, cfg.Run.HTTPTimeout)
	assert.Equal(t, 3, cfg.Run.MaxRetries)
	assert.Equal(t, 0, cfg.Run.MetricsPort)
	assert.Equal(t, "https://api.kraken.com", cfg.API.Link)
	assert.Equal(t, "/0/public/Time", cfg.API.ServerTimeEndpoint)
}

func TestValidatePublic(t *testing.T) {
	setPublicEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.NoError(t, cfg.ValidatePublic())
}

func TestValidatePublicMissingEndpoint(t *testing.T) {
	t.Setenv("API_LINK", "https://api.kraken.com")
	t.Setenv("SERVER_TIME_ENDPOINT", "/0/public/Time")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	err = cfg.ValidatePublic()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ASSET_PAIR_ENDPOINT")
}

func TestValidatePublicRelativeLink(t *testing.T) {
	setPublicEnv(t)
	t.Setenv("API_LINK", "api.kraken.com")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	err = cfg.ValidatePublic()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_LINK")
}

func TestValidatePublicBadEndpointPrefix(t *testing.T) {
	setPublicEnv(t)
	t.Setenv("ASSET_PAIR_ENDPOINT", "0/public/AssetPairs")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	err = cfg.ValidatePublic()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with '/'")
}

func TestValidatePrivate(t *testing.T) {
	setPrivateEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.NoError(t, cfg.ValidatePrivate())
}

func TestValidatePrivateMissingCredentials(t *testing.T) {
	for _, name := range []string{"API_KEY", "API_SECRET", "OTP_SECRET"} {
		t.Run(name, func(t *testing.T) {
			setPrivateEnv(t)
			t.Setenv(name, "")

			cfg, err := LoadConfig("")
			require.NoError(t, err)
			err = cfg.ValidatePrivate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	setPublicEnv(t)
	_, err := LoadConfig("does-not-exist.yaml")
	assert.Error(t, err)
}
