package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	serverTimeSchema = "server_time_schema.json"
	assetPairSchema  = "asset_pair_schema.json"
)

// repoValidator compiles the schema documents shipped in the repo.
func repoValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(filepath.Join("..", "..", "schemas"))
	require.NoError(t, err)
	return v
}

func TestServerTimeWellFormed(t *testing.T) {
	v := repoValidator(t)
	doc := []byte(`{"error":[],"result":{"unixtime":1616336594,"rfc1123":"Sun, 21 Mar 21 14:23:14 +0000"}}`)
	assert.NoError(t, v.Validate(serverTimeSchema, doc))
}

func TestServerTimeMissingField(t *testing.T) {
	v := repoValidator(t)
	doc := []byte(`{"error":[],"result":{"rfc1123":"Sun, 21 Mar 21 14:23:14 +0000"}}`)
	err := v.Validate(serverTimeSchema, doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unixtime")
}

func TestServerTimeWrongType(t *testing.T) {
	v := repoValidator(t)
	doc := []byte(`{"error":[],"result":{"unixtime":"1616336594","rfc1123":"Sun, 21 Mar 21 14:23:14 +0000"}}`)
	assert.Error(t, v.Validate(serverTimeSchema, doc))
}

func TestAssetPairWellFormed(t *testing.T) {
	v := repoValidator(t)
	doc := []byte(`{"error":[],"result":{"XXBTZUSD":{"altname":"XBTUSD","wsname":"XBT/USD","base":"XXBT","quote":"ZUSD","pair_decimals":1,"lot_decimals":8,"lot_multiplier":1,"fees":[[0,0.26]],"ordermin":"0.0001"}}}`)
	assert.NoError(t, v.Validate(assetPairSchema, doc))
}

func TestAssetPairMissingRequired(t *testing.T) {
	v := repoValidator(t)
	doc := []byte(`{"error":[],"result":{"XXBTZUSD":{"altname":"XBTUSD","base":"XXBT","quote":"ZUSD"}}}`)
	err := v.Validate(assetPairSchema, doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pair_decimals")
}

func TestValidationOutcomeIsStable(t *testing.T) {
	// The same document must validate identically on repeated checks.
	v := repoValidator(t)
	doc := []byte(`{"error":[],"result":{"unixtime":1616336594,"rfc1123":"Sun, 21 Mar 21 14:23:14 +0000"}}`)
	assert.NoError(t, v.Validate(serverTimeSchema, doc))
	assert.NoError(t, v.Validate(serverTimeSchema, doc))
}

func TestUnknownSchemaName(t *testing.T) {
	v := repoValidator(t)
	err := v.Validate("nope.json", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown schema")
}

func TestNewValidatorEmptyDir(t *testing.T) {
	_, err := NewValidator(t.TempDir())
	assert.Error(t, err)
}

func TestNewValidatorBadSchema(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"type": 12}`), 0o644))
	_, err := NewValidator(dir)
	assert.Error(t, err)
}

func TestNewValidatorMissingDir(t *testing.T) {
	_, err := NewValidator(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
