package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/**
 * Test that a missing connector config yields factory defaults
 * @param {*testing.T} t - Testing framework instance
 */
func TestLoadConnectorConfigMissingFile(t *testing.T) {
	cfg, err := LoadConnectorConfig(filepath.Join(t.TempDir(), "polar_cloud.conf"))
	require.NoError(t, err)
	assert.Equal(t, "https://printer4.polar3d.com", cfg.ServerURL)
	assert.Equal(t, "Cartesian", cfg.MachineType)
	assert.Equal(t, "150000", cfg.MaxImageSize)
	assert.Empty(t, cfg.Username)
}

/**
 * Test parsing of a hand-edited connector config
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - Only the polar_cloud section is consumed, other sections are ignored
 * - Comments and blank lines are skipped
 * - Unknown keys are preserved in Extra
 */
func TestLoadConnectorConfigParse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polar_cloud.conf")
	content := `# managed by hand
[other_section]
username = should-not-leak

[polar_cloud]
server_url = https://example.test
username = alice
pin = 1234
serial_number = PC-42

; comment style two
future_key = future-value
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConnectorConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test", cfg.ServerURL)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "1234", cfg.Pin)
	assert.Equal(t, "PC-42", cfg.SerialNumber)
	assert.Equal(t, "future-value", cfg.Extra["future_key"])
	// 其他节的值不能串进来
	assert.NotEqual(t, "should-not-leak", cfg.Username)
}

/**
 * Test save/load round trip including unknown key preservation
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - serial_number is written by the managed process and must survive a save
 * - Extra keys must survive as well, the managed process may add fields
 */
func TestConnectorConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "polar_cloud.conf")

	cfg := DefaultConnectorConfig()
	cfg.Username = "bob"
	cfg.Pin = "9999"
	cfg.SerialNumber = "PC-7"
	cfg.Extra["transform_img"] = "true"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConnectorConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Username, loaded.Username)
	assert.Equal(t, cfg.Pin, loaded.Pin)
	assert.Equal(t, cfg.SerialNumber, loaded.SerialNumber)
	assert.Equal(t, cfg.ServerURL, loaded.ServerURL)
	assert.Equal(t, "true", loaded.Extra["transform_img"])
}

// 两次保存同一配置，文件内容必须逐字节一致(Extra键排序后输出)
func TestConnectorConfigStableOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConnectorConfig()
	cfg.Extra["zeta"] = "1"
	cfg.Extra["alpha"] = "2"

	first := filepath.Join(dir, "a.conf")
	second := filepath.Join(dir, "b.conf")
	require.NoError(t, cfg.Save(first))
	require.NoError(t, cfg.Save(second))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
