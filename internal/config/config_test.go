package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pansave/pansave/internal/drive"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

const sampleConfig = `
[settings]
log_level = "debug"
save_root = "/saved"

[[account]]
name = "home-baidu"
provider = "baidu"
credential = "BDUSS=abc; STOKEN=def"
enabled = true
default = true

[[account]]
name = "backup-aliyun"
provider = "aliyun"
credential = "refresh-token-xyz"
enabled = true
`

func TestLoad_Sample(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Settings.LogLevel)
	assert.Equal(t, "/saved", cfg.Settings.SaveRoot)
	require.Len(t, cfg.Accounts, 2)
	assert.True(t, cfg.Accounts[0].Default)

	accounts := cfg.DriveAccounts()
	assert.Equal(t, drive.KindBaidu, accounts[0].Kind)
	assert.Equal(t, drive.KindAliyun, accounts[1].Kind)
}

func TestLoad_UnknownKeyFatal(t *testing.T) {
	_, err := Load(writeConfig(t, `
[settings]
log_leval = "info"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_leval")
}

func TestLoad_UnknownProvider(t *testing.T) {
	_, err := Load(writeConfig(t, `
[[account]]
name = "x"
provider = "dropbox"
credential = "c"
enabled = true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestLoad_DuplicateNamesAndDoubleDefault(t *testing.T) {
	_, err := Load(writeConfig(t, `
[[account]]
name = "same"
provider = "baidu"
credential = "c1"
enabled = true
default = true

[[account]]
name = "same"
provider = "aliyun"
credential = "c2"
enabled = true
default = true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name")
	assert.Contains(t, err.Error(), "at most one account")
}

func TestLoad_EnabledWithoutCredential(t *testing.T) {
	_, err := Load(writeConfig(t, `
[[account]]
name = "empty"
provider = "xunlei"
credential = ""
enabled = true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credential")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Settings.LogLevel)
	assert.Empty(t, cfg.Accounts)
}

func TestDefaultConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("PANSAVE_CONFIG", "/tmp/custom.toml")
	assert.Equal(t, "/tmp/custom.toml", DefaultConfigPath())
}

func TestWatch_FiresOnWrite(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	changed := make(chan struct{}, 1)

	stop, err := Watch(path, nil, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte(sampleConfig+"\n"), 0o600))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("config change notification never arrived")
	}
}
