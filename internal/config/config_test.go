package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/conf"

	"grant-settlement-sol/internal/consts"
)

const minimalYAML = `
Name: settle-api
Host: 127.0.0.1
Port: 8888
Auth:
  AccessSecret: test-secret
Solana:
  Endpoint: http://127.0.0.1:8899
KafkaProducer:
  Brokers: 127.0.0.1:9092
  Partitions: 3
Lock:
  ExpiryMs: 10000
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	var c Config
	require.NoError(t, conf.Load(writeConfig(t, minimalYAML), &c))

	assert.Equal(t, "http://127.0.0.1:8899", c.Solana.Endpoint)
	assert.Equal(t, consts.PYUSDDevnetMintStr, c.Token.Mint)
	assert.Equal(t, consts.PYUSDDecimals, c.Token.Decimals)
	assert.Equal(t, 3, c.Retry.MaxAttempts)
	assert.Equal(t, time.Second, c.Retry.BaseDelay())
	assert.Equal(t, LedgerMemory, c.LedgerBackend)
	assert.False(t, c.UseRedis())

	engineOpt, err := c.Token.ToEngineOption(c.Solana.PollIntervalMs)
	require.NoError(t, err)
	assert.Equal(t, consts.TokenProgram2022, engineOpt.TokenProgram)
	assert.Equal(t, 500*time.Millisecond, engineOpt.PollInterval)

	assert.True(t, c.KafkaProducer.Enabled())
	kopt := c.KafkaProducer.ToKafkaOption()
	require.Len(t, kopt.Topics, 1)
	assert.Equal(t, "grant-settlement-event", kopt.Topics[0].Topic)
	assert.Equal(t, 3, kopt.Topics[0].Partitions)
	assert.Equal(t, 5*time.Second, c.KafkaProducer.ToPublisherOption().SendTimeout)

	lockOpt := c.Lock.ToRedsyncOption()
	assert.Equal(t, 10*time.Second, lockOpt.Expiry)
	assert.Equal(t, 60, lockOpt.Tries)
}

func TestLoad_Validation(t *testing.T) {
	var c Config
	err := conf.Load(writeConfig(t, "Name: x\nHost: 0.0.0.0\nPort: 1\nAuth:\n  AccessSecret: \"\"\n"), &c)
	assert.Error(t, err)

	c = Config{}
	err = conf.Load(writeConfig(t, minimalYAML+"LedgerBackend: postgres\n"), &c)
	assert.ErrorContains(t, err, "Postgres.DSN")

	c = Config{}
	err = conf.Load(writeConfig(t, minimalYAML+"Token:\n  Mint: nope\n"), &c)
	assert.ErrorContains(t, err, "Token.Mint")

	c = Config{}
	err = conf.Load(writeConfig(t, minimalYAML+"Token:\n  Program: \""+consts.SystemProgramStr+"\"\n"), &c)
	assert.ErrorContains(t, err, "not an SPL token program")
}

func TestLogConfig_ToLogOption(t *testing.T) {
	c := LogConfig{Format: "json", LogDir: "/tmp/x", Level: "debug", Compress: true}
	opt := c.ToLogOption()
	assert.Equal(t, "json", opt.Format)
	assert.Equal(t, "/tmp/x", opt.LogDir)
	assert.True(t, opt.Compress)
}
