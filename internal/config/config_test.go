package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
	dir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *ConfigSuite) writeFile(name, content string) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (s *ConfigSuite) TestDefaults() {
	cfg, err := Load(Options{})
	s.Require().NoError(err)

	s.Equal(8080, cfg.Server.Port)
	s.Equal("memory", cfg.Storage.Type)
	s.Equal(int64(1000), cfg.Ledger.StartingBalance)
	s.Equal(int64(5), cfg.Ledger.PlatformFeePercent)
	s.Equal(3, cfg.Ledger.MaxAttempts)
	s.Equal(5*time.Minute, cfg.Game.StaleAfter)
	s.Equal(60*time.Second, cfg.Game.NoOpponentTimeout)
	s.Equal(1500*time.Millisecond, cfg.Game.AutoPassDelay)
	s.Equal(24*time.Hour, cfg.Auth.SessionDuration)
	s.Empty(cfg.Game.AllowedEntryFees)
	s.False(cfg.Realtime.UseRedis)
}

func (s *ConfigSuite) TestEnvironmentOverrides() {
	s.T().Setenv("LUDO_SERVER_PORT", "9090")
	s.T().Setenv("LUDO_STORAGE_TYPE", "redis")
	s.T().Setenv("LUDO_GAME_STALE_AFTER", "2m")
	s.T().Setenv("LUDO_GAME_ALLOWED_ENTRY_FEES", "50,100,500")

	cfg, err := Load(Options{})
	s.Require().NoError(err)

	s.Equal(9090, cfg.Server.Port)
	s.Equal("redis", cfg.Storage.Type)
	s.Equal(2*time.Minute, cfg.Game.StaleAfter)
	s.Equal([]int64{50, 100, 500}, cfg.Game.AllowedEntryFees)
}

func (s *ConfigSuite) TestConfigFile() {
	path := s.writeFile("ludo.yaml", `
server:
  port: 7000
ledger:
  starting_balance: 250
game:
  allowed_entry_fees: [10, 20]
  auto_pass_delay: 2s
realtime:
  allowed_origins:
    - https://t.me
`)

	cfg, err := Load(Options{ConfigFile: path})
	s.Require().NoError(err)

	s.Equal(7000, cfg.Server.Port)
	s.Equal(int64(250), cfg.Ledger.StartingBalance)
	s.Equal([]int64{10, 20}, cfg.Game.AllowedEntryFees)
	s.Equal(2*time.Second, cfg.Game.AutoPassDelay)
	s.Equal([]string{"https://t.me"}, cfg.Realtime.AllowedOrigins)
}

func (s *ConfigSuite) TestEnvironmentBeatsConfigFile() {
	path := s.writeFile("ludo.yaml", "server:\n  port: 7000\n")
	s.T().Setenv("LUDO_SERVER_PORT", "7001")

	cfg, err := Load(Options{ConfigFile: path})
	s.Require().NoError(err)
	s.Equal(7001, cfg.Server.Port)
}

func (s *ConfigSuite) TestMissingExplicitConfigFileFails() {
	_, err := Load(Options{ConfigFile: filepath.Join(s.dir, "missing.yaml")})
	s.Error(err)
}

func (s *ConfigSuite) TestEnvFile() {
	path := s.writeFile(".env", "LUDO_LEDGER_STARTING_BALANCE=4242\n")
	s.T().Cleanup(func() { _ = os.Unsetenv("LUDO_LEDGER_STARTING_BALANCE") })

	cfg, err := Load(Options{EnvFiles: []string{filepath.Join(s.dir, "absent.env"), path}})
	s.Require().NoError(err)
	s.Equal(int64(4242), cfg.Ledger.StartingBalance)
}

func (s *ConfigSuite) TestInvalidStorageType() {
	s.T().Setenv("LUDO_STORAGE_TYPE", "sqlite")

	_, err := Load(Options{})
	s.ErrorContains(err, "invalid storage type")
}

func (s *ConfigSuite) TestInvalidEntryFee() {
	s.T().Setenv("LUDO_GAME_ALLOWED_ENTRY_FEES", "100,0")

	_, err := Load(Options{})
	s.ErrorContains(err, "allowed entry fees")
}

func (s *ConfigSuite) TestInvalidLogLevel() {
	s.T().Setenv("LUDO_LOG_LEVEL", "loud")

	_, err := Load(Options{})
	s.ErrorContains(err, "invalid log level")
}

func (s *ConfigSuite) TestSlogLevel() {
	level, err := LogConfig{Level: "debug"}.SlogLevel()
	s.Require().NoError(err)
	s.Equal(slog.LevelDebug, level)

	level, err = LogConfig{Level: "WARN"}.SlogLevel()
	s.Require().NoError(err)
	s.Equal(slog.LevelWarn, level)
}
