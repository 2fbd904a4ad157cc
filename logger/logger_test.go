package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/collection-engine/config"
	"github.com/warp/collection-engine/logger"
)

func TestNew_LevelAndFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "warn"

	log, err := logger.New(cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	cfg.Environment = "production"
	log, err = logger.New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "chatty"

	log, err := logger.New(cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestNew_WritesRotatingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Log.File = filepath.Join(t.TempDir(), "logs", "collection.log")
	cfg.Log.Format = "json"

	log, err := logger.New(cfg)
	require.NoError(t, err)
	log.WithField("agreement_id", "agr-1").Info("transition applied")

	data, err := os.ReadFile(cfg.Log.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"agreement_id":"agr-1"`)
}
