package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestConnect_MissingURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Connect(Config{})
	assert.ErrorIs(t, err, ErrMissingURL)
}

func TestLogMode(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"":      logger.Silent,
		"info":  logger.Silent,
		"debug": logger.Info,
		"warn":  logger.Warn,
		"error": logger.Error,
	}
	for level, expected := range tests {
		t.Setenv("IDENTITY_LOG_LEVEL", level)
		assert.Equal(t, expected, LogMode(), level)
	}
}
