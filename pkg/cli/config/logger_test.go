package config_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/playpack/pkg/cli/config"
	"github.com/m-mizutani/playpack/pkg/domain/model"
)

func TestLogger_Configure(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		wantErr bool
	}{
		{
			name:    "Valid level: debug",
			level:   "debug",
			wantErr: false,
		},
		{
			name:    "Valid level: DEBUG (case insensitive)",
			level:   "DEBUG",
			wantErr: false,
		},
		{
			name:    "Valid level: info",
			level:   "info",
			wantErr: false,
		},
		{
			name:    "Valid level: WARN",
			level:   "WARN",
			wantErr: false,
		},
		{
			name:    "Valid level: error",
			level:   "error",
			wantErr: false,
		},
		{
			name:    "Invalid level: invalid",
			level:   "invalid",
			wantErr: true,
		},
		{
			name:    "Invalid level: empty string",
			level:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &config.Logger{
				Level:  tt.level,
				Format: config.LogFormatConsole,
				Output: &bytes.Buffer{},
			}

			result, err := logger.Configure()
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err).Required()
			gt.V(t, result).NotNil()
		})
	}
}

func TestLogger_Configure_Format(t *testing.T) {
	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		logger := &config.Logger{Level: "info", Format: "JSON", Output: &buf}

		result, err := logger.Configure()
		gt.NoError(t, err).Required()
		result.Info("test log message", "key", "value")

		var record map[string]any
		gt.NoError(t, json.Unmarshal(buf.Bytes(), &record)).Required()
		gt.Equal(t, record["msg"], any("test log message"))
		gt.Equal(t, record["key"], any("value"))
	})

	t.Run("console output", func(t *testing.T) {
		var buf bytes.Buffer
		logger := &config.Logger{Level: "info", Format: "console", Output: &buf}

		result, err := logger.Configure()
		gt.NoError(t, err).Required()
		result.Info("test log message")
		gt.String(t, buf.String()).Contains("test log message")
	})

	t.Run("unknown format", func(t *testing.T) {
		logger := &config.Logger{Level: "info", Format: "xml"}
		_, err := logger.Configure()
		gt.Error(t, err)
	})
}

func TestLogger_Configure_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := &config.Logger{Level: "debug", Format: config.LogFormatJSON, Output: &buf}

	result, err := logger.Configure()
	gt.NoError(t, err).Required()

	result.Info("credentials", "creds", &model.Credentials{Username: "deploy", Password: "s3cr3t-value"})

	gt.String(t, buf.String()).Contains("deploy")
	gt.False(t, bytes.Contains(buf.Bytes(), []byte("s3cr3t-value")))
}

func TestLogger_Configure_LevelBehavior(t *testing.T) {
	var buf bytes.Buffer
	logger := &config.Logger{Level: "warn", Format: config.LogFormatJSON, Output: &buf}

	result, err := logger.Configure()
	gt.NoError(t, err).Required()

	result.Info("info message")
	gt.Equal(t, buf.Len(), 0)

	result.Warn("warn message")
	gt.String(t, buf.String()).Contains("warn message")
}

func TestLogger_Flags(t *testing.T) {
	logger := &config.Logger{}
	flags := logger.Flags()

	gt.A(t, flags).Length(2)

	flagNames := make(map[string]bool)
	for _, flag := range flags {
		switch f := flag.(type) {
		case interface{ Names() []string }:
			names := f.Names()
			if len(names) > 0 {
				flagNames[names[0]] = true
			}
		}
	}

	gt.True(t, flagNames["log-level"])
	gt.True(t, flagNames["log-format"])
}
