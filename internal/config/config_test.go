package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir runs the test from an empty directory so a developer's .env does
// not leak into it.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadServer_Defaults(t *testing.T) {
	inTempDir(t)
	t.Setenv("JWT_SECRET", "0123456789abcdef")

	cfg, err := LoadServer()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, int64(10<<20), cfg.MaxResumeSize)
	assert.Equal(t, "resumes", cfg.S3.Bucket)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "resume_analysis_request", cfg.Kafka.RequestTopic)
}

func TestLoadServer_Overrides(t *testing.T) {
	inTempDir(t)
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "kafka-0:9092,kafka-1:9092")
	t.Setenv("S3_ENDPOINT", "minio:9000")
	t.Setenv("TOKEN_TTL", "1h")

	cfg, err := LoadServer()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"kafka-0:9092", "kafka-1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "minio:9000", cfg.S3.Endpoint)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
}

func TestLoadServer_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{}},
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"bad log level", map[string]string{"JWT_SECRET": "0123456789abcdef", "LOG_LEVEL": "chatty"}},
		{"bad broker", map[string]string{"JWT_SECRET": "0123456789abcdef", "KAFKA_BROKERS": "no-port"}},
		{"bad duration", map[string]string{"JWT_SECRET": "0123456789abcdef", "TOKEN_TTL": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTempDir(t)
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadServer()
			assert.Error(t, err)
		})
	}
}

func TestLoadServer_DotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JWT_SECRET=from-dotenv-0123456\nPORT=7070\n"), 0o600))
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")
	t.Setenv("PORT", "")
	os.Unsetenv("PORT")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv-0123456", cfg.JWTSecret)
	assert.Equal(t, "7070", cfg.Port)
}

func TestLoadClient(t *testing.T) {
	inTempDir(t)
	t.Setenv("STUDIO_EMAIL", "test@example.com")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api", cfg.APIURL)
	assert.Equal(t, "ws://localhost:8080/api/ws", cfg.PushURL)
	assert.Equal(t, "test@example.com", cfg.Email)
	assert.Equal(t, 16, cfg.FeedbackQueueSize)

	t.Setenv("STUDIO_EMAIL", "nope")
	_, err = LoadClient()
	assert.Error(t, err)
}
