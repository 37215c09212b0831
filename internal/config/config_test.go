package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PARKING_DATABASE_DRIVER", "memory")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 0.8, cfg.Recognition.MinConfidence)
	assert.Equal(t, 10, cfg.Recognition.CropInset)
	assert.Equal(t, 5, cfg.Recognition.Samples)
	assert.Equal(t, 20*time.Second, cfg.Recognition.Timeout)
	assert.Equal(t, 6, cfg.Recognition.PlateLength)
	assert.Equal(t, "linear", cfg.Fare.Policy)
	assert.Equal(t, 20.0, cfg.Fare.Base)
	assert.Equal(t, 1.0, cfg.Fare.RatePerMinute)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "parking.yaml")
	body := "database:\n  driver: memory\nfare:\n  policy: tiered\n  flat_fee: 500\nrecognition:\n  timeout: 5s\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("PARKING_FARE_FLAT_FEE", "750")

	cfg, err := Load([]string{"--config", path, "--port", "9090"})
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "tiered", cfg.Fare.Policy)
	assert.Equal(t, 750.0, cfg.Fare.FlatFee)
	assert.Equal(t, 5*time.Second, cfg.Recognition.Timeout)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PARKING_DATABASE_DRIVER", "memory")
	cfg, err := Load(nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }},
		{"unknown detector", func(c *Config) { c.Recognition.Detector = "haar" }},
		{"unknown ocr", func(c *Config) { c.Recognition.OCR = "easyocr" }},
		{"confidence out of range", func(c *Config) { c.Recognition.MinConfidence = 1.5 }},
		{"no samples", func(c *Config) { c.Recognition.Samples = 0 }},
		{"min length above length", func(c *Config) { c.Recognition.MinPlateLength = 7 }},
		{"unknown fare policy", func(c *Config) { c.Fare.Policy = "hourly" }},
		{"rekognition without region", func(c *Config) { c.Recognition.OCR = "rekognition" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cfg
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
	assert.NoError(t, cfg.Validate())
}

func TestConversions(t *testing.T) {
	fc := FareConfig{Policy: "tiered", FreeMinutes: 30, FlatFee: 1000}.FareConfig()
	assert.Equal(t, "tiered", fc.Policy)
	assert.Equal(t, int64(30), fc.FreeMinutes)

	opts := RecognitionConfig{MinConfidence: 0.7, Samples: 3, PlateLength: 6, Seed: 42}.Options()
	assert.Equal(t, 0.7, opts.MinConfidence)
	assert.Equal(t, 3, opts.Samples)
	assert.Equal(t, uint64(42), opts.Seed)
}
