package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKeywords(t *testing.T) {
	cfg := DefaultKeywords()

	assert.Equal(t, 1, cfg.Version)
	assert.NotEmpty(t, cfg.Keywords)
	assert.Contains(t, cfg.Keywords, "for sale")
	assert.Contains(t, cfg.Keywords, "bedroom")
	assert.Contains(t, cfg.Keywords, "sqft")
}

func TestDefaultKeywords_ReturnsCopy(t *testing.T) {
	first := DefaultKeywords()
	first.Keywords[0] = "mutated"

	second := DefaultKeywords()
	assert.NotEqual(t, "mutated", second.Keywords[0])
}

func TestLoadKeywords(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		expectError bool
		expectedLen int
		version     int
	}{
		{
			name:        "valid file",
			content:     `{"version": 3, "keywords": ["duplex", "bungalow"]}`,
			expectedLen: 2,
			version:     3,
		},
		{
			name:        "empty keyword list",
			content:     `{"version": 1, "keywords": []}`,
			expectError: true,
		},
		{
			name:        "malformed JSON",
			content:     `{"version": 1,`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "keywords.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			cfg, err := LoadKeywords(path)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.version, cfg.Version)
			assert.Len(t, cfg.Keywords, tt.expectedLen)
		})
	}
}

func TestLoadKeywords_EmptyPathUsesDefault(t *testing.T) {
	cfg, err := LoadKeywords("")
	require.NoError(t, err)
	assert.Equal(t, DefaultKeywords().Keywords, cfg.Keywords)
}

func TestLoadKeywords_MissingFile(t *testing.T) {
	_, err := LoadKeywords(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Error(t, err)
}
