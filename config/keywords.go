package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// KeywordConfig is the versioned housing vocabulary used to filter imported
// posts. Keeping it as loadable configuration lets the list be tuned without
// touching the pipeline.
type KeywordConfig struct {
	Version  int      `json:"version"`
	Keywords []string `json:"keywords"`
}

// defaultHousingKeywords matches posts that plausibly advertise a property.
var defaultHousingKeywords = []string{
	"house", "home", "property", "real estate", "for sale", "for rent",
	"bedroom", "bathroom", "kitchen", "garage", "yard", "apartment", "condo",
	"listing", "price", "sqft", "square feet", "mortgage", "lease", "rental",
	"landlord", "tenant", "utilities", "furnished", "unfurnished", "deposit",
	"realtor", "agent", "viewing", "tour",
}

// DefaultKeywords returns the compiled-in keyword list.
func DefaultKeywords() *KeywordConfig {
	keywords := make([]string, len(defaultHousingKeywords))
	copy(keywords, defaultHousingKeywords)
	return &KeywordConfig{Version: 1, Keywords: keywords}
}

// LoadKeywords loads a keyword list from a JSON file. An empty path returns
// the default list.
func LoadKeywords(path string) (*KeywordConfig, error) {
	if path == "" {
		return DefaultKeywords(), nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %v", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword file: %v", err)
	}

	var cfg KeywordConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse keyword file: %v", err)
	}

	if len(cfg.Keywords) == 0 {
		return nil, fmt.Errorf("keyword file %s contains no keywords", path)
	}

	return &cfg, nil
}
