package config

import "github.com/caarlos0/env/v6"

type Config struct {
	Server struct {
		Port int `env:"PORT" envDefault:"5250"`
	}

	Database struct {
		Path string `env:"DATABASE_PATH" envDefault:"database/fourwalls.db"`
	}

	// Facebook Graph API credentials for the listing import flow
	Facebook struct {
		AppID        string `env:"FACEBOOK_APP_ID"`
		AppSecret    string `env:"FACEBOOK_APP_SECRET"`
		GraphVersion string `env:"FACEBOOK_GRAPH_VERSION" envDefault:"v18.0"`

		// Number of posts requested per Graph API page
		PageLimit int `env:"FACEBOOK_PAGE_LIMIT" envDefault:"25"`
	}

	// Gemini configuration for the extraction engine
	Gemini struct {
		APIKey          string `env:"GOOGLE_API_KEY"`
		Model           string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
		MaxOutputTokens int    `env:"GEMINI_MAX_OUTPUT_TOKENS" envDefault:"4096"`
	}

	Extraction struct {
		// Prices above this (in RWF) are assumed to be sales when the
		// model omits a status
		PriceStatusThreshold int64 `env:"PRICE_STATUS_THRESHOLD" envDefault:"500000"`

		// Optional path to a housing keyword list; empty uses the
		// compiled-in default
		KeywordsPath string `env:"HOUSING_KEYWORDS_PATH"`
	}

	// Object storage for property images
	Storage struct {
		BaseURL    string `env:"STORAGE_URL"`
		Bucket     string `env:"STORAGE_BUCKET" envDefault:"property_images"`
		ServiceKey string `env:"STORAGE_SERVICE_KEY"`
	}

	Vision struct {
		EmbedURL string `env:"EMBEDDINGS_API_URL" envDefault:"https://akafesu-fourwalls-embeddings-api.hf.space/embed"`
	}

	// Session service that resolves bearer tokens to users
	Auth struct {
		UserEndpoint string `env:"AUTH_USER_ENDPOINT"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
