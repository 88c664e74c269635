package extraction

import (
	"context"
	"fmt"
	"time"

	"fourwalls/server/internal/models"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const systemPrompt = `
You are a real estate data extraction expert. Your task is to analyse social media posts about real estate properties and extract structured property information.

Return the result strictly as a valid JSON array of objects matching this schema:

- title: string (required)
- description: string (optional)
- neighbourhood: string (required)
- city: string (required)
- price: number (required, in RWF)
- bedrooms: integer (optional)
- bathrooms: number (optional)
- interior_size_sqm: integer (optional)
- status: string (one of: "for_sale", "for_rent", "sold", "rented", "off_market")
- property_type: string (one of: "house", "apartment", "condo", "townhouse", "commercial", "land", "other")
- features: array of strings (optional)
- year_built: number (optional)
- lot_size_sqm: number (optional)
- images: array of image URLs (optional)
- facebook_import_id: string (required)

Guidelines:
1. Only include properties with title, neighbourhood, city, and price.
2. Normalise prices: convert formats like "500k" to 500000 and "30M" to 30000000.
3. Translate any Kinyarwanda into English.
4. Generate creative titles and medium-length, persuasive descriptions.
5. Use "Other" for unknown neighbourhoods.
6. If no status is given, infer it based on price: if above 500000 -> "for_sale", otherwise -> "for_rent".
7. Your response should only be a valid JSON array, even if empty.
8. Do not include any extra explanations, text, or commentary.
9. Posts are delimited by POST_START and POST_END markers.
10. Add any image links under the 'images' field.
11. Each object must include "facebook_import_id" from the original post.

Example input:
 === POST_START ===
Facebook Import ID: fb_post_001
Selling a lovely 3 bedroom house in Kabeza, Kigali. Spacious compound, indoor kitchen, tiled floors. Going for 65M. DM for more details.
 === POST_END ===

Example output:
[
  {
    "title": "Charming 3-Bedroom Home for Sale in Kabeza",
    "description": "This spacious 3-bedroom house in Kabeza features tiled floors, an indoor kitchen, and a large compound perfect for families.",
    "neighbourhood": "Kabeza",
    "city": "Kigali",
    "price": 65000000,
    "bedrooms": 3,
    "status": "for_sale",
    "property_type": "house",
    "features": ["indoor kitchen", "tiled floors", "spacious compound"],
    "facebook_import_id": "fb_post_001"
  }
]
`

// Extractor sends batched post text through Gemini and decodes the
// structured candidates it returns.
type Extractor struct {
	client    *genai.Client
	model     string
	maxTokens int32
	logger    *logrus.Logger
}

func NewExtractor(ctx context.Context, apiKey, model string, maxOutputTokens int, logger *logrus.Logger) (*Extractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Extractor{
		client:    client,
		model:     model,
		maxTokens: int32(maxOutputTokens),
		logger:    logger,
	}, nil
}

// Extract makes exactly one completion call for the whole batch and returns
// the decoded candidates. An upstream failure leaves the buffer untouched
// and is safe to retry.
func (e *Extractor) Extract(ctx context.Context, posts []models.BufferEntry) ([]models.CandidateProperty, error) {
	prompt := BuildPrompt(posts)

	start := time.Now()
	e.logger.WithFields(logrus.Fields{
		"post_count":    len(posts),
		"prompt_length": len(prompt),
	}).Info("Sending posts to Gemini for extraction")

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(0.1)),
		MaxOutputTokens:   e.maxTokens,
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		e.logger.WithError(err).Error("Gemini request failed")
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrModelUnavailable)
	}

	candidates, err := DecodeCandidates(text)
	if err != nil {
		e.logger.WithField("response_length", len(text)).Error("Gemini returned unparseable output")
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"candidate_count": len(candidates),
		"duration":        time.Since(start).String(),
	}).Info("Extraction completed")

	return candidates, nil
}
