package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fourwalls/server/internal/models"

	"github.com/sirupsen/logrus"
)

var (
	ErrModelUnavailable     = errors.New("language model service unavailable")
	ErrMalformedModelOutput = errors.New("language model returned unparseable output")
	ErrIncompleteCandidate  = errors.New("candidate is missing required fields")

	// ErrMissingFallbackNeighbourhood means the "Other" row is absent from
	// the neighbourhoods table. That is an operator problem, not a bad
	// candidate: the whole request fails.
	ErrMissingFallbackNeighbourhood = errors.New("fallback neighbourhood is not configured")
)

// BuildPrompt concatenates the selected posts into one delimited message.
// Each block carries the external post id so the model can echo it back and
// the reconciler can tell which buffer rows were consumed.
func BuildPrompt(posts []models.BufferEntry) string {
	var b strings.Builder
	for _, post := range posts {
		b.WriteString("\n === POST_START === \n")
		b.WriteString("Facebook Import ID: ")
		b.WriteString(post.PostID)
		b.WriteString("\n")
		if post.PostText != "" {
			b.WriteString(post.PostText)
		} else {
			b.WriteString("No text content")
		}
		b.WriteString("\n === POST_END === \n")
	}
	return b.String()
}

// DecodeCandidates parses the model's response into candidates. Markdown
// code fences are tolerated; anything that does not decode to a JSON array
// is malformed output.
func DecodeCandidates(raw string) ([]models.CandidateProperty, error) {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var candidates []models.CandidateProperty
	if err := json.Unmarshal([]byte(cleaned), &candidates); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedModelOutput, err)
	}
	return candidates, nil
}

// NormalizePrice converts a raw price string into whole RWF. Digits are kept,
// everything else stripped; a "k"/"K" shorthand multiplies by a thousand and
// "M" by a million ("500k" -> 500000, "50M" -> 50000000). A string without
// digits is rejected rather than silently zeroed.
func NormalizePrice(raw string) (int64, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, fmt.Errorf("price %q contains no digits", raw)
	}

	value, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("price %q is out of range", raw)
	}

	if strings.ContainsAny(raw, "kK") {
		value *= 1_000
	} else if strings.Contains(raw, "M") {
		value *= 1_000_000
	}

	if value <= 0 {
		return 0, fmt.Errorf("price %q is not positive", raw)
	}
	return value, nil
}

// InferStatus fills in a missing listing status from the price: above the
// threshold it is assumed to be a sale, otherwise a rental. An explicit
// status from the model is never overridden.
func InferStatus(price int64, status string, threshold int64) string {
	if status != "" {
		return status
	}
	if price > threshold {
		return models.StatusForSale
	}
	return models.StatusForRent
}

// Validator turns decoded candidates into committable properties. It holds
// the neighbourhood lookup table and the price threshold for one run.
type Validator struct {
	threshold      int64
	neighbourhoods map[string]int64
	fallbackID     int64
	logger         *logrus.Logger
}

// NewValidator builds the case-insensitive neighbourhood index. The fallback
// row must be present, otherwise the whole request is refused.
func NewValidator(neighbourhoods []models.Neighbourhood, threshold int64, logger *logrus.Logger) (*Validator, error) {
	index := make(map[string]int64, len(neighbourhoods))
	for _, n := range neighbourhoods {
		index[strings.ToLower(n.Name)] = n.ID
	}

	fallbackID, ok := index[strings.ToLower(models.FallbackNeighbourhood)]
	if !ok {
		return nil, ErrMissingFallbackNeighbourhood
	}

	return &Validator{
		threshold:      threshold,
		neighbourhoods: index,
		fallbackID:     fallbackID,
		logger:         logger,
	}, nil
}

// ResolveNeighbourhood maps a free-text name onto a known neighbourhood id,
// case-insensitively. Unknown names always resolve to the fallback row.
func (v *Validator) ResolveNeighbourhood(name string) int64 {
	if id, ok := v.neighbourhoods[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id
	}
	return v.fallbackID
}

// Validate checks one candidate and normalizes it into a Property stamped
// with the importing user. A failure drops that candidate only, never the
// batch.
func (v *Validator) Validate(c models.CandidateProperty, agentID string) (*models.Property, error) {
	if strings.TrimSpace(c.Title) == "" {
		return nil, fmt.Errorf("%w: title", ErrIncompleteCandidate)
	}
	if strings.TrimSpace(c.City) == "" {
		return nil, fmt.Errorf("%w: city", ErrIncompleteCandidate)
	}
	if strings.TrimSpace(string(c.Price)) == "" {
		return nil, fmt.Errorf("%w: price", ErrIncompleteCandidate)
	}

	price, err := NormalizePrice(string(c.Price))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteCandidate, err)
	}

	return &models.Property{
		Title:           strings.TrimSpace(c.Title),
		Description:     c.Description,
		NeighbourhoodID: v.ResolveNeighbourhood(c.Neighbourhood),
		City:            strings.TrimSpace(c.City),
		Price:           price,
		Bedrooms:        c.Bedrooms,
		Bathrooms:       c.Bathrooms,
		InteriorSizeSqm: c.InteriorSizeSqm,
		YearBuilt:       c.YearBuilt,
		LotSizeSqm:      c.LotSizeSqm,
		Status:          InferStatus(price, c.Status, v.threshold),
		PropertyType:    c.PropertyType,
		Features:        c.Features,
		AgentID:         agentID,
		CreatedAt:       time.Now(),
	}, nil
}
