package extraction

import (
	"errors"
	"testing"
	"time"

	"fourwalls/server/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNeighbourhoods() []models.Neighbourhood {
	return []models.Neighbourhood{
		{ID: 1, Name: "Other"},
		{ID: 2, Name: "Kimisagara"},
		{ID: 3, Name: "Nyarutarama"},
	}
}

func newTestValidator(t *testing.T) *Validator {
	v, err := NewValidator(testNeighbourhoods(), 500000, logrus.New())
	require.NoError(t, err)
	return v
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
		wantErr  bool
	}{
		{
			name:     "k shorthand",
			input:    "500k",
			expected: 500000,
		},
		{
			name:     "uppercase K shorthand",
			input:    "500K",
			expected: 500000,
		},
		{
			name:     "M shorthand",
			input:    "50M",
			expected: 50000000,
		},
		{
			name:     "comma separated",
			input:    "1,200,000",
			expected: 1200000,
		},
		{
			name:     "currency prefix",
			input:    "RWF 850,000",
			expected: 850000,
		},
		{
			name:     "plain number",
			input:    "65000000",
			expected: 65000000,
		},
		{
			name:    "no digits",
			input:   "call for price",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "zero",
			input:   "0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, err := NormalizePrice(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, price)
		})
	}
}

func TestInferStatus(t *testing.T) {
	tests := []struct {
		name     string
		price    int64
		status   string
		expected string
	}{
		{
			name:     "above threshold without status",
			price:    600000,
			expected: models.StatusForSale,
		},
		{
			name:     "at threshold without status",
			price:    500000,
			expected: models.StatusForRent,
		},
		{
			name:     "below threshold without status",
			price:    150000,
			expected: models.StatusForRent,
		},
		{
			name:     "explicit status is never overridden",
			price:    90000000,
			status:   models.StatusSold,
			expected: models.StatusSold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferStatus(tt.price, tt.status, 500000))
		})
	}
}

func TestDecodeCandidates(t *testing.T) {
	t.Run("plain JSON array", func(t *testing.T) {
		candidates, err := DecodeCandidates(`[{"title": "Test", "price": 500000}]`)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "Test", candidates[0].Title)
		assert.Equal(t, models.LoosePrice("500000"), candidates[0].Price)
	})

	t.Run("fenced markdown", func(t *testing.T) {
		candidates, err := DecodeCandidates("```json\n[{\"title\": \"Fenced\", \"price\": \"500k\"}]\n```")
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, models.LoosePrice("500k"), candidates[0].Price)
	})

	t.Run("empty array", func(t *testing.T) {
		candidates, err := DecodeCandidates("[]")
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("not JSON", func(t *testing.T) {
		_, err := DecodeCandidates("sorry, I could not process that")
		assert.ErrorIs(t, err, ErrMalformedModelOutput)
	})

	t.Run("object instead of array", func(t *testing.T) {
		_, err := DecodeCandidates(`{"title": "Test"}`)
		assert.ErrorIs(t, err, ErrMalformedModelOutput)
	})
}

func TestBuildPrompt(t *testing.T) {
	posts := []models.BufferEntry{
		{PostID: "fb_1", PostText: "House for sale"},
		{PostID: "fb_2"},
	}

	prompt := BuildPrompt(posts)

	assert.Contains(t, prompt, "POST_START")
	assert.Contains(t, prompt, "POST_END")
	assert.Contains(t, prompt, "Facebook Import ID: fb_1")
	assert.Contains(t, prompt, "House for sale")
	assert.Contains(t, prompt, "Facebook Import ID: fb_2")
	assert.Contains(t, prompt, "No text content")
}

func TestNewValidator_MissingFallback(t *testing.T) {
	_, err := NewValidator([]models.Neighbourhood{
		{ID: 2, Name: "Kimisagara"},
	}, 500000, logrus.New())
	assert.ErrorIs(t, err, ErrMissingFallbackNeighbourhood)
}

func TestResolveNeighbourhood(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{
			name:     "exact match",
			input:    "Kimisagara",
			expected: 2,
		},
		{
			name:     "case-insensitive match",
			input:    "KIMISAGARA",
			expected: 2,
		},
		{
			name:     "unknown falls back to Other",
			input:    "Atlantis",
			expected: 1,
		},
		{
			name:     "empty falls back to Other",
			input:    "",
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, v.ResolveNeighbourhood(tt.input))
		})
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name      string
		candidate models.CandidateProperty
	}{
		{
			name: "missing title",
			candidate: models.CandidateProperty{
				City:  "Kigali",
				Price: "500k",
			},
		},
		{
			name: "missing city",
			candidate: models.CandidateProperty{
				Title: "Nice house",
				Price: "500k",
			},
		},
		{
			name: "missing price",
			candidate: models.CandidateProperty{
				Title: "Nice house",
				City:  "Kigali",
			},
		},
		{
			name: "digitless price",
			candidate: models.CandidateProperty{
				Title: "Nice house",
				City:  "Kigali",
				Price: "negotiable",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.candidate, "agent-1")
			assert.ErrorIs(t, err, ErrIncompleteCandidate)
		})
	}
}

func TestValidate_RentalScenario(t *testing.T) {
	// "Cozy 2 bedroom apartment in Kimisagara, 500k RWF per month"
	v := newTestValidator(t)
	bedrooms := 2

	property, err := v.Validate(models.CandidateProperty{
		Title:         "Cozy 2 Bedroom Apartment in Kimisagara",
		Neighbourhood: "Kimisagara",
		City:          "Kigali",
		Price:         "500k",
		Bedrooms:      &bedrooms,
		PropertyType:  "apartment",
	}, "agent-1")

	require.NoError(t, err)
	assert.Equal(t, int64(500000), property.Price)
	// 500000 is not above the threshold, so this is a rental
	assert.Equal(t, models.StatusForRent, property.Status)
	assert.Equal(t, int64(2), property.NeighbourhoodID)
	assert.Equal(t, "agent-1", property.AgentID)
	assert.WithinDuration(t, time.Now(), property.CreatedAt, time.Minute)
}

func TestValidate_UnknownNeighbourhoodFallsBack(t *testing.T) {
	v := newTestValidator(t)

	property, err := v.Validate(models.CandidateProperty{
		Title:         "Villa with a view",
		Neighbourhood: "Somewhere Unknown",
		City:          "Kigali",
		Price:         "120M",
	}, "agent-1")

	require.NoError(t, err)
	assert.Equal(t, int64(1), property.NeighbourhoodID)
	assert.Equal(t, int64(120000000), property.Price)
	assert.Equal(t, models.StatusForSale, property.Status)
}

func TestValidate_DropsOnlyTheFailingCandidate(t *testing.T) {
	v := newTestValidator(t)

	candidates := []models.CandidateProperty{
		{Title: "Valid", City: "Kigali", Price: "65M"},
		{Title: "", City: "Kigali", Price: "65M"},
		{Title: "Also valid", City: "Kigali", Price: "300k"},
	}

	var kept int
	for _, c := range candidates {
		if _, err := v.Validate(c, "agent-1"); err == nil {
			kept++
		} else {
			assert.True(t, errors.Is(err, ErrIncompleteCandidate))
		}
	}
	assert.Equal(t, 2, kept)
}
