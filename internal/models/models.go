package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Property status values the pipeline is allowed to write.
const (
	StatusForSale   = "for_sale"
	StatusForRent   = "for_rent"
	StatusSold      = "sold"
	StatusRented    = "rented"
	StatusOffMarket = "off_market"
)

// FallbackNeighbourhood is the canonical row unknown neighbourhood names
// resolve to. It must exist in the neighbourhoods table.
const FallbackNeighbourhood = "Other"

// BufferEntry is a raw candidate listing awaiting user review.
type BufferEntry struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	PostID      string    `json:"post_id"`
	PostText    string    `json:"post_text"`
	ImageURLs   []string  `json:"image_urls"`
	SourceURL   string    `json:"source_url"`
	ExtractedAt time.Time `json:"extracted_at"`
	CreatedAt   time.Time `json:"created_at"`
}

type Neighbourhood struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// LoosePrice holds the model's price output verbatim. The model is asked for
// a number but routinely returns strings like "500k" or "1,200,000", so both
// JSON shapes are accepted here and normalized later.
type LoosePrice string

func (p *LoosePrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = LoosePrice(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = LoosePrice(n.String())
	return nil
}

// CandidateProperty is the language model's structured guess at a property
// record. It is transient: validation either turns it into a Property or
// drops it.
type CandidateProperty struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Neighbourhood    string     `json:"neighbourhood"`
	City             string     `json:"city"`
	Price            LoosePrice `json:"price"`
	Bedrooms         *int       `json:"bedrooms"`
	Bathrooms        *float64   `json:"bathrooms"`
	InteriorSizeSqm  *int       `json:"interior_size_sqm"`
	Status           string     `json:"status"`
	PropertyType     string     `json:"property_type"`
	Features         []string   `json:"features"`
	YearBuilt        *int       `json:"year_built"`
	LotSizeSqm       *float64   `json:"lot_size_sqm"`
	Images           []string   `json:"images"`
	FacebookImportID string     `json:"facebook_import_id"`
}

// Property is the committed catalog record this pipeline writes.
type Property struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	NeighbourhoodID int64     `json:"neighbourhood_id"`
	City            string    `json:"city"`
	Price           int64     `json:"price"`
	Bedrooms        *int      `json:"bedrooms"`
	Bathrooms       *float64  `json:"bathrooms"`
	InteriorSizeSqm *int      `json:"interior_size_sqm"`
	YearBuilt       *int      `json:"year_built"`
	LotSizeSqm      *float64  `json:"lot_size_sqm"`
	Status          string    `json:"status"`
	PropertyType    string    `json:"property_type"`
	Features        []string  `json:"features"`
	AgentID         string    `json:"agent_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// PropertyImage is one uploaded image with its vision metadata.
type PropertyImage struct {
	ID         int64     `json:"id"`
	PropertyID int64     `json:"property_id"`
	URL        string    `json:"url"`
	Embedding  []float32 `json:"embedding"`
	Aspect     string    `json:"aspect"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// ImportResult reports the outcome of one extraction run. Submitted is the
// number of selected buffer entries, Added the number of properties actually
// committed; the difference is the user-visible partial-failure count.
type ImportResult struct {
	Submitted int `json:"total_processed"`
	Added     int `json:"properties_added"`
}
