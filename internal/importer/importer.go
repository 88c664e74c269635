package importer

import (
	"context"
	"strings"
	"time"

	"fourwalls/server/config"
	"fourwalls/server/internal/database"
	"fourwalls/server/internal/facebook"
	"fourwalls/server/internal/models"

	"github.com/sirupsen/logrus"
)

// ImportSummary reports one import run back to the user: how many posts were
// scanned, how many looked like housing, and how many landed in the buffer
// (duplicates are skipped, so Imported can be lower than HousingPosts).
type ImportSummary struct {
	TotalPosts   int `json:"total_posts"`
	HousingPosts int `json:"housing_posts"`
	Imported     int `json:"posts_saved"`
}

// Importer runs the authorization exchange and fills the staging buffer with
// housing-related posts.
type Importer struct {
	db       *database.Database
	fb       *facebook.Client
	keywords []string
	logger   *logrus.Logger
}

func NewImporter(db *database.Database, fb *facebook.Client, keywords *config.KeywordConfig, logger *logrus.Logger) *Importer {
	lowered := make([]string, len(keywords.Keywords))
	for i, kw := range keywords.Keywords {
		lowered[i] = strings.ToLower(kw)
	}

	return &Importer{
		db:       db,
		fb:       fb,
		keywords: lowered,
		logger:   logger,
	}
}

// ExchangeAndFetch trades the authorization code for an access token, pulls
// the user's posts from the last year, keeps the housing-related ones and
// writes them into the staging buffer. The catalog is never touched here.
func (i *Importer) ExchangeAndFetch(ctx context.Context, code, redirectURI, userID string) (*ImportSummary, error) {
	token, err := i.fb.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(-1, 0, 0)
	posts, err := i.fb.FetchRecentPosts(ctx, token, since)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var entries []models.BufferEntry
	for _, post := range posts {
		if post.Message == "" || !i.IsHousingPost(post.Message) {
			continue
		}
		entries = append(entries, models.BufferEntry{
			UserID:      userID,
			PostID:      post.ID,
			PostText:    post.Message,
			ImageURLs:   facebook.ImageURLs(post),
			SourceURL:   "https://facebook.com/" + post.ID,
			ExtractedAt: now,
		})
	}

	inserted, err := i.db.InsertBufferEntries(entries)
	if err != nil {
		i.logger.WithError(err).Error("Failed to save buffered posts")
		return nil, err
	}

	i.logger.WithFields(logrus.Fields{
		"user_id":       userID,
		"total_posts":   len(posts),
		"housing_posts": len(entries),
		"posts_saved":   inserted,
	}).Info("Import completed")

	return &ImportSummary{
		TotalPosts:   len(posts),
		HousingPosts: len(entries),
		Imported:     inserted,
	}, nil
}

// IsHousingPost reports whether the text matches the housing vocabulary.
// Pure function of the text: the same input always classifies the same way.
func (i *Importer) IsHousingPost(text string) bool {
	if text == "" {
		return false
	}

	lower := strings.ToLower(text)
	for _, keyword := range i.keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
