package pipeline

import (
	"context"
	"errors"

	"fourwalls/server/internal/database"
	"fourwalls/server/internal/extraction"
	"fourwalls/server/internal/models"

	"github.com/sirupsen/logrus"
)

// ErrInvalidSelection is returned before any external call when the selected
// entries are empty, unknown, or not owned by the caller.
var ErrInvalidSelection = errors.New("selection contains missing or foreign buffer entries")

// Extractor turns a batch of buffered posts into candidate properties with a
// single language-model call.
type Extractor interface {
	Extract(ctx context.Context, posts []models.BufferEntry) ([]models.CandidateProperty, error)
}

// Enricher uploads a committed property's images and attaches vision
// metadata. Its failures never propagate to the caller.
type Enricher interface {
	Enrich(ctx context.Context, propertyID int64, imageURLs []string) (int, error)
}

// Pipeline runs one extraction request end to end: ownership check, the
// batched model call, per-candidate validation and commit, image enrichment,
// and buffer reconciliation.
type Pipeline struct {
	db        *database.Database
	extractor Extractor
	enricher  Enricher
	threshold int64
	logger    *logrus.Logger
}

func NewPipeline(db *database.Database, extractor Extractor, enricher Enricher, priceThreshold int64, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		db:        db,
		extractor: extractor,
		enricher:  enricher,
		threshold: priceThreshold,
		logger:    logger,
	}
}

// Submit processes the user's selected buffer entries. Candidates that fail
// validation or fail to commit are absorbed into the Submitted/Added gap;
// their buffer rows stay in place for retry. Rows whose posts produced a
// committed property are deleted.
func (p *Pipeline) Submit(ctx context.Context, entryIDs []int64, userID string) (*models.ImportResult, error) {
	if len(entryIDs) == 0 {
		return nil, ErrInvalidSelection
	}

	entries, err := p.db.GetBufferEntries(entryIDs, userID)
	if err != nil {
		return nil, err
	}
	// Fail fast before spending anything on the model call
	if len(entries) != len(entryIDs) {
		p.logger.WithFields(logrus.Fields{
			"user_id":  userID,
			"selected": len(entryIDs),
			"owned":    len(entries),
		}).Warn("Selection rejected")
		return nil, ErrInvalidSelection
	}

	candidates, err := p.extractor.Extract(ctx, entries)
	if err != nil {
		return nil, err
	}

	neighbourhoods, err := p.db.GetNeighbourhoods()
	if err != nil {
		return nil, err
	}
	validator, err := extraction.NewValidator(neighbourhoods, p.threshold, p.logger)
	if err != nil {
		return nil, err
	}

	added := 0
	var consumedPostIDs []string
	for _, candidate := range candidates {
		property, err := validator.Validate(candidate, userID)
		if err != nil {
			p.logger.WithError(err).WithField("title", candidate.Title).Info("Dropping candidate")
			continue
		}

		propertyID, err := p.db.InsertProperty(property)
		if err != nil {
			p.logger.WithError(err).WithField("title", property.Title).Error("Failed to commit property")
			continue
		}
		added++

		if candidate.FacebookImportID != "" {
			consumedPostIDs = append(consumedPostIDs, candidate.FacebookImportID)
		}

		if len(candidate.Images) > 0 {
			if _, err := p.enricher.Enrich(ctx, propertyID, candidate.Images); err != nil {
				p.logger.WithError(err).WithField("property_id", propertyID).Error("Image enrichment aborted")
			}
		}
	}

	// Consumed rows leave the buffer; rows that produced nothing stay put
	// so the user can retry them.
	if err := p.db.DeleteBufferEntriesByPostIDs(userID, consumedPostIDs); err != nil {
		p.logger.WithError(err).Error("Failed to reconcile buffer")
	}

	result := &models.ImportResult{
		Submitted: len(entryIDs),
		Added:     added,
	}

	p.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"submitted": result.Submitted,
		"added":     result.Added,
	}).Info("Extraction run finished")

	return result, nil
}
