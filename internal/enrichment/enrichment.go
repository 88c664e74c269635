package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fourwalls/server/internal/database"
	"fourwalls/server/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Enricher uploads a property's images to object storage and attaches
// vision-derived metadata to each one. It runs after the property row has
// committed; nothing it does can fail the property.
type Enricher struct {
	db         *database.Database
	storageURL string
	bucket     string
	serviceKey string
	embedURL   string
	client     *http.Client
	logger     *logrus.Logger
}

type embedResponse struct {
	Embedding  []float32 `json:"embedding"`
	Aspect     string    `json:"aspect"`
	Confidence float64   `json:"confidence"`
}

func NewEnricher(db *database.Database, storageURL, bucket, serviceKey, embedURL string, logger *logrus.Logger) *Enricher {
	return &Enricher{
		db:         db,
		storageURL: storageURL,
		bucket:     bucket,
		serviceKey: serviceKey,
		embedURL:   embedURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Enrich processes each image URL in turn: download, upload to storage under
// a path namespaced by property id, fetch the embedding triple, insert the
// property_images row. A failure on one image is logged and skipped; sibling
// images and the owning property are unaffected.
func (e *Enricher) Enrich(ctx context.Context, propertyID int64, imageURLs []string) (int, error) {
	uploaded := 0
	for _, src := range imageURLs {
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}

		publicURL, err := e.uploadImage(ctx, propertyID, src)
		if err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"property_id": propertyID,
				"source_url":  src,
			}).Error("Image upload failed, skipping")
			continue
		}

		embed, err := e.fetchEmbedding(ctx, publicURL)
		if err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"property_id": propertyID,
				"image_url":   publicURL,
			}).Error("Embedding lookup failed, skipping")
			continue
		}

		img := &models.PropertyImage{
			PropertyID: propertyID,
			URL:        publicURL,
			Embedding:  embed.Embedding,
			Aspect:     embed.Aspect,
			Confidence: embed.Confidence,
			CreatedAt:  time.Now(),
		}
		if err := e.db.InsertPropertyImage(img); err != nil {
			e.logger.WithError(err).WithField("property_id", propertyID).Error("Failed to insert image row, skipping")
			continue
		}

		uploaded++
	}

	e.logger.WithFields(logrus.Fields{
		"property_id": propertyID,
		"requested":   len(imageURLs),
		"uploaded":    uploaded,
	}).Info("Image enrichment finished")

	return uploaded, nil
}

// uploadImage pulls the source bytes and writes them into the storage bucket
// under property_images/<propertyID>/<random>.jpg, returning the public URL.
func (e *Enricher) uploadImage(ctx context.Context, propertyID int64, sourceURL string) (string, error) {
	data, err := e.downloadImage(ctx, sourceURL)
	if err != nil {
		return "", err
	}

	objectPath := fmt.Sprintf("%s/%d/%s.jpg", e.bucket, propertyID, uuid.NewString())

	req, err := http.NewRequestWithContext(ctx, "POST", e.storageURL+"/object/"+objectPath, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+e.serviceKey)
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Cache-Control", "max-age=3600")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("storage upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	return e.storageURL + "/object/public/" + objectPath, nil
}

func (e *Enricher) downloadImage(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", sourceURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download failed with status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// fetchEmbedding asks the vision service for the (embedding, aspect,
// confidence) triple of an uploaded image.
func (e *Enricher) fetchEmbedding(ctx context.Context, imageURL string) (*embedResponse, error) {
	payload, err := json.Marshal(map[string]string{"url": imageURL})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.embedURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var embed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embed); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}

	return &embed, nil
}
