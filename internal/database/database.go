package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fourwalls/server/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("record belongs to another user")
)

type Database struct {
	db *sql.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// InsertBufferEntries writes candidate posts into the staging buffer and
// returns the number of rows actually inserted. Rows whose external post id
// already exists for the user are skipped, so re-importing the same post
// never duplicates it.
func (d *Database) InsertBufferEntries(entries []models.BufferEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO listings_buffer
			(user_id, post_id, post_text, image_urls, source_url, extracted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, entry := range entries {
		imageJSON, err := json.Marshal(entry.ImageURLs)
		if err != nil {
			return inserted, fmt.Errorf("failed to encode image urls: %w", err)
		}

		res, err := stmt.Exec(
			entry.UserID,
			entry.PostID,
			entry.PostText,
			string(imageJSON),
			entry.SourceURL,
			entry.ExtractedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return inserted, err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return inserted, err
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListBufferEntries returns the user's staging buffer, newest first.
func (d *Database) ListBufferEntries(userID string) ([]models.BufferEntry, error) {
	rows, err := d.db.Query(`
		SELECT id, user_id, post_id, post_text, image_urls, source_url,
		       COALESCE(extracted_at, ''), COALESCE(created_at, '')
		FROM listings_buffer
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBufferEntries(rows)
}

// GetBufferEntries fetches the given entries, restricted to the owning user.
// Entries that do not exist or belong to someone else are silently absent
// from the result; callers compare lengths to detect an invalid selection.
func (d *Database) GetBufferEntries(ids []int64, userID string) ([]models.BufferEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(ids)+1)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, userID)

	rows, err := d.db.Query(fmt.Sprintf(`
		SELECT id, user_id, post_id, post_text, image_urls, source_url,
		       COALESCE(extracted_at, ''), COALESCE(created_at, '')
		FROM listings_buffer
		WHERE id IN (%s) AND user_id = ?
	`, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBufferEntries(rows)
}

func scanBufferEntries(rows *sql.Rows) ([]models.BufferEntry, error) {
	var entries []models.BufferEntry
	for rows.Next() {
		var e models.BufferEntry
		var postID, postText, imageJSON, sourceURL sql.NullString
		var extractedAt, createdAt string

		err := rows.Scan(&e.ID, &e.UserID, &postID, &postText, &imageJSON, &sourceURL, &extractedAt, &createdAt)
		if err != nil {
			return nil, err
		}

		if postID.Valid {
			e.PostID = postID.String
		}
		if postText.Valid {
			e.PostText = postText.String
		}
		if sourceURL.Valid {
			e.SourceURL = sourceURL.String
		}
		if imageJSON.Valid && imageJSON.String != "" {
			if err := json.Unmarshal([]byte(imageJSON.String), &e.ImageURLs); err != nil {
				return nil, fmt.Errorf("failed to decode image urls for entry %d: %w", e.ID, err)
			}
		}
		if extractedAt != "" {
			if t, err := time.Parse(time.RFC3339, extractedAt); err == nil {
				e.ExtractedAt = t
			}
		}
		if createdAt != "" {
			if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
				e.CreatedAt = t
			}
		}

		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteBufferEntry removes one staging row. Deleting a row that does not
// exist returns ErrNotFound; deleting another user's row returns ErrForbidden
// and has no effect.
func (d *Database) DeleteBufferEntry(entryID int64, userID string) error {
	var owner string
	err := d.db.QueryRow(`SELECT user_id FROM listings_buffer WHERE id = ?`, entryID).Scan(&owner)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrForbidden
	}

	_, err = d.db.Exec(`DELETE FROM listings_buffer WHERE id = ? AND user_id = ?`, entryID, userID)
	return err
}

// DeleteBufferEntriesByPostIDs removes the buffer rows whose posts were
// successfully converted into committed properties.
func (d *Database) DeleteBufferEntriesByPostIDs(userID string, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(postIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, 0, len(postIDs)+1)
	args = append(args, userID)
	for _, id := range postIDs {
		args = append(args, id)
	}

	_, err := d.db.Exec(fmt.Sprintf(`
		DELETE FROM listings_buffer WHERE user_id = ? AND post_id IN (%s)
	`, placeholders), args...)
	return err
}

// InsertNeighbourhood adds a neighbourhood if it does not exist yet and
// returns its id.
func (d *Database) InsertNeighbourhood(name string) (int64, error) {
	_, err := d.db.Exec(`INSERT OR IGNORE INTO neighbourhoods (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}

	var id int64
	err = d.db.QueryRow(`SELECT id FROM neighbourhoods WHERE name = ?`, name).Scan(&id)
	return id, err
}

func (d *Database) GetNeighbourhoods() ([]models.Neighbourhood, error) {
	rows, err := d.db.Query(`SELECT id, name FROM neighbourhoods ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var neighbourhoods []models.Neighbourhood
	for rows.Next() {
		var n models.Neighbourhood
		if err := rows.Scan(&n.ID, &n.Name); err != nil {
			return nil, err
		}
		neighbourhoods = append(neighbourhoods, n)
	}
	return neighbourhoods, rows.Err()
}

// InsertProperty commits one catalog row and returns its id.
func (d *Database) InsertProperty(p *models.Property) (int64, error) {
	featuresJSON, err := json.Marshal(p.Features)
	if err != nil {
		return 0, fmt.Errorf("failed to encode features: %w", err)
	}

	res, err := d.db.Exec(`
		INSERT INTO properties
			(title, description, neighbourhood_id, city, price, bedrooms,
			 bathrooms, interior_size_sqm, year_built, lot_size_sqm, status,
			 property_type, features, agent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.Title,
		p.Description,
		p.NeighbourhoodID,
		p.City,
		p.Price,
		p.Bedrooms,
		p.Bathrooms,
		p.InteriorSizeSqm,
		p.YearBuilt,
		p.LotSizeSqm,
		p.Status,
		p.PropertyType,
		string(featuresJSON),
		p.AgentID,
		p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertPropertyImage records one uploaded image with its vision metadata.
func (d *Database) InsertPropertyImage(img *models.PropertyImage) error {
	embeddingJSON, err := json.Marshal(img.Embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	_, err = d.db.Exec(`
		INSERT INTO property_images (property_id, url, embedding, aspect, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		img.PropertyID,
		img.URL,
		string(embeddingJSON),
		img.Aspect,
		img.Confidence,
		img.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetPropertyImages returns the image rows for a property, oldest first.
func (d *Database) GetPropertyImages(propertyID int64) ([]models.PropertyImage, error) {
	rows, err := d.db.Query(`
		SELECT id, property_id, url, embedding, aspect, confidence, COALESCE(created_at, '')
		FROM property_images
		WHERE property_id = ?
		ORDER BY id
	`, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.PropertyImage
	for rows.Next() {
		var img models.PropertyImage
		var embeddingJSON sql.NullString
		var createdAt string

		err := rows.Scan(&img.ID, &img.PropertyID, &img.URL, &embeddingJSON, &img.Aspect, &img.Confidence, &createdAt)
		if err != nil {
			return nil, err
		}

		if embeddingJSON.Valid && embeddingJSON.String != "" {
			if err := json.Unmarshal([]byte(embeddingJSON.String), &img.Embedding); err != nil {
				return nil, fmt.Errorf("failed to decode embedding for image %d: %w", img.ID, err)
			}
		}
		if createdAt != "" {
			if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
				img.CreatedAt = t
			}
		}

		images = append(images, img)
	}
	return images, rows.Err()
}

// CountProperties returns the number of catalog rows owned by the agent.
func (d *Database) CountProperties(agentID string) (int, error) {
	var count int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM properties WHERE agent_id = ?`, agentID).Scan(&count)
	return count, err
}
