package database

import "fourwalls/server/internal/models"

func (d *Database) RunMigrations() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings_buffer (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			post_id TEXT,
			post_text TEXT,
			image_urls TEXT,
			source_url TEXT,
			extracted_at TEXT,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, post_id)
		);
	`)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`
		CREATE TABLE IF NOT EXISTS neighbourhoods (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);
	`)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`
		CREATE TABLE IF NOT EXISTS properties (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT,
			neighbourhood_id INTEGER NOT NULL REFERENCES neighbourhoods(id),
			city TEXT NOT NULL,
			price INTEGER NOT NULL,
			bedrooms INTEGER,
			bathrooms REAL,
			interior_size_sqm INTEGER,
			year_built INTEGER,
			lot_size_sqm REAL,
			status TEXT NOT NULL,
			property_type TEXT,
			features TEXT,
			agent_id TEXT NOT NULL,
			created_at TEXT
		);
	`)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`
		CREATE TABLE IF NOT EXISTS property_images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			property_id INTEGER NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			embedding TEXT,
			aspect TEXT,
			confidence REAL,
			created_at TEXT
		);
	`)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_listings_buffer_user
		ON listings_buffer(user_id);
	`)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_property_images_property
		ON property_images(property_id);
	`)
	if err != nil {
		return err
	}

	// The fallback neighbourhood must always exist; unknown names resolve
	// to it during validation.
	_, err = d.db.Exec(`
		INSERT OR IGNORE INTO neighbourhoods (name) VALUES (?);
	`, models.FallbackNeighbourhood)
	return err
}
