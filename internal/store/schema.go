package store

// schemaStatements create the archive schema. Every statement is
// IF NOT EXISTS so Init is safe to run against a populated store.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS exhibitions (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	exhibition_id BIGINT UNIQUE NOT NULL,
	title_is TEXT NOT NULL,
	title_en TEXT,
	start_date DATE,
	end_date DATE,
	description_is TEXT,
	description_en TEXT,
	excerpt_is TEXT,
	year INT NOT NULL,
	source_url TEXT NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS artists (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name TEXT NOT NULL,
	normalized_name TEXT UNIQUE NOT NULL,
	source_url TEXT,
	bio TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS exhibition_artists (
	exhibition_id BIGINT NOT NULL REFERENCES exhibitions(id),
	artist_id BIGINT NOT NULL REFERENCES artists(id),
	display_order INT,
	PRIMARY KEY (exhibition_id, artist_id)
)`,
	`CREATE TABLE IF NOT EXISTS images (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	exhibition_id BIGINT NOT NULL REFERENCES exhibitions(id),
	filename TEXT NOT NULL,
	original_url TEXT NOT NULL,
	local_path TEXT,
	alt_text TEXT,
	caption TEXT,
	width INT,
	height INT,
	file_size BIGINT,
	mime_type TEXT,
	display_order INT NOT NULL DEFAULT 0,
	downloaded_at TIMESTAMPTZ
)`,
	`CREATE TABLE IF NOT EXISTS scraping_log (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	url TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	response_code INT,
	scraped_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_exhibitions_year ON exhibitions(year)`,
	`CREATE INDEX IF NOT EXISTS idx_exhibitions_exhibition_id ON exhibitions(exhibition_id)`,
	`CREATE INDEX IF NOT EXISTS idx_artists_normalized ON artists(normalized_name)`,
	`CREATE INDEX IF NOT EXISTS idx_images_exhibition ON images(exhibition_id)`,
}
