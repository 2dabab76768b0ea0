package sqlite

// Timestamps are fixed-width UTC strings so they sort lexically.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE,
		external_id TEXT UNIQUE,
		role TEXT NOT NULL CHECK (role IN ('USER', 'AGENT', 'ADMIN')),
		name TEXT NOT NULL DEFAULT '',
		time_zone TEXT NOT NULL DEFAULT '',
		last_seen_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS field_definitions (
		id TEXT PRIMARY KEY,
		source_field_id INTEGER UNIQUE,
		label TEXT NOT NULL,
		field_type TEXT NOT NULL,
		required INTEGER NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_field_definitions_label ON field_definitions(label)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id TEXT PRIMARY KEY,
		number INTEGER NOT NULL UNIQUE,
		source_ticket_number INTEGER UNIQUE,
		subject TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		requester_id TEXT NOT NULL REFERENCES users(id),
		assignee_id TEXT REFERENCES users(id),
		tags TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		solved_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		ticket_id TEXT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
		author_id TEXT NOT NULL REFERENCES users(id),
		body TEXT NOT NULL,
		is_internal INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_ticket ON comments(ticket_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS form_responses (
		id TEXT PRIMARY KEY,
		ticket_id TEXT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
		field_id TEXT NOT NULL REFERENCES field_definitions(id),
		value TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (ticket_id, field_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_sequence (
		id INTEGER PRIMARY KEY,
		next_number INTEGER NOT NULL
	)`,
}
