package mysql

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		email VARCHAR(255) NULL,
		external_id VARCHAR(255) NULL,
		role VARCHAR(16) NOT NULL,
		name VARCHAR(255) NOT NULL,
		time_zone VARCHAR(64) NOT NULL,
		last_seen_at VARCHAR(40) NULL,
		created_at VARCHAR(40) NOT NULL,
		updated_at VARCHAR(40) NOT NULL,
		UNIQUE KEY uq_users_email (email),
		UNIQUE KEY uq_users_external_id (external_id)
	) DEFAULT CHARSET = utf8mb4`,
	`CREATE TABLE IF NOT EXISTS field_definitions (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		source_field_id BIGINT NULL,
		label VARCHAR(255) NOT NULL,
		field_type VARCHAR(16) NOT NULL,
		required BOOLEAN NOT NULL,
		description TEXT NOT NULL,
		created_at VARCHAR(40) NOT NULL,
		updated_at VARCHAR(40) NOT NULL,
		UNIQUE KEY uq_fields_source_id (source_field_id),
		KEY idx_fields_label (label)
	) DEFAULT CHARSET = utf8mb4`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		number BIGINT NOT NULL,
		source_ticket_number BIGINT NULL,
		subject VARCHAR(500) NOT NULL,
		description MEDIUMTEXT NOT NULL,
		status VARCHAR(16) NOT NULL,
		priority VARCHAR(16) NOT NULL,
		requester_id VARCHAR(64) NOT NULL,
		assignee_id VARCHAR(64) NULL,
		tags TEXT NULL,
		created_at VARCHAR(40) NOT NULL,
		updated_at VARCHAR(40) NOT NULL,
		solved_at VARCHAR(40) NULL,
		UNIQUE KEY uq_tickets_number (number),
		UNIQUE KEY uq_tickets_source_number (source_ticket_number),
		CONSTRAINT fk_tickets_requester FOREIGN KEY (requester_id) REFERENCES users(id),
		CONSTRAINT fk_tickets_assignee FOREIGN KEY (assignee_id) REFERENCES users(id)
	) DEFAULT CHARSET = utf8mb4`,
	`CREATE TABLE IF NOT EXISTS comments (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		ticket_id VARCHAR(64) NOT NULL,
		author_id VARCHAR(64) NOT NULL,
		body MEDIUMTEXT NOT NULL,
		is_internal BOOLEAN NOT NULL,
		created_at VARCHAR(40) NOT NULL,
		KEY idx_comments_ticket (ticket_id, created_at),
		CONSTRAINT fk_comments_ticket FOREIGN KEY (ticket_id) REFERENCES tickets(id) ON DELETE CASCADE,
		CONSTRAINT fk_comments_author FOREIGN KEY (author_id) REFERENCES users(id)
	) DEFAULT CHARSET = utf8mb4`,
	`CREATE TABLE IF NOT EXISTS form_responses (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		ticket_id VARCHAR(64) NOT NULL,
		field_id VARCHAR(64) NOT NULL,
		value TEXT NOT NULL,
		created_at VARCHAR(40) NOT NULL,
		UNIQUE KEY uq_responses_ticket_field (ticket_id, field_id),
		CONSTRAINT fk_responses_ticket FOREIGN KEY (ticket_id) REFERENCES tickets(id) ON DELETE CASCADE,
		CONSTRAINT fk_responses_field FOREIGN KEY (field_id) REFERENCES field_definitions(id)
	) DEFAULT CHARSET = utf8mb4`,
	`CREATE TABLE IF NOT EXISTS ticket_sequence (
		id INT NOT NULL PRIMARY KEY,
		next_number BIGINT NOT NULL
	)`,
}
