package state

// one row per (source, stream); versions fit in BIGINT
const cursorTable = `CREATE TABLE IF NOT EXISTS event_cursor (
	source VARCHAR(64) NOT NULL,
	stream VARCHAR(64) NOT NULL,
	version BIGINT NOT NULL,
	next_sequence BIGINT NOT NULL,
	PRIMARY KEY (source, stream),
	CONSTRAINT chk_version CHECK (version >= 0),
	CONSTRAINT chk_next_sequence CHECK (next_sequence >= 0)
);`
