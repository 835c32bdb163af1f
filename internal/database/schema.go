package database

const schema = `
CREATE TABLE IF NOT EXISTS review_sessions (
	id           UUID PRIMARY KEY,
	asin         VARCHAR(10) NOT NULL,
	keyword      TEXT NOT NULL DEFAULT '',
	page_budget  INT NOT NULL,
	pages_read   INT NOT NULL,
	review_count INT NOT NULL,
	stop_reason  TEXT,
	error        TEXT,
	csv_file     TEXT,
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS reviews (
	asin       VARCHAR(10) NOT NULL,
	identity   TEXT NOT NULL,
	session_id UUID NOT NULL REFERENCES review_sessions (id),
	rating     NUMERIC(2, 1),
	title      TEXT NOT NULL,
	body       TEXT NOT NULL,
	reviewer   TEXT NOT NULL,
	review_date TEXT NOT NULL,
	page       INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (asin, identity)
);

CREATE TABLE IF NOT EXISTS outbox_event (
	id             UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	target_stream  TEXT NOT NULL,
	status         TEXT NOT NULL,
	retry_count    INT NOT NULL DEFAULT 0,
	error_message  TEXT,
	created_at     TIMESTAMPTZ NOT NULL,
	processed_at   TIMESTAMPTZ,
	next_retry_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_outbox_event_pending ON outbox_event (status, next_retry_at);
`
