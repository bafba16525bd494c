package storage

const schemaSQL = `
-- One row per organization crawl; counters are filled in when the run ends
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY NOT NULL,
    organization TEXT NOT NULL,
    seed_url TEXT NOT NULL,
    state TEXT NOT NULL DEFAULT 'running' CHECK (state IN ('running', 'done', 'failed')),
    started_at INTEGER NOT NULL,     -- unix nanoseconds
    finished_at INTEGER,
    visited INTEGER NOT NULL DEFAULT 0,
    pages_saved INTEGER NOT NULL DEFAULT 0,
    pdfs_saved INTEGER NOT NULL DEFAULT 0,
    errors INTEGER NOT NULL DEFAULT 0,
    blocked_by_robots INTEGER NOT NULL DEFAULT 0,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_organization ON runs(organization, started_at);

-- Mirror of every meta.jsonl line
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    organization TEXT NOT NULL,
    event TEXT NOT NULL,
    url TEXT NOT NULL,
    depth INTEGER NOT NULL DEFAULT 0,
    status_code INTEGER,
    artifact_path TEXT,
    link_text TEXT,
    size_bytes INTEGER,
    error_message TEXT,
    occurred_at INTEGER NOT NULL     -- unix nanoseconds
);

CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
CREATE INDEX IF NOT EXISTS idx_events_org_type ON events(organization, event);
CREATE INDEX IF NOT EXISTS idx_events_url ON events(url);
`
