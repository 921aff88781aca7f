package sqlite

// Schema history, keyed by PRAGMA user_version.

const schemaV1 = `
-- Echo entries: one row per MEMORY.md section, replaced wholesale on rebuild
CREATE TABLE IF NOT EXISTS echo_entries (
    id TEXT PRIMARY KEY,
    role TEXT NOT NULL,
    layer TEXT NOT NULL,
    date TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    line_number INTEGER NOT NULL,
    file_path TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_echo_entries_role ON echo_entries(role);
CREATE INDEX IF NOT EXISTS idx_echo_entries_layer ON echo_entries(layer);

-- Single-row-per-key metadata (last_indexed, binary_version)
CREATE TABLE IF NOT EXISTS echo_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Append-only access events, pruned by size and age
CREATE TABLE IF NOT EXISTS echo_access_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entry_id TEXT NOT NULL,
    accessed_at TEXT NOT NULL,
    query TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_echo_access_entry ON echo_access_log(entry_id);
CREATE INDEX IF NOT EXISTS idx_echo_access_time ON echo_access_log(accessed_at);

-- External-content FTS index over entries; synchronized via the
-- 'delete-all' and 'rebuild' commands during rebuild
CREATE VIRTUAL TABLE IF NOT EXISTS echo_entries_fts USING fts5(
    content, tags, source,
    content=echo_entries,
    tokenize='porter unicode61'
);
`

const schemaV2 = `
-- Semantic groups: entry clusters; memberships die with their entries
CREATE TABLE IF NOT EXISTS semantic_groups (
    group_id TEXT NOT NULL,
    entry_id TEXT NOT NULL REFERENCES echo_entries(id) ON DELETE CASCADE,
    similarity REAL NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    PRIMARY KEY (group_id, entry_id)
);

CREATE INDEX IF NOT EXISTS idx_semantic_groups_entry ON semantic_groups(entry_id);

-- Token-fingerprint failure tracking for retry injection
CREATE TABLE IF NOT EXISTS echo_search_failures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entry_id TEXT NOT NULL,
    token_fingerprint TEXT NOT NULL,
    retry_count INTEGER NOT NULL DEFAULT 0,
    first_failed_at TEXT NOT NULL,
    last_retried_at TEXT,
    UNIQUE (entry_id, token_fingerprint)
);

CREATE INDEX IF NOT EXISTS idx_search_failures_fingerprint ON echo_search_failures(token_fingerprint);
CREATE INDEX IF NOT EXISTS idx_search_failures_first_failed ON echo_search_failures(first_failed_at);
`
