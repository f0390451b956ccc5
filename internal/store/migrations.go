package store

const schema = `
CREATE TABLE IF NOT EXISTS story_clusters (
    id                    TEXT PRIMARY KEY,
    title                 TEXT NOT NULL,
    takeaway              TEXT NOT NULL DEFAULT '',
    url                   TEXT NOT NULL DEFAULT '',
    content_types         TEXT NOT NULL DEFAULT '[]',
    risk_flags            TEXT NOT NULL DEFAULT '[]',
    item_ids              TEXT NOT NULL DEFAULT '[]',
    distinct_source_count INTEGER NOT NULL DEFAULT 0,
    has_full_document     BOOLEAN NOT NULL DEFAULT 0,
    active                BOOLEAN NOT NULL DEFAULT 1,
    created_at            DATETIME NOT NULL,
    updated_at            DATETIME NOT NULL,

    assessed_at           DATETIME,
    eligible              BOOLEAN NOT NULL DEFAULT 0,
    provisional_score     REAL,
    final_score           REAL,
    confidence            REAL,
    score_version         TEXT NOT NULL DEFAULT '',
    reason_codes          TEXT NOT NULL DEFAULT '[]',
    novelty_score         REAL,
    translation_score     REAL,
    evidence_score        REAL,
    threshold             REAL,
    threshold_bucket      TEXT NOT NULL DEFAULT '',
    passed_threshold      BOOLEAN NOT NULL DEFAULT 0,
    passed_confidence     BOOLEAN NOT NULL DEFAULT 0,
    passed_evidence       BOOLEAN NOT NULL DEFAULT 0,
    is_high_impact        BOOLEAN NOT NULL DEFAULT 0,
    shadow_payload        TEXT
);

CREATE INDEX IF NOT EXISTS idx_clusters_created_at ON story_clusters(created_at);
CREATE INDEX IF NOT EXISTS idx_clusters_assessed_at ON story_clusters(assessed_at);
CREATE INDEX IF NOT EXISTS idx_clusters_final_score ON story_clusters(final_score);
CREATE INDEX IF NOT EXISTS idx_clusters_label ON story_clusters(is_high_impact);

CREATE TABLE IF NOT EXISTS cluster_topics (
    cluster_id TEXT NOT NULL REFERENCES story_clusters(id),
    topic      TEXT NOT NULL,
    score      REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (cluster_id, topic)
);

CREATE INDEX IF NOT EXISTS idx_cluster_topics_topic ON cluster_topics(topic);
`
