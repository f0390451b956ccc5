package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/impactgate/pkg/cluster"
	"github.com/elonfeng/impactgate/pkg/impact"
)

// ListOpts controls cluster listing.
type ListOpts struct {
	ActiveOnly   bool
	AssessedOnly bool
	Since        time.Time
	Limit        int
}

// Store is the persistence interface. It covers the impact engine's
// needs (impact.Store) plus ingestion and the HTTP surface.
type Store interface {
	impact.Store

	UpsertCluster(ctx context.Context, c *cluster.Cluster) error
	UpsertClusters(ctx context.Context, clusters []cluster.Cluster) error
	GetCluster(ctx context.Context, id string) (*cluster.Cluster, error)
	ListClusters(ctx context.Context, opts ListOpts) ([]cluster.Cluster, error)
	AssignTopics(ctx context.Context, clusterID string, topics map[string]float64) error

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertCluster(ctx context.Context, c *cluster.Cluster) error {
	typesJSON, _ := json.Marshal(c.ContentTypes)
	flagsJSON, _ := json.Marshal(c.RiskFlags)
	itemsJSON, _ := json.Marshal(c.ItemIDs)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO story_clusters (id, title, takeaway, url, content_types, risk_flags, item_ids,
			distinct_source_count, has_full_document, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			takeaway = excluded.takeaway,
			url = excluded.url,
			content_types = excluded.content_types,
			risk_flags = excluded.risk_flags,
			item_ids = excluded.item_ids,
			distinct_source_count = excluded.distinct_source_count,
			has_full_document = excluded.has_full_document,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, c.ID, c.Title, c.Takeaway, c.URL, string(typesJSON), string(flagsJSON), string(itemsJSON),
		c.DistinctSourceCount, c.HasFullDocument, c.Active, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert cluster %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpsertClusters(ctx context.Context, clusters []cluster.Cluster) error {
	for i := range clusters {
		if err := s.UpsertCluster(ctx, &clusters[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) GetCluster(ctx context.Context, id string) (*cluster.Cluster, error) {
	var c cluster.Cluster
	err := s.db.GetContext(ctx, &c, "SELECT * FROM story_clusters WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, impact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cluster %s: %w", id, err)
	}
	unmarshalLists(&c)
	return &c, nil
}

func (s *SQLiteStore) ListClusters(ctx context.Context, opts ListOpts) ([]cluster.Cluster, error) {
	query := "SELECT * FROM story_clusters WHERE 1=1"
	var args []any

	if opts.ActiveOnly {
		query += " AND active = 1"
	}
	if opts.AssessedOnly {
		query += " AND assessed_at IS NOT NULL"
	}
	if !opts.Since.IsZero() {
		query += " AND updated_at >= ?"
		args = append(args, opts.Since)
	}

	query += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var clusters []cluster.Cluster
	if err := s.db.SelectContext(ctx, &clusters, query, args...); err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}

	for i := range clusters {
		unmarshalLists(&clusters[i])
	}
	return clusters, nil
}

// ListScorable returns the active clusters the engine should (re)score.
// limit <= 0 means no cap.
func (s *SQLiteStore) ListScorable(ctx context.Context, limit int) ([]cluster.Cluster, error) {
	query := "SELECT * FROM story_clusters WHERE active = 1 ORDER BY created_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var clusters []cluster.Cluster
	if err := s.db.SelectContext(ctx, &clusters, query, args...); err != nil {
		return nil, fmt.Errorf("list scorable clusters: %w", err)
	}

	for i := range clusters {
		unmarshalLists(&clusters[i])
	}
	return clusters, nil
}

func (s *SQLiteStore) SaveAssessment(ctx context.Context, clusterID string, a *cluster.Assessment) error {
	reasonsJSON, _ := json.Marshal(a.Result.ReasonCodes)

	var shadow any
	if a.ShadowPayload != "" {
		shadow = a.ShadowPayload
	}

	var final any
	if a.Result.Final != nil {
		final = *a.Result.Final
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE story_clusters SET
			assessed_at = ?,
			eligible = ?,
			provisional_score = ?,
			final_score = ?,
			confidence = ?,
			score_version = ?,
			reason_codes = ?,
			novelty_score = ?,
			translation_score = ?,
			evidence_score = ?,
			threshold = ?,
			threshold_bucket = ?,
			passed_threshold = ?,
			passed_confidence = ?,
			passed_evidence = ?,
			is_high_impact = ?,
			shadow_payload = ?
		WHERE id = ?
	`, a.AssessedAt, a.Result.Eligible, a.Result.Provisional, final, a.Result.Confidence,
		a.Result.Version, string(reasonsJSON),
		a.Components.Novelty, a.Components.Translation, a.Components.Evidence,
		a.Resolution.Threshold, string(a.Resolution.Bucket),
		a.PassedThreshold, a.PassedConfidence, a.PassedEvidence, a.HighImpact,
		shadow, clusterID)
	if err != nil {
		return fmt.Errorf("save assessment %s: %w", clusterID, err)
	}
	return nil
}

func (s *SQLiteStore) AssignTopics(ctx context.Context, clusterID string, topics map[string]float64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cluster_topics WHERE cluster_id = ?", clusterID); err != nil {
		return fmt.Errorf("clear topics %s: %w", clusterID, err)
	}
	for topic, score := range topics {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO cluster_topics (cluster_id, topic, score) VALUES (?, ?, ?)",
			clusterID, topic, score)
		if err != nil {
			return fmt.Errorf("assign topic %s/%s: %w", clusterID, topic, err)
		}
	}
	return nil
}

// ClusterMeta looks up the calibration identity of a cluster: creation
// time plus its primary topic by best association score.
func (s *SQLiteStore) ClusterMeta(ctx context.Context, clusterID string) (cluster.Meta, error) {
	var row struct {
		CreatedAt time.Time `db:"created_at"`
	}
	err := s.db.GetContext(ctx, &row, "SELECT created_at FROM story_clusters WHERE id = ?", clusterID)
	if errors.Is(err, sql.ErrNoRows) {
		return cluster.Meta{}, impact.ErrNotFound
	}
	if err != nil {
		return cluster.Meta{}, fmt.Errorf("cluster meta %s: %w", clusterID, err)
	}

	meta := cluster.Meta{ClusterID: clusterID, CreatedAt: row.CreatedAt}

	var topic struct {
		Topic string  `db:"topic"`
		Score float64 `db:"score"`
	}
	err = s.db.GetContext(ctx, &topic, `
		SELECT topic, score FROM cluster_topics
		WHERE cluster_id = ?
		ORDER BY score DESC, topic ASC
		LIMIT 1
	`, clusterID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return cluster.Meta{}, fmt.Errorf("primary topic %s: %w", clusterID, err)
	}
	if err == nil {
		meta.Topic = topic.Topic
		meta.TopicScore = topic.Score
	}

	return meta, nil
}

// ScoreStats returns the 99th-percentile final score and row count over
// the historical population selected by q. SQLite has no percentile
// aggregate, so scores come back ordered and the interpolation happens
// here.
func (s *SQLiteStore) ScoreStats(ctx context.Context, q impact.ScoreStatsQuery) (impact.ScoreStats, error) {
	now := time.Now().UTC()
	query := `
		SELECT final_score FROM story_clusters
		WHERE active = 1 AND eligible = 1 AND final_score IS NOT NULL
		  AND assessed_at IS NOT NULL AND assessed_at >= ?`
	args := []any{now.AddDate(0, 0, -q.WindowDays)}

	if q.Topic != "" {
		query += `
		  AND ? = (SELECT t.topic FROM cluster_topics t
		           WHERE t.cluster_id = story_clusters.id
		           ORDER BY t.score DESC, t.topic ASC LIMIT 1)`
		args = append(args, q.Topic)
	}

	switch q.AgeBucket {
	case cluster.Age0to30:
		query += " AND created_at >= ?"
		args = append(args, now.AddDate(0, 0, -30))
	case cluster.Age31to90:
		query += " AND created_at < ? AND created_at >= ?"
		args = append(args, now.AddDate(0, 0, -30), now.AddDate(0, 0, -90))
	case cluster.Age91to365:
		query += " AND created_at < ?"
		args = append(args, now.AddDate(0, 0, -90))
	}

	query += " ORDER BY final_score ASC"

	var scores []float64
	if err := s.db.SelectContext(ctx, &scores, query, args...); err != nil {
		return impact.ScoreStats{}, fmt.Errorf("score stats: %w", err)
	}

	return impact.ScoreStats{
		P99:   impact.Percentile(scores, impact.ThresholdPercentile),
		Count: len(scores),
	}, nil
}

// RateCounts returns the eligible and labeled-and-eligible counts over
// active clusters assessed within the trailing window.
func (s *SQLiteStore) RateCounts(ctx context.Context, windowDays int) (eligible, labeled int, err error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)
	row := struct {
		Eligible int `db:"eligible"`
		Labeled  int `db:"labeled"`
	}{}
	err = s.db.GetContext(ctx, &row, `
		SELECT
			COALESCE(SUM(CASE WHEN eligible = 1 THEN 1 ELSE 0 END), 0) AS eligible,
			COALESCE(SUM(CASE WHEN eligible = 1 AND is_high_impact = 1 THEN 1 ELSE 0 END), 0) AS labeled
		FROM story_clusters
		WHERE active = 1 AND assessed_at IS NOT NULL AND assessed_at >= ?
	`, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("rate counts: %w", err)
	}
	return row.Eligible, row.Labeled, nil
}

// DebugRows returns ranked audit rows for the calibration report.
func (s *SQLiteStore) DebugRows(ctx context.Context, q impact.DebugQuery) ([]cluster.DebugRow, error) {
	query := `
		SELECT id, title, final_score, threshold,
		       (final_score - threshold) AS threshold_delta,
		       confidence, is_high_impact,
		       novelty_score, translation_score, evidence_score,
		       passed_threshold, passed_confidence, passed_evidence,
		       shadow_payload
		FROM story_clusters
		WHERE active = 1 AND assessed_at IS NOT NULL
		  AND final_score IS NOT NULL AND threshold IS NOT NULL
		  AND is_high_impact = ?`
	args := []any{q.HighImpact}

	if q.EligibleOnly {
		query += " AND eligible = 1"
	}

	query += " ORDER BY threshold_delta DESC, final_score DESC"

	limit := q.Limit
	if limit <= 0 {
		limit = impact.DefaultReportLimit
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var rows []cluster.DebugRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("debug rows: %w", err)
	}
	return rows, nil
}

func unmarshalLists(c *cluster.Cluster) {
	json.Unmarshal([]byte(c.ContentTypesJSON), &c.ContentTypes)
	json.Unmarshal([]byte(c.RiskFlagsJSON), &c.RiskFlags)
	json.Unmarshal([]byte(c.ItemIDsJSON), &c.ItemIDs)
	json.Unmarshal([]byte(c.ReasonCodesJSON), &c.ReasonCodes)
}
