package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-post-wizard/internal/post"
	"ai-post-wizard/internal/profile"
	"ai-post-wizard/internal/strategy"
)

// Repository is the database-backed durable store: append-only history
// records plus the identity-scoped usage counters consumed by the quota
// ledger.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// PostRecord is one completed post in history.
type PostRecord struct {
	ID          int64
	Title       string
	Caption     string
	Hashtags    []string
	PostingTime string
	CreatedAt   time.Time
}

// SavePost appends a completed post to the identity's history.
func (r *Repository) SavePost(ctx context.Context, identityID string, d post.Details) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO post_history (identity_id, title, caption, hashtags, posting_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		identityID, d.Title, d.Caption, strings.Join(d.Hashtags, " "), d.PostingTime, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save post: %w", err)
	}
	return nil
}

// ListPosts retrieves the identity's most recent posts, newest first.
func (r *Repository) ListPosts(ctx context.Context, identityID string, limit int) ([]PostRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, caption, hashtags, posting_time, created_at
		 FROM post_history WHERE identity_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var records []PostRecord
	for rows.Next() {
		var rec PostRecord
		var tags string
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Caption, &tags, &rec.PostingTime, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		if tags != "" {
			rec.Hashtags = strings.Fields(tags)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveIdea appends a content idea to the identity's saved ideas.
func (r *Repository) SaveIdea(ctx context.Context, identityID string, idea strategy.ContentIdea) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO saved_ideas (identity_id, title, description, angle, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		identityID, idea.Title, idea.Description, idea.Angle, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save idea: %w", err)
	}
	return nil
}

// ListIdeas retrieves the identity's saved ideas, newest first.
func (r *Repository) ListIdeas(ctx context.Context, identityID string) ([]strategy.ContentIdea, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT title, description, angle FROM saved_ideas
		 WHERE identity_id = ? ORDER BY created_at DESC, id DESC`,
		identityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ideas: %w", err)
	}
	defer rows.Close()

	var ideas []strategy.ContentIdea
	for rows.Next() {
		var idea strategy.ContentIdea
		if err := rows.Scan(&idea.Title, &idea.Description, &idea.Angle); err != nil {
			return nil, fmt.Errorf("failed to scan idea row: %w", err)
		}
		ideas = append(ideas, idea)
	}
	return ideas, rows.Err()
}

// SaveProfile appends a profile to the identity's saved profiles.
func (r *Repository) SaveProfile(ctx context.Context, identityID string, p profile.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO saved_profiles (identity_id, data, created_at) VALUES (?, ?, ?)`,
		identityID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// ListProfiles retrieves the identity's saved profiles, newest first.
func (r *Repository) ListProfiles(ctx context.Context, identityID string) ([]profile.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM saved_profiles WHERE identity_id = ? ORDER BY created_at DESC, id DESC`,
		identityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []profile.Profile
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		var p profile.Profile
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			fmt.Printf("Warning: failed to unmarshal saved profile: %v\n", err)
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// SaveWorkflowSnapshot stores the in-flight workflow snapshot. It is
// write-only from the client's perspective: nothing ever reads it back to
// restore step state.
func (r *Repository) SaveWorkflowSnapshot(ctx context.Context, identityID string, snapshot any) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO workflow_snapshots (identity_id, snapshot, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (identity_id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = excluded.updated_at`,
		identityID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save workflow snapshot: %w", err)
	}
	return nil
}

// LoadCounters reads the identity's usage counters. Missing identities yield
// an empty map.
func (r *Repository) LoadCounters(ctx context.Context, identityID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT feature, count FROM usage_counters WHERE identity_id = ?`, identityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load counters: %w", err)
	}
	defer rows.Close()

	counters := make(map[string]int)
	for rows.Next() {
		var feature string
		var count int
		if err := rows.Scan(&feature, &count); err != nil {
			return nil, fmt.Errorf("failed to scan counter row: %w", err)
		}
		counters[feature] = count
	}
	return counters, rows.Err()
}

// SaveCounters upserts the identity's usage counters.
func (r *Repository) SaveCounters(ctx context.Context, identityID string, counters map[string]int) error {
	now := time.Now().UTC()
	for feature, count := range counters {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO usage_counters (identity_id, feature, count, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (identity_id, feature) DO UPDATE SET count = excluded.count, updated_at = excluded.updated_at`,
			identityID, feature, count, now)
		if err != nil {
			return fmt.Errorf("failed to save counter %s: %w", feature, err)
		}
	}
	return nil
}
