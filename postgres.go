package main

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

type postgresRepo struct {
	db *sql.DB
	mu sync.Mutex
}

func NewPostgresRepo(dsn string) (Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := runMigrations(db, "postgres"); err != nil {
		return nil, err
	}

	return &postgresRepo{db: db}, nil
}

func (r *postgresRepo) GetCursor(platform string) (string, bool) {
	var id string
	err := r.db.QueryRow("SELECT last_id FROM cursors WHERE platform = $1", platform).Scan(&id)
	return id, err == nil
}

func (r *postgresRepo) AdvanceCursor(platform, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(`INSERT INTO cursors (platform, last_id, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT(platform) DO UPDATE SET last_id = excluded.last_id, updated_at = excluded.updated_at`,
		platform, id, time.Now().Unix())
	return err
}

func (r *postgresRepo) FindTweetForToot(tootID string) (string, bool) {
	var id string
	err := r.db.QueryRow("SELECT twitter_id FROM pairs WHERE mastodon_id = $1 ORDER BY id DESC LIMIT 1", tootID).Scan(&id)
	return id, err == nil
}

func (r *postgresRepo) FindTootForTweet(tweetID string) (string, bool) {
	var id string
	err := r.db.QueryRow("SELECT mastodon_id FROM pairs WHERE twitter_id = $1 ORDER BY id DESC LIMIT 1", tweetID).Scan(&id)
	return id, err == nil
}

func (r *postgresRepo) FlushPairs(pairs []Pairing, maxPairs int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for _, p := range pairs {
		if _, err := tx.Exec("INSERT INTO pairs (mastodon_id, twitter_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
			p.MastodonID, p.TwitterID, now); err != nil {
			return err
		}
	}

	if maxPairs > 0 {
		if _, err := tx.Exec("DELETE FROM pairs WHERE id NOT IN (SELECT id FROM pairs ORDER BY id DESC LIMIT $1)", maxPairs); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *postgresRepo) CountPairs() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT count(*) FROM pairs").Scan(&n)
	return n, err
}

func (r *postgresRepo) Close() error {
	return r.db.Close()
}
