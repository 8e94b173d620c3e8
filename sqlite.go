package main

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type sqliteRepo struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSQLiteRepo(dbPath string) (Repository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, "sqlite3"); err != nil {
		return nil, err
	}

	return &sqliteRepo{db: db}, nil
}

func (r *sqliteRepo) GetCursor(platform string) (string, bool) {
	var id string
	err := r.db.QueryRow("SELECT last_id FROM cursors WHERE platform = ?", platform).Scan(&id)
	return id, err == nil
}

func (r *sqliteRepo) AdvanceCursor(platform, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.db.Exec(`INSERT INTO cursors (platform, last_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(platform) DO UPDATE SET last_id = excluded.last_id, updated_at = excluded.updated_at`,
		platform, id, time.Now().Unix())
	return err
}

func (r *sqliteRepo) FindTweetForToot(tootID string) (string, bool) {
	var id string
	err := r.db.QueryRow("SELECT twitter_id FROM pairs WHERE mastodon_id = ? ORDER BY id DESC LIMIT 1", tootID).Scan(&id)
	return id, err == nil
}

func (r *sqliteRepo) FindTootForTweet(tweetID string) (string, bool) {
	var id string
	err := r.db.QueryRow("SELECT mastodon_id FROM pairs WHERE twitter_id = ? ORDER BY id DESC LIMIT 1", tweetID).Scan(&id)
	return id, err == nil
}

func (r *sqliteRepo) FlushPairs(pairs []Pairing, maxPairs int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	// pairs приходят в порядке создания; автоинкрементный id
	// сохраняет порядок свежести
	for _, p := range pairs {
		if _, err := tx.Exec("INSERT OR IGNORE INTO pairs (mastodon_id, twitter_id, created_at) VALUES (?, ?, ?)",
			p.MastodonID, p.TwitterID, now); err != nil {
			return err
		}
	}

	if maxPairs > 0 {
		if _, err := tx.Exec("DELETE FROM pairs WHERE id NOT IN (SELECT id FROM pairs ORDER BY id DESC LIMIT ?)", maxPairs); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *sqliteRepo) CountPairs() (int, error) {
	var n int
	err := r.db.QueryRow("SELECT count(*) FROM pairs").Scan(&n)
	return n, err
}

func (r *sqliteRepo) Close() error {
	return r.db.Close()
}
