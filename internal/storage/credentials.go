package storage

import (
	"database/sql"
	"time"

	"github.com/thinhng24/CollabSphere-sub001/internal/token"
)

// SaveCredential persists the session's token pair (single row, replaced on
// every refresh).
func (db *DB) SaveCredential(c token.Credential) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO credentials (id, access_token, refresh_token, access_expires_at, refresh_expires_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			access_expires_at = excluded.access_expires_at,
			refresh_expires_at = excluded.refresh_expires_at,
			updated_at = excluded.updated_at`,
		c.AccessToken, c.RefreshToken,
		c.AccessExpiresAt.UnixMilli(), c.RefreshExpiresAt.UnixMilli(), now)
	return err
}

// LoadCredential reads the persisted token pair. Returns ok=false when no
// session has been saved.
func (db *DB) LoadCredential() (token.Credential, bool, error) {
	var c token.Credential
	var accessMs, refreshMs int64
	err := db.QueryRow(`
		SELECT access_token, refresh_token, access_expires_at, refresh_expires_at
		FROM credentials WHERE id = 1`).
		Scan(&c.AccessToken, &c.RefreshToken, &accessMs, &refreshMs)
	if err == sql.ErrNoRows {
		return token.Credential{}, false, nil
	}
	if err != nil {
		return token.Credential{}, false, err
	}
	c.AccessExpiresAt = time.UnixMilli(accessMs)
	c.RefreshExpiresAt = time.UnixMilli(refreshMs)
	return c, true, nil
}

// ClearCredential removes the persisted token pair (logout, refresh failure).
func (db *DB) ClearCredential() error {
	_, err := db.Exec(`DELETE FROM credentials WHERE id = 1`)
	return err
}
