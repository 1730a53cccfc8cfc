// Package apikey manages client credentials for the query service. A raw
// key is issued once, prefixed with "sf_", and never stored; PostgreSQL
// keeps only its SHA-256 digest alongside per-client metadata such as the
// rate limit and an optional expiry.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kavyarao/streamfilter/pkg/postgres"
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

// rawKeyPrefix marks issued keys so support staff can recognize them in
// logs and tickets without ever seeing a stored value.
const rawKeyPrefix = "sf_"

// KeyInfo is the metadata attached to a client key. The raw key and its
// digest are never part of this struct.
type KeyInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	RateLimit int        `json:"rate_limit"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

const keyColumns = `id, name, rate_limit, is_active, created_at, expires_at`

// Validator resolves presented keys against the client_keys table.
type Validator struct {
	db  *postgres.Client
	log *slog.Logger
	now func() time.Time
}

// NewValidator returns a Validator backed by the given database.
func NewValidator(db *postgres.Client) *Validator {
	return &Validator{
		db:  db,
		log: slog.Default().With("component", "apikey"),
		now: time.Now,
	}
}

// Validate hashes the presented raw key and looks it up. A hit on an
// active, unexpired key returns its metadata; an unknown or revoked key
// returns ErrInvalidKey and a past-expiry key returns ErrExpiredKey.
func (v *Validator) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	row := v.db.DB.QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM client_keys WHERE key_digest = $1 AND is_active`,
		HashKey(rawKey),
	)

	info, err := scanKey(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("looking up api key: %w", err)
	}

	if info.ExpiresAt != nil && info.ExpiresAt.Before(v.now()) {
		return nil, ErrExpiredKey
	}
	return info, nil
}

// CreateKey mints a raw key, stores its digest, and hands the raw key
// back to the caller. There is no way to recover it afterwards.
func (v *Validator) CreateKey(ctx context.Context, name string, rateLimit int, expiresAt *time.Time) (string, error) {
	raw, err := mintRawKey()
	if err != nil {
		return "", err
	}

	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: *expiresAt, Valid: true}
	}

	if _, err := v.db.DB.ExecContext(ctx,
		`INSERT INTO client_keys (key_digest, name, rate_limit, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		HashKey(raw), name, rateLimit, expiry,
	); err != nil {
		return "", fmt.Errorf("storing api key: %w", err)
	}

	v.log.Info("api key issued", "name", name, "rate_limit", rateLimit)
	return raw, nil
}

// RevokeKey marks a key inactive. Revoking a key that does not exist or
// is already inactive returns ErrInvalidKey.
func (v *Validator) RevokeKey(ctx context.Context, rawKey string) error {
	res, err := v.db.DB.ExecContext(ctx,
		`UPDATE client_keys SET is_active = false WHERE key_digest = $1 AND is_active`,
		HashKey(rawKey),
	)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidKey
	}

	v.log.Info("api key revoked")
	return nil
}

// ListKeys returns the metadata of every active key, newest first.
func (v *Validator) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	rows, err := v.db.DB.QueryContext(ctx,
		`SELECT `+keyColumns+` FROM client_keys WHERE is_active ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var keys []KeyInfo
	for rows.Next() {
		info, err := scanKey(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning api key: %w", err)
		}
		keys = append(keys, *info)
	}
	return keys, rows.Err()
}

func scanKey(scan func(dest ...any) error) (*KeyInfo, error) {
	var info KeyInfo
	var expiry sql.NullTime
	if err := scan(&info.ID, &info.Name, &info.RateLimit, &info.IsActive, &info.CreatedAt, &expiry); err != nil {
		return nil, err
	}
	if expiry.Valid {
		t := expiry.Time
		info.ExpiresAt = &t
	}
	return &info, nil
}

// HashKey returns the hex SHA-256 digest stored for a raw key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func mintRawKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return rawKeyPrefix + hex.EncodeToString(b), nil
}
