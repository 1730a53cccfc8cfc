// Package catalog provides the PostgreSQL-backed title catalog: it
// loads the genre, provider, and region lookup tables the pattern
// rules are built from, and executes filter states as SQL searches
// over the titles table.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lib/pq"

	"github.com/kavyarao/streamfilter/internal/query/filterstate"
	"github.com/kavyarao/streamfilter/internal/query/pattern"
	apperrors "github.com/kavyarao/streamfilter/pkg/errors"
	"github.com/kavyarao/streamfilter/pkg/postgres"
)

// Title is one row of a search result.
type Title struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	ContentType string   `json:"content_type"`
	ReleaseDate string   `json:"release_date,omitempty"`
	Rating      float64  `json:"rating"`
	GenreIDs    []int64  `json:"genre_ids"`
	ProviderIDs []int64  `json:"provider_ids"`
	Regions     []string `json:"regions,omitempty"`
}

// SearchResult bundles one page of titles with the total match count.
type SearchResult struct {
	Titles []Title `json:"titles"`
	Total  int     `json:"total"`
}

// Store reads lookups and titles from PostgreSQL.
//
// It expects the following tables:
//
//	CREATE TABLE genres    (id INT PRIMARY KEY, name TEXT NOT NULL, aliases TEXT[] NOT NULL DEFAULT '{}');
//	CREATE TABLE providers (id INT PRIMARY KEY, name TEXT NOT NULL, aliases TEXT[] NOT NULL DEFAULT '{}');
//	CREATE TABLE regions   (code TEXT PRIMARY KEY, aliases TEXT[] NOT NULL DEFAULT '{}');
//	CREATE TABLE titles (
//	    id           BIGSERIAL PRIMARY KEY,
//	    name         TEXT NOT NULL,
//	    content_type TEXT NOT NULL,
//	    release_date DATE,
//	    rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    genre_ids    INT[] NOT NULL DEFAULT '{}',
//	    provider_ids INT[] NOT NULL DEFAULT '{}',
//	    regions      TEXT[] NOT NULL DEFAULT '{}'
//	);
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewStore creates a catalog store backed by the given client.
func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "catalog-store"),
	}
}

// LoadLookups reads the genre, provider, and region tables into the
// alias maps the pattern rules are built from. Alias keys are stored
// already folded in the database. The three tables are read inside one
// transaction so a concurrent catalog import cannot produce a mixed
// snapshot.
func (s *Store) LoadLookups(ctx context.Context) (pattern.Lookups, error) {
	l := pattern.Lookups{
		Genres:    make(map[string]int),
		Providers: make(map[string]pattern.Provider),
		Countries: make(map[string]string),
	}

	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := loadGenres(ctx, tx, l.Genres); err != nil {
			return err
		}
		if err := loadProviders(ctx, tx, l.Providers); err != nil {
			return err
		}
		return loadRegions(ctx, tx, l.Countries)
	})
	if err != nil {
		return pattern.Lookups{}, err
	}

	s.logger.Info("lookups loaded",
		"genre_aliases", len(l.Genres),
		"provider_aliases", len(l.Providers),
		"region_aliases", len(l.Countries),
	)
	return l, nil
}

func loadGenres(ctx context.Context, tx *sql.Tx, genres map[string]int) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, aliases FROM genres`)
	if err != nil {
		return fmt.Errorf("loading genres: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var aliases pq.StringArray
		if err := rows.Scan(&id, &aliases); err != nil {
			return fmt.Errorf("scanning genre row: %w", err)
		}
		for _, a := range aliases {
			genres[a] = id
		}
	}
	return rows.Err()
}

func loadProviders(ctx context.Context, tx *sql.Tx, providers map[string]pattern.Provider) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, name, aliases FROM providers`)
	if err != nil {
		return fmt.Errorf("loading providers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		var name string
		var aliases pq.StringArray
		if err := rows.Scan(&id, &name, &aliases); err != nil {
			return fmt.Errorf("scanning provider row: %w", err)
		}
		for _, a := range aliases {
			providers[a] = pattern.Provider{ID: id, Name: name}
		}
	}
	return rows.Err()
}

func loadRegions(ctx context.Context, tx *sql.Tx, countries map[string]string) error {
	rows, err := tx.QueryContext(ctx, `SELECT code, aliases FROM regions`)
	if err != nil {
		return fmt.Errorf("loading regions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		var aliases pq.StringArray
		if err := rows.Scan(&code, &aliases); err != nil {
			return fmt.Errorf("scanning region row: %w", err)
		}
		for _, a := range aliases {
			countries[a] = code
		}
	}
	return rows.Err()
}

// Search executes a filter state against the titles table.
func (s *Store) Search(ctx context.Context, state filterstate.State, limit, offset int) (*SearchResult, error) {
	start := time.Now()

	query, countQuery, args := buildSearchQuery(state, limit, offset)

	var total int
	if err := s.db.DB.QueryRowContext(ctx, countQuery, args[:len(args)-2]...).Scan(&total); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCatalogUnavailable,
			http.StatusServiceUnavailable, "counting titles: %v", err)
	}

	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrCatalogUnavailable,
			http.StatusServiceUnavailable, "searching titles: %v", err)
	}
	defer rows.Close()

	result := &SearchResult{Titles: make([]Title, 0, limit), Total: total}
	for rows.Next() {
		var t Title
		var releaseDate pq.NullTime
		var genreIDs, providerIDs pq.Int64Array
		var regions pq.StringArray
		if err := rows.Scan(&t.ID, &t.Name, &t.ContentType, &releaseDate, &t.Rating, &genreIDs, &providerIDs, &regions); err != nil {
			return nil, fmt.Errorf("scanning title row: %w", err)
		}
		if releaseDate.Valid {
			t.ReleaseDate = releaseDate.Time.Format("2006-01-02")
		}
		t.GenreIDs = genreIDs
		t.ProviderIDs = providerIDs
		t.Regions = regions
		result.Titles = append(result.Titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading titles: %w", err)
	}

	s.logger.Debug("catalog search executed",
		"matches", total,
		"returned", len(result.Titles),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// Ping verifies database connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.DB.PingContext(ctx)
}
