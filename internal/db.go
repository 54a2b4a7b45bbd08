package internal

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sensiblebit/webidkit"
	_ "modernc.org/sqlite"
)

// ErrProfileNotFound is returned when an alias has no profile.
var ErrProfileNotFound = errors.New("profile not found")

// DB represents the profile store connection.
type DB struct {
	*sqlx.DB
}

// NewDB opens the profile store at path, creating it if needed. An empty path
// opens a private in-memory store.
func NewDB(path string) (*DB, error) {
	// Pin to a single connection: each :memory: connection is a separate
	// database, and a single writer avoids SQLITE_BUSY on files. PRAGMAs are
	// set via the DSN so they apply automatically to reconnections.
	dsn := "file::memory:?_pragma=foreign_keys(1)&_pragma=temp_store(2)"
	if path != "" {
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	dbObj := &DB{DB: db}

	if err := dbObj.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	slog.Debug("database initialized", "path", path)

	return dbObj, nil
}

func (db *DB) initSchema() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			alias        text PRIMARY KEY,
			display_name text NOT NULL,
			webid        text NOT NULL,
			created_at   timestamp NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating profiles table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS certificates (
			id               text PRIMARY KEY,
			alias            text NOT NULL REFERENCES profiles(alias) ON DELETE CASCADE,
			position         integer NOT NULL,
			purpose          text NOT NULL,
			certificate_path text NOT NULL,
			key_path         text NOT NULL,
			modulus          text NOT NULL,
			exponent         integer NOT NULL,
			fingerprint      text NOT NULL,
			not_before       timestamp NOT NULL,
			not_after        timestamp NOT NULL,
			pem              text NOT NULL,
			created_at       timestamp NOT NULL,
			UNIQUE(alias, position)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating certificates table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_certificates_modulus ON certificates (modulus);
	`)
	if err != nil {
		return fmt.Errorf("creating modulus index on certificates table: %w", err)
	}
	return nil
}

// InsertProfile adds a new profile. It fails if the alias is taken.
func (db *DB) InsertProfile(p ProfileRecord) error {
	if err := webidkit.ValidateStruct(p); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := db.NamedExec(`
		INSERT INTO profiles (alias, display_name, webid, created_at)
		VALUES (:alias, :display_name, :webid, :created_at)
	`, p)
	if err != nil {
		return fmt.Errorf("inserting profile %s: %w", p.Alias, err)
	}
	return nil
}

// UpsertProfile adds a profile or updates the name and WebID of an existing
// one. Its certificate list is kept.
func (db *DB) UpsertProfile(p ProfileRecord) error {
	if err := webidkit.ValidateStruct(p); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := db.NamedExec(`
		INSERT INTO profiles (alias, display_name, webid, created_at)
		VALUES (:alias, :display_name, :webid, :created_at)
		ON CONFLICT(alias) DO UPDATE SET display_name = excluded.display_name, webid = excluded.webid
	`, p)
	if err != nil {
		return fmt.Errorf("upserting profile %s: %w", p.Alias, err)
	}
	return nil
}

// GetProfile returns the profile for alias, or nil if there is none.
func (db *DB) GetProfile(alias string) (*ProfileRecord, error) {
	var p ProfileRecord
	err := db.Get(&p, "SELECT * FROM profiles WHERE alias = ?", alias)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting profile %s: %w", alias, err)
	}
	return &p, nil
}

// ListProfiles returns all profiles ordered by alias.
func (db *DB) ListProfiles() ([]ProfileRecord, error) {
	var profiles []ProfileRecord
	if err := db.Select(&profiles, "SELECT * FROM profiles ORDER BY alias"); err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return profiles, nil
}

// LookupIdentity returns the identity a certificate for alias is issued to.
func (db *DB) LookupIdentity(alias string) (webidkit.Identity, error) {
	p, err := db.GetProfile(alias)
	if err != nil {
		return webidkit.Identity{}, err
	}
	if p == nil {
		return webidkit.Identity{}, fmt.Errorf("%w: %s", ErrProfileNotFound, alias)
	}
	return webidkit.NewIdentity(p.DisplayName, p.WebID)
}

// AddCertificate appends rec to the certificate list of alias and returns its
// position. The first certificate of a profile gets position 0.
func (db *DB) AddCertificate(alias string, rec CertificateRecord) (int, error) {
	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.Get(&exists, "SELECT COUNT(*) FROM profiles WHERE alias = ?", alias); err != nil {
		return 0, fmt.Errorf("checking profile %s: %w", alias, err)
	}
	if exists == 0 {
		return 0, fmt.Errorf("%w: %s", ErrProfileNotFound, alias)
	}

	var next int
	if err := tx.Get(&next, "SELECT COALESCE(MAX(position) + 1, 0) FROM certificates WHERE alias = ?", alias); err != nil {
		return 0, fmt.Errorf("computing certificate position: %w", err)
	}

	rec.Alias = alias
	rec.Position = next
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return 0, fmt.Errorf("generating certificate id: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err = tx.NamedExec(`
		INSERT INTO certificates (id, alias, position, purpose, certificate_path, key_path, modulus, exponent, fingerprint, not_before, not_after, pem, created_at)
		VALUES (:id, :alias, :position, :purpose, :certificate_path, :key_path, :modulus, :exponent, :fingerprint, :not_before, :not_after, :pem, :created_at)
	`, rec)
	if err != nil {
		return 0, fmt.Errorf("inserting certificate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing certificate: %w", err)
	}
	slog.Debug("stored certificate", "alias", alias, "position", next, "id", rec.ID)
	return next, nil
}

// ListCertificates returns the certificate list of alias in position order.
func (db *DB) ListCertificates(alias string) ([]CertificateRecord, error) {
	var certs []CertificateRecord
	err := db.Select(&certs, "SELECT * FROM certificates WHERE alias = ? ORDER BY position", alias)
	if err != nil {
		return nil, fmt.Errorf("listing certificates for %s: %w", alias, err)
	}
	return certs, nil
}

// PrimaryCertificate returns the certificate at position 0 for alias, or nil
// if the profile has none.
func (db *DB) PrimaryCertificate(alias string) (*CertificateRecord, error) {
	var rec CertificateRecord
	err := db.Get(&rec, "SELECT * FROM certificates WHERE alias = ? AND position = 0", alias)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting primary certificate for %s: %w", alias, err)
	}
	return &rec, nil
}

// ProfileSummary pairs a profile with the size of its certificate list.
type ProfileSummary struct {
	ProfileRecord
	Certificates int `db:"certificates" json:"certificates"`
}

// ListProfileSummaries returns every profile with its certificate count.
func (db *DB) ListProfileSummaries() ([]ProfileSummary, error) {
	var out []ProfileSummary
	err := db.Select(&out, `
		SELECT p.alias, p.display_name, p.webid, p.created_at, COUNT(c.id) AS certificates
		FROM profiles p LEFT JOIN certificates c ON c.alias = p.alias
		GROUP BY p.alias ORDER BY p.alias
	`)
	if err != nil {
		return nil, fmt.Errorf("summarizing profiles: %w", err)
	}
	return out, nil
}
