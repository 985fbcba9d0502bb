// Package credstore reads robot login credentials from the municipality's
// SQL Server vault. Passwords are stored encrypted with a symmetric key that
// is opened by certificate inside the query; the store itself is read-only.
package credstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/nyborg-rpa/rpa-core/internal/config"
)

// Login is one row of the credential table.
type Login struct {
	Name         string
	Username     string
	Password     string
	Program      string
	LastModified time.Time
}

// Store provides access to the credential table.
type Store struct {
	cfg *config.CredStoreConfig
	db  *sql.DB
}

// Open connects to the credential database using integrated security.
func Open(cfg *config.CredStoreConfig) (*Store, error) {
	if cfg.Server == "" || cfg.Database == "" {
		return nil, fmt.Errorf("credstore: SQL_SERVER and SQL_DATABASE must be set")
	}

	connStr := fmt.Sprintf("sqlserver://%s?database=%s&trusted_connection=yes&app+name=nyborg-rpa",
		cfg.Server, cfg.Database)

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("open credential database: %w", err)
	}

	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{cfg: cfg, db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// loginQuery opens the symmetric key, decrypts the password column and closes
// the key again in a single batch. Key, certificate and table names come from
// configuration and are controlled by the operators, not by user input.
func (s *Store) loginQuery() string {
	return fmt.Sprintf(
		"OPEN SYMMETRIC KEY %s DECRYPTION BY CERTIFICATE %s;"+
			"SELECT Navn, Username, Last_Modified, Program, CONVERT(VARCHAR(MAX), DecryptByKey(Password)) AS Password FROM %s;"+
			"CLOSE SYMMETRIC KEY %s;",
		s.cfg.SymKey, s.cfg.Cert, s.cfg.Table, s.cfg.SymKey)
}

// Logins returns the full decrypted credential table.
func (s *Store) Logins(ctx context.Context) ([]Login, error) {
	rows, err := s.db.QueryContext(ctx, s.loginQuery())
	if err != nil {
		return nil, fmt.Errorf("query credential table: %w", err)
	}
	defer rows.Close()

	var logins []Login
	for rows.Next() {
		var l Login
		var lastModified sql.NullTime
		var password sql.NullString
		if err := rows.Scan(&l.Name, &l.Username, &lastModified, &l.Program, &password); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}
		l.LastModified = lastModified.Time
		l.Password = password.String
		logins = append(logins, l)
	}

	return logins, rows.Err()
}

// Usernames returns the sorted robot names with a Windows login.
func (s *Store) Usernames(ctx context.Context) ([]string, error) {
	logins, err := s.Logins(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, l := range logins {
		if l.Program == "Windows" {
			names = append(names, l.Name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("credstore: no Windows logins found")
	}

	sort.Strings(names)
	return names, nil
}

// Lookup returns the login for a robot name and program. Exactly one row must
// match.
func (s *Store) Lookup(ctx context.Context, name, program string) (*Login, error) {
	logins, err := s.Logins(ctx)
	if err != nil {
		return nil, err
	}

	var matches []Login
	for _, l := range logins {
		if l.Name == name && l.Program == program {
			matches = append(matches, l)
		}
	}

	if len(matches) != 1 {
		return nil, fmt.Errorf("credstore: expected exactly one login for %q/%q, found %d", name, program, len(matches))
	}

	return &matches[0], nil
}
