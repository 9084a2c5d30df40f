package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	MySQL  = "mysql"
	SQLite = "sqlite"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrEmailTaken = errors.New("email already registered")
)

// Store is the persistence layer for users, cards and todos.
type Store struct {
	db     *sql.DB
	driver string

	// Now is the clock used for timestamps and the delayed filter.
	Now func() time.Time
}

// Open connects to the database named by driver and dsn. MySQL DSNs always
// get parseTime and UTC locations; SQLite paths get foreign keys enforced.
func Open(driver, dsn string) (*Store, error) {
	var err error
	switch driver {
	case MySQL:
		dsn, err = mysqlDSN(dsn)
	case SQLite:
		dsn = sqliteDSN(dsn)
	default:
		err = fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &Store{db: conn, driver: driver, Now: time.Now}, nil
}

func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	// RowsAffected must count matched rows, not changed ones.
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite"
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) now() time.Time {
	return s.Now().UTC().Truncate(time.Second)
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if s.driver == MySQL {
		stmts = mysqlSchema
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Reset drops every table and recreates the schema.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"todos", "cards", "users"} {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return s.Migrate(ctx)
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

var sqliteSchema = []string{`
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name VARCHAR(55) NOT NULL,
		last_name VARCHAR(55) NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		secret_key VARCHAR(12) NOT NULL,
		secret_code VARCHAR(6) NULL,
		code_sent_at DATETIME NULL,
		confirmed_at DATETIME NULL,
		active BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`, `
	CREATE TABLE IF NOT EXISTS cards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title VARCHAR(255) NOT NULL,
		note TEXT NULL,
		parent_card_id INTEGER NULL,
		owner_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (parent_card_id) REFERENCES cards(id) ON DELETE CASCADE
	);`, `
	CREATE TABLE IF NOT EXISTS todos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title VARCHAR(255) NOT NULL,
		note TEXT NULL,
		due_date DATETIME NULL,
		notified BOOLEAN NOT NULL DEFAULT 0,
		completed BOOLEAN NOT NULL DEFAULT 0,
		completed_at DATETIME NULL,
		card_id INTEGER NULL,
		owner_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE
	);`,
	`CREATE INDEX IF NOT EXISTS cards_owner_idx ON cards (owner_id);`,
	`CREATE INDEX IF NOT EXISTS todos_owner_idx ON todos (owner_id);`,
}

var mysqlSchema = []string{`
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		first_name VARCHAR(55) NOT NULL,
		last_name VARCHAR(55) NOT NULL,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		secret_key VARCHAR(12) NOT NULL,
		secret_code VARCHAR(6) NULL,
		code_sent_at DATETIME NULL,
		confirmed_at DATETIME NULL,
		active TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	) ENGINE=InnoDB;`, `
	CREATE TABLE IF NOT EXISTS cards (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		note TEXT NULL,
		parent_card_id BIGINT NULL,
		owner_id BIGINT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		INDEX cards_owner_idx (owner_id),
		FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (parent_card_id) REFERENCES cards(id) ON DELETE CASCADE
	) ENGINE=InnoDB;`, `
	CREATE TABLE IF NOT EXISTS todos (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		note TEXT NULL,
		due_date DATETIME NULL,
		notified TINYINT(1) NOT NULL DEFAULT 0,
		completed TINYINT(1) NOT NULL DEFAULT 0,
		completed_at DATETIME NULL,
		card_id BIGINT NULL,
		owner_id BIGINT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		INDEX todos_owner_idx (owner_id),
		FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (card_id) REFERENCES cards(id) ON DELETE CASCADE
	) ENGINE=InnoDB;`,
}
