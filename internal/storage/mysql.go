package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/go-sql-driver/mysql"

	"tia/internal/config"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// MySQLStorage keeps the selection document of each project in one row, so
// CI machines can share a cache. A save is a single upsert statement.
type MySQLStorage struct {
	db      *sql.DB
	dsn     string
	table   string
	project string
	ready   bool
}

// NewMySQLStorage prepares a connection pool for the configured server. No
// connection is made until the first Load or Save.
func NewMySQLStorage(cfg *config.Config) (*MySQLStorage, error) {
	dsn, err := DSN(cfg.MySQL)
	if err != nil {
		return nil, err
	}
	table := cfg.MySQL.Table
	if table == "" {
		table = config.DefaultMySQLTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &MySQLStorage{
		db:      db,
		dsn:     dsn,
		table:   table,
		project: cfg.GetProjectName(),
	}, nil
}

// DSN builds the driver DSN from an explicit TIA_MYSQL_DSN or from the
// DB_* connection settings.
func DSN(m config.MySQL) (string, error) {
	if m.DSN != "" {
		parsed, err := mysql.ParseDSN(m.DSN)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		parsed.ParseTime = true
		return parsed.FormatDSN(), nil
	}
	if m.Database == "" {
		return "", errors.New("mysql store needs DB_DATABASE or TIA_MYSQL_DSN")
	}

	c := mysql.NewConfig()
	c.User = m.User
	c.Passwd = m.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(m.Host, m.Port)
	c.DBName = m.Database
	c.ParseTime = true
	return c.FormatDSN(), nil
}

// Location returns the server, table and project row the state lives in.
func (s *MySQLStorage) Location() string {
	addr := "mysql"
	if c, err := mysql.ParseDSN(s.dsn); err == nil {
		addr = fmt.Sprintf("mysql://%s/%s", c.Addr, c.DBName)
	}
	return fmt.Sprintf("%s#%s[%s]", addr, s.table, s.project)
}

// Close closes the connection pool.
func (s *MySQLStorage) Close() error {
	return s.db.Close()
}

// Load reads the project's document; no row is an empty state.
func (s *MySQLStorage) Load(ctx context.Context) (*State, error) {
	if err := s.ensureTable(ctx); err != nil {
		return nil, err
	}

	var document []byte
	err := s.db.QueryRowContext(ctx, selectSQL(s.table), s.project).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state for %s: %w", s.project, err)
	}

	state, err := Decode(document)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Location(), err)
	}
	return state, nil
}

// Save replaces the project's document in one statement.
func (s *MySQLStorage) Save(ctx context.Context, state *State) error {
	if err := s.ensureTable(ctx); err != nil {
		return err
	}
	data, err := Encode(state)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsertSQL(s.table), s.project, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("save state for %s: %w", s.project, err)
	}
	return nil
}

func (s *MySQLStorage) ensureTable(ctx context.Context) error {
	if s.ready {
		return nil
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createTableSQL(s.table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	s.ready = true
	return nil
}

func createTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS `%s` ("+
		"project VARCHAR(255) NOT NULL PRIMARY KEY, "+
		"document LONGBLOB NOT NULL, "+
		"updated_at DATETIME(6) NOT NULL"+
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4", table)
}

func selectSQL(table string) string {
	return fmt.Sprintf("SELECT document FROM `%s` WHERE project = ?", table)
}

func upsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO `%s` (project, document, updated_at) VALUES (?, ?, ?) "+
		"ON DUPLICATE KEY UPDATE document = VALUES(document), updated_at = VALUES(updated_at)", table)
}
