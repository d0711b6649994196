package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverMySQL    = "mysql"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite3"
)

const (
	defaultHost      = "localhost"
	defaultMySQLPort = "3306"
	defaultPGPort    = "5432"
)

// Config holds the credentials a Conn opens its handle with. Host and Port
// default per driver; for sqlite3 Database is the file path.
type Config struct {
	Driver   string
	Host     string
	Port     string
	Database string
	User     string
	Password string
	Params   map[string]string
}

// DSN builds the driver specific data source name.
func (c Config) DSN() (string, error) {
	host := c.Host
	if host == "" {
		host = defaultHost
	}

	switch c.Driver {
	case DriverMySQL:
		port := c.Port
		if port == "" {
			port = defaultMySQLPort
		}

		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(host, port)
		cfg.DBName = c.Database
		if len(c.Params) > 0 {
			cfg.Params = c.Params
		}

		return cfg.FormatDSN(), nil
	case DriverPgx:
		port := c.Port
		if port == "" {
			port = defaultPGPort
		}

		q := url.Values{}
		q.Set("sslmode", "disable")
		for k, v := range c.Params {
			q.Set(k, v)
		}

		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     net.JoinHostPort(host, port),
			Path:     "/" + c.Database,
			RawQuery: q.Encode(),
		}

		return u.String(), nil
	case DriverPostgres:
		port := c.Port
		if port == "" {
			port = defaultPGPort
		}

		kv := map[string]string{
			"host":     host,
			"port":     port,
			"user":     c.User,
			"password": c.Password,
			"dbname":   c.Database,
			"sslmode":  "disable",
		}
		for k, v := range c.Params {
			kv[k] = v
		}

		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, pqQuote(kv[k])))
		}

		return strings.Join(parts, " "), nil
	case DriverSqlite:
		dsn := c.Database
		if dsn == "" {
			dsn = ":memory:"
		}

		if len(c.Params) > 0 {
			q := url.Values{}
			for k, v := range c.Params {
				q.Set(k, v)
			}
			dsn += "?" + q.Encode()
		}

		return dsn, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}
}

func pqQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// Conn owns a single database handle. It is not safe for concurrent use.
type Conn struct {
	config Config
	db     *sqlx.DB
	logger *slog.Logger
}

func NewConn(config Config, options ...Option) *Conn {
	opt := createOption(options)
	return &Conn{
		config: config,
		logger: opt.logger,
	}
}

// Connect creates a Conn and opens it.
func Connect(ctx context.Context, config Config, options ...Option) (*Conn, error) {
	c := NewConn(config, options...)
	if err := c.Open(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// Open establishes the handle. Calling Open on an open Conn is a no-op.
func (c *Conn) Open(ctx context.Context) error {
	if c.db != nil {
		return nil
	}

	dsn, err := c.config.DSN()
	if err != nil {
		c.log().Error("connection failed", "driver", c.config.Driver, "err", err)
		return err
	}

	db, err := sqlx.Open(c.config.Driver, dsn)
	if err != nil {
		c.log().Error("connection failed", "driver", c.config.Driver, "err", err)
		return fmt.Errorf("failed to open %s database. %w", c.config.Driver, err)
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		c.log().Error("connection failed", "driver", c.config.Driver, "err", err)
		return fmt.Errorf("failed to connect to %s database. %w", c.config.Driver, err)
	}

	c.db = db
	return nil
}

// Close releases the handle. It is safe to call on an unopened or closed Conn.
func (c *Conn) Close() error {
	if c.db == nil {
		return nil
	}

	db := c.db
	c.db = nil
	return db.Close()
}

func (c *Conn) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}

	return c.logger
}

func (c *Conn) Driver() string {
	return c.config.Driver
}

// DB returns the underlying handle, nil when the Conn is not open.
func (c *Conn) DB() *sqlx.DB {
	return c.db
}

func (c *Conn) Ping(ctx context.Context) error {
	if c.db == nil {
		return ErrNotOpen
	}

	return c.db.PingContext(ctx)
}

// Exec runs a statement that returns no row set, such as INSERT, UPDATE or
// DELETE. Placeholders are written as "?" whatever the driver.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if c.db == nil {
		c.log().Error("query failed", "query", query, "err", ErrNotOpen)
		return nil, ErrNotOpen
	}

	query = c.db.Rebind(query)
	c.log().Debug("exec", "query", query, "args", args)

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		c.log().Error("query failed", "query", query, "err", err)
		return nil, wrapSQLError(err)
	}

	return res, nil
}

// Query runs a statement that returns a row set and reads it fully.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	if c.db == nil {
		c.log().Error("query failed", "query", query, "err", ErrNotOpen)
		return nil, ErrNotOpen
	}

	query = c.db.Rebind(query)
	c.log().Debug("query", "query", query, "args", args)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		c.log().Error("query failed", "query", query, "err", err)
		return nil, wrapSQLError(err)
	}
	defer rows.Close()

	rs, err := readResultSet(rows)
	if err != nil {
		c.log().Error("query failed", "query", query, "err", err)
		return nil, wrapSQLError(err)
	}

	return rs, nil
}

func readResultSet(rows *sql.Rows) (*ResultSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns. %w", err)
	}

	rs := &ResultSet{Columns: columns}
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row. %w", err)
		}

		rs.Rows = append(rs.Rows, Map(values, func(val sql.NullString) string {
			return val.String
		}))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rs, nil
}
