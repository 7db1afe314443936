package site

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"ftr/internal/config"

	"github.com/go-sql-driver/mysql"
)

// Database runs the read side of the ORM directly against the site database
type Database struct {
	db *sql.DB
}

// Open connects to the site database. Non-empty overrides replace the
// site config's connection settings.
func Open(ctx context.Context, cfg *Config, overrides config.DBOverrides) (*Database, error) {
	if cfg.DBType != DBTypeMariaDB {
		return nil, fmt.Errorf("unsupported db_type %q", cfg.DBType)
	}

	host, port, user, password := cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword
	if overrides.Host != "" {
		host = overrides.Host
	}
	if overrides.Port != 0 {
		port = overrides.Port
	}
	if overrides.User != "" {
		user = overrides.User
	}
	if overrides.Password != "" {
		password = overrides.Password
	}

	dsn := mysql.NewConfig()
	dsn.User = user
	dsn.Passwd = password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	dsn.DBName = cfg.DBName
	dsn.ParseTime = true
	dsn.Timeout = 10 * time.Second

	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}
	return NewDatabase(db), nil
}

// NewDatabase wraps an open connection
func NewDatabase(db *sql.DB) *Database {
	return &Database{db: db}
}

// DB returns the underlying connection
func (d *Database) DB() *sql.DB {
	return d.db
}

// Close closes the connection
func (d *Database) Close() error {
	return d.db.Close()
}

// DocTypeModule returns the module of a doctype ("" when unknown)
func (d *Database) DocTypeModule(ctx context.Context, doctype string) (string, error) {
	var module string
	err := d.db.QueryRowContext(ctx, "SELECT module FROM `tabDocType` WHERE name = ?", doctype).Scan(&module)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get module of %s: %w", doctype, err)
	}
	return module, nil
}

// DocTypesInModule returns the non-table doctypes of a module
func (d *Database) DocTypesInModule(ctx context.Context, module string) ([]string, error) {
	return d.names(ctx, "SELECT name FROM `tabDocType` WHERE module = ? AND istable = 0 ORDER BY name", module)
}

// InstalledApps returns the apps installed on the site, in install order
func (d *Database) InstalledApps(ctx context.Context) ([]string, error) {
	return d.names(ctx, "SELECT app_name FROM `tabInstalled Application` ORDER BY idx")
}

// DocExists reports whether a document exists
func (d *Database) DocExists(ctx context.Context, doctype, name string) (bool, error) {
	table, err := tableName(doctype)
	if err != nil {
		return false, err
	}
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT name FROM %s WHERE name = ?)", table)
	if err := d.db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s %s: %w", doctype, name, err)
	}
	return exists, nil
}

// DeleteAll removes every document of a doctype
func (d *Database) DeleteAll(ctx context.Context, doctype string) (int64, error) {
	table, err := tableName(doctype)
	if err != nil {
		return 0, err
	}
	res, err := d.db.ExecContext(ctx, "DELETE FROM "+table)
	if err != nil {
		return 0, fmt.Errorf("delete %s records: %w", doctype, err)
	}
	return res.RowsAffected()
}

const (
	schedulerDocType = "System Settings"
	schedulerField   = "enable_scheduler"
)

// SchedulerEnabled reads System Settings.enable_scheduler
func (d *Database) SchedulerEnabled(ctx context.Context) (bool, error) {
	var value sql.NullString
	err := d.db.QueryRowContext(ctx,
		"SELECT value FROM `tabSingles` WHERE doctype = ? AND field = ?",
		schedulerDocType, schedulerField,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read scheduler state: %w", err)
	}
	n, _ := strconv.ParseFloat(strings.TrimSpace(value.String), 64)
	return n != 0, nil
}

// SetSchedulerEnabled writes System Settings.enable_scheduler
func (d *Database) SetSchedulerEnabled(ctx context.Context, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}

	var count int
	if err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM `tabSingles` WHERE doctype = ? AND field = ?",
		schedulerDocType, schedulerField,
	).Scan(&count); err != nil {
		return fmt.Errorf("read scheduler state: %w", err)
	}

	var err error
	if count > 0 {
		_, err = d.db.ExecContext(ctx,
			"UPDATE `tabSingles` SET value = ? WHERE doctype = ? AND field = ?",
			value, schedulerDocType, schedulerField)
	} else {
		_, err = d.db.ExecContext(ctx,
			"INSERT INTO `tabSingles` (doctype, field, value) VALUES (?, ?, ?)",
			schedulerDocType, schedulerField, value)
	}
	if err != nil {
		return fmt.Errorf("set scheduler state: %w", err)
	}
	return nil
}

func (d *Database) names(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// tableName quotes the table of a doctype after validating the name
func tableName(doctype string) (string, error) {
	if !isValidDocTypeName(doctype) {
		return "", fmt.Errorf("invalid doctype name: %q", doctype)
	}
	return "`tab" + doctype + "`", nil
}

// isValidDocTypeName allows letters, digits, spaces, hyphens and underscores
func isValidDocTypeName(name string) bool {
	if len(name) == 0 || len(name) > 61 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == ' ' || r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}
