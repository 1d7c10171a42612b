package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/m1ome/ex-eip712/pkg/log"
)

// DatabaseConfig selects the journal database.
//
// For Postgresql fill out every field. For sqlite only the driver is needed;
// without a name the database lives in memory.
type DatabaseConfig struct {
	Name     string `env:"EIP712_DATABASE_NAME" env-default:""`
	Schema   string `env:"EIP712_DATABASE_SCHEMA" env-default:""`
	Driver   string `env:"EIP712_DATABASE_DRIVER" env-default:"sqlite"`
	Username string `env:"EIP712_DATABASE_USERNAME" env-default:"postgres"`
	Password string `env:"EIP712_DATABASE_PASSWORD" env-default:""`
	Host     string `env:"EIP712_DATABASE_HOST" env-default:"localhost"`
	Port     string `env:"EIP712_DATABASE_PORT" env-default:"5432"`
	Retries  int    `env:"EIP712_DATABASE_RETRIES" env-default:"5"`
}

// ParseConnectionString parses "file:<path>" for sqlite or a postgres URI.
// The search_path and retries query parameters map to Schema and Retries.
func ParseConnectionString(connStr string) (DatabaseConfig, error) {
	if strings.HasPrefix(connStr, "file:") {
		parts := strings.SplitN(connStr[5:], "?", 2)
		return DatabaseConfig{
			Name:    parts[0],
			Driver:  "sqlite",
			Retries: 1,
		}, nil
	}

	parsedURL, err := url.Parse(connStr)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid connection string: %w", err)
	}

	if parsedURL.Scheme != "postgres" && parsedURL.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
	}

	username := ""
	password := ""
	if user := parsedURL.User; user != nil {
		username = user.Username()
		password, _ = user.Password()
	}

	port := parsedURL.Port()
	if port == "" {
		port = "5432"
	}

	retries := 5
	query := parsedURL.Query()
	if r := query.Get("retries"); r != "" {
		if retryVal, err := strconv.Atoi(r); err == nil {
			retries = retryVal
		}
	}

	return DatabaseConfig{
		Name:     strings.TrimPrefix(parsedURL.Path, "/"),
		Schema:   query.Get("search_path"),
		Driver:   "postgres",
		Username: username,
		Password: password,
		Host:     parsedURL.Hostname(),
		Port:     port,
		Retries:  retries,
	}, nil
}

// ConnectToDB opens the journal database and brings its schema up to date.
func ConnectToDB(cnf DatabaseConfig, logger log.Logger) (*gorm.DB, error) {
	logger = logger.WithName("database")

	switch cnf.Driver {
	case "postgres":
		return connectToPostgresql(cnf, logger)
	case "sqlite", "":
		return connectToSqlite(cnf, logger)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cnf.Driver)
	}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
}

// retryDelay is the wait before the second connection attempt; it doubles
// after every further failure.
var retryDelay = time.Second

func connectToPostgresql(cnf DatabaseConfig, logger log.Logger) (*gorm.DB, error) {
	dsn, err := postgresqlDbUrl(cnf)
	if err != nil {
		return nil, err
	}

	var db *gorm.DB
	err = withRetries(max(cnf.Retries, 1), retryDelay, logger, func() error {
		if err := ensurePostgresqlSchema(cnf, logger); err != nil {
			return fmt.Errorf("failed to ensure Postgresql schema: %w", err)
		}
		if err := migratePostgres(cnf, logger); err != nil {
			return fmt.Errorf("failed to apply Postgresql migrations: %w", err)
		}

		var err error
		db, err = gorm.Open(postgres.Open(dsn), gormConfig())
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("connected to Postgresql", "host", cnf.Host, "database", cnf.Name)
	return db, nil
}

// withRetries runs op up to attempts times, sleeping between failures with
// exponential backoff starting at delay. It returns the last error.
func withRetries(attempts int, delay time.Duration, logger log.Logger, op func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		logger.Warn("failed to connect to Postgresql, retrying", "attempt", attempt, "delay", delay, "error", err)
		time.Sleep(delay)
		delay *= 2
	}
	return err
}

func connectToSqlite(cnf DatabaseConfig, logger log.Logger) (*gorm.DB, error) {
	var dsn string
	if cnf.Name != "" {
		dsn = fmt.Sprintf("file:%s?cache=shared", cnf.Name)
	} else {
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}

	if err := migrateSqlite(db); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}

	logger.Info("connected to sqlite", "database", cnf.Name)
	return db, nil
}

func postgresqlDbUrl(cnf DatabaseConfig) (string, error) {
	if cnf.Driver != "postgres" {
		return "", fmt.Errorf("unsupported driver: %s", cnf.Driver)
	}

	dsn := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cnf.Username, cnf.Password, cnf.Host, cnf.Port, cnf.Name,
	)
	if cnf.Schema != "" {
		dsn = fmt.Sprintf("%s search_path=%s", dsn, cnf.Schema)
	}

	return dsn, nil
}

func ensurePostgresqlSchema(cnf DatabaseConfig, logger log.Logger) error {
	if cnf.Schema == "" {
		return nil
	}

	dbConf := cnf
	dbConf.Schema = ""
	dsn, err := postgresqlDbUrl(dbConf)
	if err != nil {
		return err
	}

	db, err := sqlx.Connect(dbConf.Driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	var exists bool
	if err := db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)", cnf.Schema); err != nil {
		return fmt.Errorf("error while checking schema existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err = db.Exec("CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(cnf.Schema)); err != nil {
		return fmt.Errorf("error while creating schema: %w", err)
	}

	logger.Info("schema created", "schema", cnf.Schema)
	return nil
}

func migratePostgres(cnf DatabaseConfig, logger log.Logger) error {
	dsn, err := postgresqlDbUrl(cnf)
	if err != nil {
		return err
	}

	db, err := goose.OpenDBWithDriver(cnf.Driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if cnf.Schema != "" {
		if _, err := db.Exec("SET search_path TO " + pq.QuoteIdentifier(cnf.Schema)); err != nil {
			return fmt.Errorf("failed to set search path: %w", err)
		}
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(cnf.Driver); err != nil {
		return err
	}
	if err := goose.Up(db, "config/migrations/"+cnf.Driver); err != nil {
		return err
	}

	logger.Info("applied migrations")
	return nil
}

func migrateSqlite(db *gorm.DB) error {
	return db.AutoMigrate(&SignatureRecord{})
}
