package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/umeyka/umeyka-backend/internal/logger"
)

// NewPostgres создаёт подключение к PostgreSQL с заданным DSN.
func NewPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: не удалось подключиться: %w", err)
	}

	conn.SetMaxOpenConns(50)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return conn, nil
}

// RunMigrations применяет *.up.sql из каталога миграций до последней версии.
func RunMigrations(ctx context.Context, conn *sqlx.DB, migrationsDir string) error {
	return runMigrations(ctx, conn, os.DirFS(migrationsDir))
}

func runMigrations(ctx context.Context, conn *sqlx.DB, fsys fs.FS) error {
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("postgres: не удалось прочитать каталог миграций: %w", err)
	}

	// отдельное соединение: m.Close закрывает его, но не пул
	sqlConn, err := conn.Conn(ctx)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("postgres: не удалось получить соединение для миграций: %w", err)
	}
	driver, err := postgres.WithConnection(ctx, sqlConn, &postgres.Config{})
	if err != nil {
		_ = src.Close()
		_ = sqlConn.Close()
		return fmt.Errorf("postgres: не удалось инициализировать таблицу миграций: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return fmt.Errorf("postgres: не удалось создать мигратор: %w", err)
	}
	defer m.Close()
	m.Log = migrateLogger{logger.WithComponent("migrate")}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: не удалось применить миграции: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("postgres: не удалось прочитать версию схемы: %w", err)
	}
	logger.Log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("схема БД актуальна")
	return nil
}

// migrateLogger пишет сообщения мигратора через logrus.
type migrateLogger struct {
	entry *logrus.Entry
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.entry.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (l migrateLogger) Verbose() bool {
	return false
}
