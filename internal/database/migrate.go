// Package database はPostgreSQL接続と埋め込みマイグレーションを提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateLogger はgolang-migrateの進捗ログをslogに流す。
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (l migrateLogger) Verbose() bool { return false }

// Migrator は埋め込みSQLを適用するマイグレーター。
// 使用後はCloseで接続を解放すること。
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator はdatabaseURLに対するMigratorを生成する。
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("マイグレーションソースの生成に失敗しました: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("マイグレーターの生成に失敗しました: %w", err)
	}
	m.Log = migrateLogger{logger: slog.Default()}

	return &Migrator{m: m}, nil
}

// Close はソースとデータベースの接続を閉じる。
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Up は未適用のマイグレーションをすべて適用する。最新の場合は何もしない。
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("マイグレーションの適用に失敗しました: %w", err)
	}
	return nil
}

// Rollback は直近のマイグレーションをsteps件だけ戻す。
func (mg *Migrator) Rollback(steps int) error {
	if err := mg.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("マイグレーションのロールバックに失敗しました: %w", err)
	}
	return nil
}

// Version は適用済みのバージョンとdirtyフラグを返す。未適用なら0を返す。
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("マイグレーションバージョンの取得に失敗しました: %w", err)
	}
	return version, dirty, nil
}

// withMigrator はMigratorを生成してfnを実行し、終了後に閉じる。
func withMigrator(databaseURL string, fn func(*Migrator) error) error {
	mg, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer mg.Close()
	return fn(mg)
}

// RunMigrations はすべてのマイグレーションを適用する。
func RunMigrations(databaseURL string) error {
	return withMigrator(databaseURL, (*Migrator).Up)
}

// RollbackMigrations は直近のマイグレーションをsteps件だけ戻す。
func RollbackMigrations(databaseURL string, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("ロールバック件数は1以上を指定してください: %d", steps)
	}
	return withMigrator(databaseURL, func(mg *Migrator) error {
		return mg.Rollback(steps)
	})
}

// MigrationVersion は適用済みのバージョンとdirtyフラグを返す。
func MigrationVersion(databaseURL string) (version uint, dirty bool, err error) {
	err = withMigrator(databaseURL, func(mg *Migrator) error {
		version, dirty, err = mg.Version()
		return err
	})
	return version, dirty, err
}
