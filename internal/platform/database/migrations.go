package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/merrymeeple/meeple-rag/migrations"
)

// RunMigrations は埋め込み済みマイグレーションを未適用分だけ実行する
// 冪等であり、起動のたびに呼んでよい
func RunMigrations(dsn string, logger *slog.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("マイグレーションソースのクローズに失敗しました", slog.String("error", srcErr.Error()))
		}
		if dbErr != nil {
			logger.Warn("マイグレーション接続のクローズに失敗しました", slog.String("error", dbErr.Error()))
		}
	}()

	err = m.Up()
	if err == migrate.ErrNoChange {
		logger.Info("適用すべきマイグレーションはありません")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("マイグレーションを適用しました", slog.Uint64("version", uint64(version)))
	return nil
}
