package database

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"library_backend/internals/configs"
	model "library_backend/internals/features/library/model"
)

// ConnectDB opens the pool described by cfg and checks it with a ping.
func ConnectDB(cfg configs.Config) (*gorm.DB, error) {
	return Open(cfg.DatabaseURL, cfg)
}

// Open is ConnectDB against an explicit DSN, used for the test database.
func Open(dsn string, cfg configs.Config) (*gorm.DB, error) {
	log.Info("connecting to PostgreSQL...")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: dsn,
	}), &gorm.Config{
		Logger:                 configs.NewGormLogger(cfg.DBLogLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	TunePool(db, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Ping(ctx, db); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info("database connected")
	return db, nil
}

// TunePool applies the connection pool limits. Every unit of work holds one
// connection for its whole lifetime, so DBMaxOpenConns also caps concurrent
// transitions.
func TunePool(db *gorm.DB, cfg configs.Config) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warnw("pool tune", "error", err)
		return
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
}

func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates or updates the holders and books tables, including the
// unique holder name and the cascading foreign key.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.HolderModel{}, &model.BookModel{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrations applied")
	return nil
}

// Reset kicks every other session off the current database and drops all
// tables in the public schema. It runs on one pinned connection so that the
// terminate step cannot kill the connection used for the drops.
func Reset(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := conn.Exec(`
			SELECT pg_terminate_backend(pid)
			FROM pg_stat_activity
			WHERE datname = current_database() AND pid <> pg_backend_pid()
		`).Error; err != nil {
			return fmt.Errorf("terminate connections: %w", err)
		}

		var tables []string
		if err := conn.Raw(`SELECT tablename FROM pg_tables WHERE schemaname = 'public'`).
			Scan(&tables).Error; err != nil {
			return fmt.Errorf("list tables: %w", err)
		}
		for _, t := range tables {
			if err := conn.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %q CASCADE`, t)).Error; err != nil {
				return fmt.Errorf("drop table %s: %w", t, err)
			}
			log.Infow("table dropped", "table", t)
		}
		return nil
	})
}
