package mock

import (
	"context"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"procrecipe/internal/catalog"
	"procrecipe/internal/db"
	applog "procrecipe/internal/log"
	"procrecipe/internal/recipes"
)

// SeedAuthor is recorded as the creator of seeded recipes.
const SeedAuthor = "mock-seed"

// New returns an in-memory sqlite database seeded with the standard recipe library and
// routing templates.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	database, err := gorm.Open(sqlite.Open("file:procrecipe-mock?mode=memory&cache=shared"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		PrepareStmt:                              true,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	// A shared-cache memory database locks per table; one connection keeps writers in line.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(database); err != nil {
		return nil, err
	}

	if err := seed(ctx, database); err != nil {
		return nil, err
	}

	applog.Debug(ctx, "mock database ready")
	return database, nil
}

func seed(ctx context.Context, database *gorm.DB) error {
	repo := recipes.NewGormRepository(database)

	existing, err := repo.List(ctx, recipes.Filter{})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		applog.Debug(ctx, "mock database already seeded", "recipes", len(existing))
		return nil
	}

	applog.Debug(ctx, "seeding mock database")
	if err := catalog.Seed(ctx, repo, SeedAuthor); err != nil {
		return err
	}

	applog.Debug(ctx, "mock database seeded")
	return nil
}
