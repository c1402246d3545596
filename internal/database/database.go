package database

import (
	"fmt"
	"log"

	"assessment-backend/internal/config"
	"assessment-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

// Connect opens the database selected by cfg.DBDriver.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverSQLite:
		dialector = SQLiteDialector(cfg.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	default:
		dialector = postgres.Open(cfg.PostgresDSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.DBDriver, err)
	}

	log.Printf("database: connected (%s)", cfg.DBDriver)
	return db, nil
}

// SQLiteDialector uses the pure-Go modernc driver, registered as "sqlite".
func SQLiteDialector(dsn string) gorm.Dialector {
	return sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn})
}

// Partial unique indexes gorm tags cannot express. The syntax is shared by postgres and sqlite.
var constraintIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_single_active_instance ON assessment_instances (active) WHERE active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_user_turn_order ON users (instance_id, turn_order) WHERE turn_order >= 0`,
}

func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Host{},
		&models.Assessment{},
		&models.Question{},
		&models.AssessmentInstance{},
		&models.User{},
		&models.Answer{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	for _, stmt := range constraintIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create constraint index: %w", err)
		}
	}

	log.Println("database: migrated")
	return nil
}
