package db

import (
	"revintel/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Deal{},
		&models.StageTransition{},
		&models.ProbabilitySnapshot{},
		&models.Forecast{},
		&models.RevenueGoal{},
	)
}
