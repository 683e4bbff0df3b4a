// Package database opens the Postgres connection backing meeting/attendee
// metadata and archived transcripts.
package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"lingobridge/internal/model"
)

// Connect opens a GORM connection to the given DSN. An empty dsn is a
// configuration error here, unlike Redis/LiveKit/S3 — meeting metadata has
// no in-process fallback.
func Connect(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database: DATABASE_URL is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates the tables backing every model this
// service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Meeting{}, &model.Attendee{}, &model.VoiceRecord{})
}
