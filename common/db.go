package common

import (
	"log"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func ConnectDb() *gorm.DB {
	dbFile := os.Getenv("sqlite_db")
	if dbFile == "" {
		log.Println("sqlite_db not set")
		return nil
	}

	db, err := gorm.Open(sqlite.Open(dbFile), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Println("Error opening sqlite db: " + err.Error())
		return nil
	}
	log.Println("opened sqlite db at:", dbFile)
	return db
}

// ConnectStatsDb opens the separate view-stats database. Stats are
// optional; a missing stats_db just disables the dashboard feed.
func ConnectStatsDb() *gorm.DB {
	statsDbFile := os.Getenv("stats_db")
	if statsDbFile == "" {
		log.Println("stats_db not set - view stats will be disabled")
		return nil
	}

	db, err := gorm.Open(sqlite.Open(statsDbFile), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Println("Error opening stats sqlite db: " + err.Error())
		return nil
	}

	log.Println("opened stats sqlite db at:", statsDbFile)
	return db
}
