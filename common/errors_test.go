package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	uniqueErr := sqlite3.Error{
		Code:         sqlite3.ErrConstraint,
		ExtendedCode: sqlite3.ErrConstraintUnique,
	}
	assert.True(t, IsUniqueViolation(uniqueErr))
	assert.True(t, IsUniqueViolation(fmt.Errorf("create failed: %w", uniqueErr)))

	otherConstraint := sqlite3.Error{
		Code:         sqlite3.ErrConstraint,
		ExtendedCode: sqlite3.ErrConstraintNotNull,
	}
	assert.False(t, IsUniqueViolation(otherConstraint))
	assert.False(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: fake")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestIsUniqueViolation_DriverError(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	type row struct {
		ID   uint   `gorm:"primary_key"`
		Name string `gorm:"unique;not null"`
	}
	db.AutoMigrate(&row{})

	assert.NoError(t, db.Create(&row{Name: "taken"}).Error)

	dupErr := db.Create(&row{Name: "taken"}).Error
	assert.Error(t, dupErr)
	assert.True(t, IsUniqueViolation(dupErr))

	nullErr := db.Exec("INSERT INTO rows (name) VALUES (NULL)").Error
	assert.Error(t, nullErr)
	assert.False(t, IsUniqueViolation(nullErr))
}
