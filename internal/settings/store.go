// Package settings persists the single global settings row
package settings

import (
	"errors"
	"fmt"

	"anonfiles/share-api/model"

	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// Get loads the settings row, creating it with defaults on first use
func (s *Store) Get() (*model.Settings, error) {
	var row model.Settings

	err := s.DB.First(&row).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to read settings, %w", err)
		}

		row = model.Settings{
			MaxFileSizeMB:         100,
			MaxFilesPerUpload:     10,
			ForeverStorageEnabled: false,
		}
		if err := s.DB.Create(&row).Error; err != nil {
			return nil, fmt.Errorf("failed to create settings, %w", err)
		}
	}

	return &row, nil
}

// Update overwrites the settings row
func (s *Store) Update(row *model.Settings) error {
	current, err := s.Get()
	if err != nil {
		return err
	}

	row.ID = current.ID
	if err := s.DB.Save(row).Error; err != nil {
		return fmt.Errorf("failed to update settings, %w", err)
	}

	return nil
}
