package settings

import (
	"path/filepath"
	"testing"

	"anonfiles/share-api/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&model.Settings{}))

	return NewStore(conn)
}

func TestGetCreatesDefaults(t *testing.T) {
	s := newStore(t)

	row, err := s.Get()
	require.NoError(t, err)
	assert.EqualValues(t, 100, row.MaxFileSizeMB)
	assert.Equal(t, 10, row.MaxFilesPerUpload)
	assert.False(t, row.ForeverStorageEnabled)

	again, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, row.ID, again.ID)
}

func TestUpdate(t *testing.T) {
	s := newStore(t)

	err := s.Update(&model.Settings{
		MaxFileSizeMB:         250,
		MaxFilesPerUpload:     5,
		ForeverStorageEnabled: true,
	})
	require.NoError(t, err)

	row, err := s.Get()
	require.NoError(t, err)
	assert.EqualValues(t, 250, row.MaxFileSizeMB)
	assert.Equal(t, 5, row.MaxFilesPerUpload)
	assert.True(t, row.ForeverStorageEnabled)
}
