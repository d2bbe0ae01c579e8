package model

// Settings is the single global settings row edited from the admin panel
type Settings struct {
	ID uint `gorm:"primaryKey" json:"-"`

	// Max size of a single uploaded file in megabytes. 0 falls back to
	// the configured upload.max_size
	MaxFileSizeMB int64 `json:"maxFileSizeMb"`

	MaxFilesPerUpload int `json:"maxFilesPerUpload"`

	// When disabled, "forever" expiration requests are downgraded to
	// one month at consolidation time
	ForeverStorageEnabled bool `json:"foreverStorageEnabled"`
}
