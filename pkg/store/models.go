package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type CommandModel struct {
	Name         string `gorm:"primaryKey"`
	Description  string `gorm:"not null"`
	Category     string `gorm:"not null;index"`
	ResponseKind string `gorm:"not null"`
	Active       bool   `gorm:"not null;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CommandResponseModel struct {
	ID          string `gorm:"primaryKey"`
	CommandName string `gorm:"not null;uniqueIndex:idx_command_response_version"`
	Version     int    `gorm:"not null;uniqueIndex:idx_command_response_version"`
	Content     string `gorm:"type:text;not null"`
	ContentType string `gorm:"not null;default:'text/plain'"`
	Active      bool   `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type UserModel struct {
	ID            string    `gorm:"primaryKey"`
	SessionID     string    `gorm:"uniqueIndex;not null"`
	Nickname      string    `gorm:"size:100"`
	FirstVisitAt  time.Time `gorm:"not null"`
	LastVisitAt   time.Time `gorm:"not null;index"`
	TotalCommands int64     `gorm:"not null;default:0;index"`
	Country       string
	Timezone      string
	IPAddress     string
	UserAgent     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CommandExecutionModel struct {
	ID             string    `gorm:"primaryKey"`
	UserID         *string   `gorm:"index"`
	CommandName    string    `gorm:"not null;index"`
	ExecutionTime  time.Time `gorm:"not null;index"`
	ResponseTimeMs int64     `gorm:"not null"`
	Success        bool      `gorm:"not null;index"`
	ErrorMessage   string
	IPAddress      string
	UserAgent      string
}

type FileDownloadModel struct {
	ID           string    `gorm:"primaryKey"`
	UserID       string    `gorm:"not null;index"`
	FileName     string    `gorm:"not null"`
	FileType     string    `gorm:"not null"`
	DownloadTime time.Time `gorm:"not null;index"`
	Success      bool      `gorm:"not null"`
	IPAddress    string
	UserAgent    string
}

type DailyRollupModel struct {
	Date               time.Time `gorm:"primaryKey;type:date"`
	UniqueVisitors     int64     `gorm:"not null"`
	TotalCommands      int64     `gorm:"not null"`
	TotalDownloads     int64     `gorm:"not null"`
	MostPopularCommand string
	TopCommands        datatypes.JSON `gorm:"type:jsonb"`
	UpdatedAt          time.Time
}
