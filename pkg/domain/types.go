package domain

import "time"

type Category string

const (
	CategoryPersonal     Category = "personal"
	CategoryProfessional Category = "professional"
	CategoryDownload     Category = "download"
	CategoryContact      Category = "contact"
	CategorySystem       Category = "system"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryPersonal, CategoryProfessional, CategoryDownload, CategoryContact, CategorySystem:
		return true
	default:
		return false
	}
}

type ResponseKind string

const (
	KindStatic       ResponseKind = "STATIC"
	KindDynamic      ResponseKind = "DYNAMIC"
	KindFileDownload ResponseKind = "FILE_DOWNLOAD"
)

// Valid reports whether k is one of the known response kinds.
func (k ResponseKind) Valid() bool {
	switch k {
	case KindStatic, KindDynamic, KindFileDownload:
		return true
	default:
		return false
	}
}

type Command struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Category     Category     `json:"category"`
	ResponseKind ResponseKind `json:"responseType"`
	Active       bool         `json:"isActive"`
	CreatedAt    time.Time    `json:"createdAt,omitempty"`
	UpdatedAt    time.Time    `json:"updatedAt,omitempty"`
}

type CommandResponse struct {
	ID          string    `json:"id"`
	CommandName string    `json:"commandName"`
	Version     int       `json:"version"`
	Content     string    `json:"content"`
	ContentType string    `json:"contentType"`
	Active      bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// User is a session-scoped visitor. It is never authenticated.
type User struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	Nickname      string    `json:"nickname,omitempty"`
	FirstVisitAt  time.Time `json:"firstVisit"`
	LastVisitAt   time.Time `json:"lastVisit"`
	TotalCommands int64     `json:"totalCommands"`
	Country       string    `json:"country,omitempty"`
	Timezone      string    `json:"timezone,omitempty"`
	IPAddress     string    `json:"-"`
	UserAgent     string    `json:"-"`
}

// Visit carries the identity attributes presented with a request.
type Visit struct {
	SessionID string
	Nickname  string
	Timezone  string
	Country   string
	IPAddress string
	UserAgent string
	At        time.Time
}

type CommandExecution struct {
	ID             string    `json:"id"`
	UserID         *string   `json:"userId"`
	CommandName    string    `json:"commandName"`
	ExecutionTime  time.Time `json:"executionTime"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	Success        bool      `json:"success"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	IPAddress      string    `json:"-"`
	UserAgent      string    `json:"-"`
}

type FileDownload struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	FileName     string    `json:"fileName"`
	FileType     string    `json:"fileType"`
	DownloadTime time.Time `json:"downloadTime"`
	Success      bool      `json:"success"`
	IPAddress    string    `json:"-"`
	UserAgent    string    `json:"-"`
}

// DailyRollup is the precomputed aggregate for one UTC day.
type DailyRollup struct {
	Date               time.Time      `json:"date"`
	UniqueVisitors     int64          `json:"uniqueVisitors"`
	TotalCommands      int64          `json:"totalCommands"`
	TotalDownloads     int64          `json:"totalDownloads"`
	MostPopularCommand string         `json:"mostPopularCommand,omitempty"`
	TopCommands        []CommandCount `json:"topCommands"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

type CommandCount struct {
	Command string `json:"command"`
	Count   int64  `json:"count"`
}

// CommandStat aggregates executions of one command.
type CommandStat struct {
	Command             string
	Executions          int64
	Successful          int64
	TotalResponseTimeMs int64
}

// ActivityEntry is an execution joined with its visitor, if any.
type ActivityEntry struct {
	CommandExecution
	Nickname string
	Country  string
}

// Bucket is one row of a group-by count.
type Bucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// UserActivity is a visitor with its usage counts inside a window.
type UserActivity struct {
	User
	PeriodCommands  int64
	PeriodDownloads int64
}
