package timesheet

import "time"

// User is a registered account. The password hash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Project is an admin-managed label work entries may reference.
type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsHidden  bool      `json:"is_hidden"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is one worker-submitted record of a time span and description.
// Username and ProjectName are populated from joins when listing.
type Entry struct {
	ID          int64
	UserID      int64
	Username    string
	WorkDate    time.Time
	StartTime   string
	EndTime     string
	Description string
	ProjectID   *int64
	ProjectName *string
	CreatedAt   time.Time
	Photos      []Photo
}

// Photo is a pointer to one stored attachment of an entry.
// URL is resolved to a presigned link at read time and never persisted.
type Photo struct {
	ID       int64
	EntryID  int64
	Key      string
	Filename string
	Size     int64
	Order    int
	URL      string
}

// EntryFilter narrows a listing. A nil field means no constraint.
// From and To bound work_date inclusively.
type EntryFilter struct {
	UserID *int64
	From   *time.Time
	To     *time.Time
}
