package timesheet

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"timeclock/internal/auth"
	"timeclock/internal/photostore"
	"timeclock/internal/queue"
)

// Store is the persistence surface the service needs. *Repository
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash, role string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id int64) error

	CreateProject(ctx context.Context, name string, hidden bool) (Project, error)
	ListProjects(ctx context.Context, includeHidden bool) ([]Project, error)
	UpdateProject(ctx context.Context, id int64, name string, hidden bool) error
	DeleteProject(ctx context.Context, id int64) error

	CreateEntry(ctx context.Context, userID int64, workDate time.Time, startTime, endTime, description string, projectID *int64) (int64, error)
	ListEntries(ctx context.Context, f EntryFilter) ([]Entry, error)
	AddPhoto(ctx context.Context, entryID int64, key, filename string, size int64, order int) error
}

// Service coordinates accounts, projects and the work entry ledger.
type Service struct {
	store         Store
	photos        photostore.Store // nil when storage is not configured
	queue         queue.Queue      // nil when sync is disabled
	maxPhotoBytes int64
	photoURLTTL   time.Duration
}

// NewService creates a service backed by a store. photos and q may be nil;
// the corresponding side effects are then skipped.
func NewService(store Store, photos photostore.Store, q queue.Queue, maxPhotoBytes int64, photoURLTTL time.Duration) *Service {
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = 10 * 1024 * 1024
	}
	if photoURLTTL <= 0 {
		photoURLTTL = 24 * time.Hour
	}
	return &Service{
		store:         store,
		photos:        photos,
		queue:         q,
		maxPhotoBytes: maxPhotoBytes,
		photoURLTTL:   photoURLTTL,
	}
}

// -------- Accounts --------

// Register hashes the password and creates an account. An empty role
// defaults to worker.
func (s *Service) Register(ctx context.Context, username, password, role string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if role == "" {
		role = auth.RoleWorker
	}
	if !auth.ValidRole(role) {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, err
	}
	return s.store.CreateUser(ctx, username, hash, role)
}

// Authenticate checks credentials. Unknown username and wrong password
// produce the same error so callers cannot enumerate accounts.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return User{}, err
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	return *u, nil
}

// ListUsers returns all accounts ordered by username.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

// DeleteUser removes an account and, via schema cascades, its entries and
// photo rows. Admins cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, callerID, targetID int64) error {
	if callerID == targetID {
		return ErrSelfDelete
	}
	return s.store.DeleteUser(ctx, targetID)
}

// -------- Projects --------

// CreateProject adds a named project.
func (s *Service) CreateProject(ctx context.Context, name string, hidden bool) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, fmt.Errorf("%w: project name is required", ErrValidation)
	}
	return s.store.CreateProject(ctx, name, hidden)
}

// ListProjects returns projects visible to the caller. Only admins see
// hidden projects.
func (s *Service) ListProjects(ctx context.Context, admin bool) ([]Project, error) {
	return s.store.ListProjects(ctx, admin)
}

// UpdateProject renames a project and sets visibility.
func (s *Service) UpdateProject(ctx context.Context, id int64, name string, hidden bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: project name is required", ErrValidation)
	}
	return s.store.UpdateProject(ctx, id, name, hidden)
}

// DeleteProject removes a project; referencing entries are kept with a
// null project id.
func (s *Service) DeleteProject(ctx context.Context, id int64) error {
	return s.store.DeleteProject(ctx, id)
}

// -------- Work entries --------

// PhotoUpload is one base64-encoded image submitted with an entry.
type PhotoUpload struct {
	Name string
	Data string
}

// NewEntry is the validated input for entry creation. The owning user is
// never part of it; entries are always attributed to the caller.
type NewEntry struct {
	WorkDate    string
	StartTime   string
	EndTime     string
	Description string
	ProjectID   *int64
	Photos      []PhotoUpload
}

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// CreateEntry persists an entry for userID, stores its photos and queues
// the spreadsheet sync. Individual photo failures are logged and skipped;
// the entry itself always survives them.
func (s *Service) CreateEntry(ctx context.Context, userID int64, in NewEntry) (int64, error) {
	workDate, err := time.Parse(dateLayout, in.WorkDate)
	if err != nil {
		return 0, fmt.Errorf("%w: work_date must be YYYY-MM-DD", ErrValidation)
	}
	if _, err := time.Parse(clockLayout, in.StartTime); err != nil {
		return 0, fmt.Errorf("%w: start_time must be HH:MM", ErrValidation)
	}
	if _, err := time.Parse(clockLayout, in.EndTime); err != nil {
		return 0, fmt.Errorf("%w: end_time must be HH:MM", ErrValidation)
	}

	id, err := s.store.CreateEntry(ctx, userID, workDate, in.StartTime, in.EndTime, in.Description, in.ProjectID)
	if err != nil {
		if err == ErrProjectNotFound {
			return 0, fmt.Errorf("%w: project does not exist", ErrValidation)
		}
		return 0, err
	}
	entriesCreated.Inc()

	for i, p := range in.Photos {
		if err := s.storePhoto(ctx, id, i, p); err != nil {
			photoUploadFailures.Inc()
			log.Printf("entry %d: photo %d skipped: %v", id, i+1, err)
		}
	}

	if s.queue != nil {
		msg := queue.Message{Type: queue.TypeEntryCreated, Body: strconv.FormatInt(id, 10)}
		if err := s.queue.Publish(ctx, msg); err != nil {
			log.Printf("entry %d: queue publish failed: %v", id, err)
		}
	}
	return id, nil
}

func (s *Service) storePhoto(ctx context.Context, entryID int64, order int, p PhotoUpload) error {
	if s.photos == nil {
		return fmt.Errorf("photo storage not configured")
	}
	data, err := photostore.DecodeDataURL(p.Data)
	if err != nil {
		return err
	}
	if int64(len(data)) > s.maxPhotoBytes {
		return fmt.Errorf("photo exceeds %d bytes", s.maxPhotoBytes)
	}
	name := p.Name
	if name == "" {
		name = fmt.Sprintf("photo-%d.jpg", order+1)
	}
	key, err := s.photos.Put(ctx, entryID, name, data)
	if err != nil {
		return err
	}
	return s.store.AddPhoto(ctx, entryID, key, name, int64(len(data)), order)
}

// ListEntries returns entries scoped to the caller: admins see everyone's,
// workers only their own. from and to, when set, bound work_date
// inclusively. Photo keys are resolved to signed URLs.
func (s *Service) ListEntries(ctx context.Context, callerID int64, admin bool, from, to string) ([]Entry, error) {
	var f EntryFilter
	if !admin {
		f.UserID = &callerID
	}
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return nil, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrValidation)
		}
		f.From = &t
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return nil, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrValidation)
		}
		f.To = &t
	}

	entries, err := s.store.ListEntries(ctx, f)
	if err != nil {
		return nil, err
	}

	if s.photos != nil {
		for i := range entries {
			for j := range entries[i].Photos {
				url, err := s.photos.SignedURL(ctx, entries[i].Photos[j].Key, s.photoURLTTL)
				if err != nil {
					log.Printf("entry %d: sign photo %s failed: %v", entries[i].ID, entries[i].Photos[j].Key, err)
					continue
				}
				entries[i].Photos[j].URL = url
			}
		}
	}
	return entries, nil
}
