package timesheet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"timeclock/internal/auth"
	"timeclock/internal/queue"
)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	nextID     int64
	users      []User
	projects   []Project
	entries    []Entry
	photos     map[int64][]Photo
	lastFilter EntryFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{photos: map[int64][]Photo{}}
}

func (f *fakeStore) id() int64 { f.nextID++; return f.nextID }

func (f *fakeStore) CreateUser(_ context.Context, username, hash, role string) (User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return User{}, ErrUsernameTaken
		}
	}
	u := User{ID: f.id(), Username: username, PasswordHash: hash, Role: role, CreatedAt: time.Now()}
	f.users = append(f.users, u)
	return u, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*User, error) {
	for i := range f.users {
		if f.users[i].Username == username {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListUsers(_ context.Context) ([]User, error) {
	out := append([]User(nil), f.users...)
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id int64) error {
	for i, u := range f.users {
		if u.ID == id {
			f.users = append(f.users[:i], f.users[i+1:]...)
			var kept []Entry
			for _, e := range f.entries {
				if e.UserID == id {
					delete(f.photos, e.ID)
					continue
				}
				kept = append(kept, e)
			}
			f.entries = kept
			return nil
		}
	}
	return ErrUserNotFound
}

func (f *fakeStore) CreateProject(_ context.Context, name string, hidden bool) (Project, error) {
	for _, p := range f.projects {
		if p.Name == name {
			return Project{}, ErrProjectNameTaken
		}
	}
	p := Project{ID: f.id(), Name: name, IsHidden: hidden, CreatedAt: time.Now()}
	f.projects = append(f.projects, p)
	return p, nil
}

func (f *fakeStore) ListProjects(_ context.Context, includeHidden bool) ([]Project, error) {
	var out []Project
	for _, p := range f.projects {
		if !includeHidden && p.IsHidden {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) UpdateProject(_ context.Context, id int64, name string, hidden bool) error {
	for _, p := range f.projects {
		if p.ID != id && p.Name == name {
			return ErrProjectNameTaken
		}
	}
	for i := range f.projects {
		if f.projects[i].ID == id {
			f.projects[i].Name = name
			f.projects[i].IsHidden = hidden
			return nil
		}
	}
	return ErrProjectNotFound
}

func (f *fakeStore) DeleteProject(_ context.Context, id int64) error {
	for i, p := range f.projects {
		if p.ID == id {
			f.projects = append(f.projects[:i], f.projects[i+1:]...)
			for j := range f.entries {
				if f.entries[j].ProjectID != nil && *f.entries[j].ProjectID == id {
					f.entries[j].ProjectID = nil
					f.entries[j].ProjectName = nil
				}
			}
			return nil
		}
	}
	return ErrProjectNotFound
}

func (f *fakeStore) CreateEntry(_ context.Context, userID int64, workDate time.Time, start, end, desc string, projectID *int64) (int64, error) {
	if projectID != nil {
		found := false
		for _, p := range f.projects {
			if p.ID == *projectID {
				found = true
			}
		}
		if !found {
			return 0, ErrProjectNotFound
		}
	}
	var username string
	for _, u := range f.users {
		if u.ID == userID {
			username = u.Username
		}
	}
	e := Entry{
		ID: f.id(), UserID: userID, Username: username, WorkDate: workDate,
		StartTime: start, EndTime: end, Description: desc, ProjectID: projectID,
		CreatedAt: time.Now(),
	}
	f.entries = append(f.entries, e)
	return e.ID, nil
}

func (f *fakeStore) ListEntries(_ context.Context, filter EntryFilter) ([]Entry, error) {
	f.lastFilter = filter
	var out []Entry
	for _, e := range f.entries {
		if filter.UserID != nil && e.UserID != *filter.UserID {
			continue
		}
		if filter.From != nil && e.WorkDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.WorkDate.After(*filter.To) {
			continue
		}
		e.Photos = append([]Photo(nil), f.photos[e.ID]...)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkDate.After(out[j].WorkDate) })
	return out, nil
}

func (f *fakeStore) AddPhoto(_ context.Context, entryID int64, key, filename string, size int64, order int) error {
	f.photos[entryID] = append(f.photos[entryID], Photo{
		ID: f.id(), EntryID: entryID, Key: key, Filename: filename, Size: size, Order: order,
	})
	return nil
}

// fakePhotos is an in-memory photostore.Store. failOn makes Put fail for
// the given upload index (1-based count of Put calls).
type fakePhotos struct {
	puts   int
	failOn int
}

func (f *fakePhotos) Put(_ context.Context, entryID int64, filename string, data []byte) (string, error) {
	f.puts++
	if f.failOn != 0 && f.puts == f.failOn {
		return "", errors.New("storage unavailable")
	}
	return fmt.Sprintf("work-photos/%d/%d-%s", entryID, f.puts, filename), nil
}

func (f *fakePhotos) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func photoPayload(t *testing.T) string {
	t.Helper()
	return "data:image/jpeg;base64,/9j/4AAQSkZJRg=="
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), nil, nil, 0, 0)

	u, err := svc.Register(ctx, "w1", "pw", "")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if u.Role != auth.RoleWorker {
		t.Errorf("default role = %q, want worker", u.Role)
	}
	if u.PasswordHash == "pw" {
		t.Fatal("password stored in plaintext")
	}

	got, err := svc.Authenticate(ctx, "w1", "pw")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("authenticated id = %d, want %d", got.ID, u.ID)
	}

	if _, err := svc.Authenticate(ctx, "w1", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate(ctx, "ghost", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil, nil, 0, 0)

	if _, err := svc.Register(ctx, "w1", "pw", ""); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := svc.Register(ctx, "w1", "other", ""); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("err = %v, want ErrUsernameTaken", err)
	}
	if len(store.users) != 1 {
		t.Errorf("user count = %d, want 1", len(store.users))
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), nil, nil, 0, 0)

	if _, err := svc.Register(ctx, "", "pw", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("missing username err = %v", err)
	}
	if _, err := svc.Register(ctx, "w1", "", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("missing password err = %v", err)
	}
	if _, err := svc.Register(ctx, "w1", "pw", "superuser"); !errors.Is(err, ErrValidation) {
		t.Errorf("bad role err = %v", err)
	}
}

func TestCreateEntryPartialPhotoFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	photos := &fakePhotos{failOn: 2}
	svc := NewService(store, photos, nil, 0, 0)

	u, _ := svc.Register(ctx, "w1", "pw", "")
	id, err := svc.CreateEntry(ctx, u.ID, NewEntry{
		WorkDate:  "2024-01-15",
		StartTime: "08:00",
		EndTime:   "17:00",
		Photos: []PhotoUpload{
			{Name: "a.jpg", Data: photoPayload(t)},
			{Name: "b.jpg", Data: photoPayload(t)},
			{Name: "c.jpg", Data: photoPayload(t)},
		},
	})
	if err != nil {
		t.Fatalf("entry creation must survive a failed upload: %v", err)
	}
	if got := len(store.photos[id]); got != 2 {
		t.Errorf("photo rows = %d, want 2", got)
	}
	orders := []int{store.photos[id][0].Order, store.photos[id][1].Order}
	if orders[0] != 0 || orders[1] != 2 {
		t.Errorf("recorded orders = %v, want [0 2]", orders)
	}
}

func TestCreateEntryOversizedPhotoSkipped(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, &fakePhotos{}, nil, 8, 0)

	u, _ := svc.Register(ctx, "w1", "pw", "")
	id, err := svc.CreateEntry(ctx, u.ID, NewEntry{
		WorkDate:  "2024-01-15",
		StartTime: "08:00",
		EndTime:   "17:00",
		Photos:    []PhotoUpload{{Name: "big.jpg", Data: photoPayload(t)}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if got := len(store.photos[id]); got != 0 {
		t.Errorf("photo rows = %d, want 0", got)
	}
}

func TestCreateEntryValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), nil, nil, 0, 0)

	cases := []NewEntry{
		{WorkDate: "15/01/2024", StartTime: "08:00", EndTime: "17:00"},
		{WorkDate: "2024-01-15", StartTime: "8am", EndTime: "17:00"},
		{WorkDate: "2024-01-15", StartTime: "08:00", EndTime: ""},
	}
	for i, in := range cases {
		if _, err := svc.CreateEntry(ctx, 1, in); !errors.Is(err, ErrValidation) {
			t.Errorf("case %d: err = %v, want ErrValidation", i, err)
		}
	}
}

func TestCreateEntryUnknownProject(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), nil, nil, 0, 0)

	missing := int64(99)
	_, err := svc.CreateEntry(ctx, 1, NewEntry{
		WorkDate: "2024-01-15", StartTime: "08:00", EndTime: "17:00", ProjectID: &missing,
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestCreateEntryPublishesSyncMessage(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	q := queue.NewInMemory(1)
	svc := NewService(store, nil, q, 0, 0)

	u, _ := svc.Register(ctx, "w1", "pw", "")
	id, err := svc.CreateEntry(ctx, u.ID, NewEntry{
		WorkDate: "2024-01-15", StartTime: "08:00", EndTime: "17:00",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	msgs, _ := q.Consume(ctx)
	select {
	case msg := <-msgs:
		if msg.Type != queue.TypeEntryCreated {
			t.Errorf("message type = %q", msg.Type)
		}
		if msg.Body != fmt.Sprintf("%d", id) {
			t.Errorf("message body = %q, want %d", msg.Body, id)
		}
	case <-time.After(time.Second):
		t.Fatal("no sync message published")
	}
}

func TestListEntriesScopedToWorker(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil, nil, 0, 0)

	w1, _ := svc.Register(ctx, "w1", "pw", "")
	w2, _ := svc.Register(ctx, "w2", "pw", "")
	if _, err := svc.CreateEntry(ctx, w1.ID, NewEntry{WorkDate: "2024-01-15", StartTime: "08:00", EndTime: "17:00", Description: "mine"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateEntry(ctx, w2.ID, NewEntry{WorkDate: "2024-01-16", StartTime: "09:00", EndTime: "18:00", Description: "theirs"}); err != nil {
		t.Fatal(err)
	}

	own, err := svc.ListEntries(ctx, w1.ID, false, "", "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, e := range own {
		if e.UserID != w1.ID {
			t.Errorf("worker listing leaked entry of user %d", e.UserID)
		}
	}
	if len(own) != 1 {
		t.Errorf("worker sees %d entries, want 1", len(own))
	}

	all, err := svc.ListEntries(ctx, w1.ID, true, "", "")
	if err != nil {
		t.Fatalf("admin list failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("admin sees %d entries, want 2", len(all))
	}
}

func TestListEntriesDateRangeInclusive(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil, nil, 0, 0)

	u, _ := svc.Register(ctx, "w1", "pw", "")
	for _, d := range []string{"2024-01-14", "2024-01-15", "2024-01-20", "2024-01-21"} {
		if _, err := svc.CreateEntry(ctx, u.ID, NewEntry{WorkDate: d, StartTime: "08:00", EndTime: "17:00"}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.ListEntries(ctx, u.ID, false, "2024-01-15", "2024-01-20")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries in range = %d, want 2", len(got))
	}
	for _, e := range got {
		d := e.WorkDate.Format("2006-01-02")
		if d != "2024-01-15" && d != "2024-01-20" {
			t.Errorf("entry on %s outside inclusive range", d)
		}
	}

	if _, err := svc.ListEntries(ctx, u.ID, false, "garbage", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("bad from err = %v, want ErrValidation", err)
	}
}

func TestListEntriesResolvesSignedURLs(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, &fakePhotos{}, nil, 0, 0)

	u, _ := svc.Register(ctx, "w1", "pw", "")
	if _, err := svc.CreateEntry(ctx, u.ID, NewEntry{
		WorkDate: "2024-01-15", StartTime: "08:00", EndTime: "17:00",
		Photos: []PhotoUpload{{Name: "a.jpg", Data: photoPayload(t)}},
	}); err != nil {
		t.Fatal(err)
	}

	entries, err := svc.ListEntries(ctx, u.ID, false, "", "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 || len(entries[0].Photos) != 1 {
		t.Fatalf("unexpected shape: %+v", entries)
	}
	if !strings.HasPrefix(entries[0].Photos[0].URL, "https://signed.example/") {
		t.Errorf("photo URL = %q, want signed link", entries[0].Photos[0].URL)
	}
}

func TestDeleteUserCascadesEntries(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil, nil, 0, 0)

	admin, _ := svc.Register(ctx, "a1", "pw", auth.RoleAdmin)
	w, _ := svc.Register(ctx, "w1", "pw", "")
	if _, err := svc.CreateEntry(ctx, w.ID, NewEntry{WorkDate: "2024-01-15", StartTime: "08:00", EndTime: "17:00"}); err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteUser(ctx, admin.ID, w.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	remaining, _ := svc.ListEntries(ctx, admin.ID, true, "", "")
	if len(remaining) != 0 {
		t.Errorf("entries after user delete = %d, want 0", len(remaining))
	}
}

func TestDeleteUserGuards(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newFakeStore(), nil, nil, 0, 0)

	admin, _ := svc.Register(ctx, "a1", "pw", auth.RoleAdmin)
	if err := svc.DeleteUser(ctx, admin.ID, admin.ID); !errors.Is(err, ErrSelfDelete) {
		t.Errorf("self delete err = %v, want ErrSelfDelete", err)
	}
	if err := svc.DeleteUser(ctx, admin.ID, 999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user err = %v, want ErrUserNotFound", err)
	}
}

func TestProjectLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil, nil, 0, 0)

	p, err := svc.CreateProject(ctx, "roof", false)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.CreateProject(ctx, "roof", true); !errors.Is(err, ErrProjectNameTaken) {
		t.Errorf("duplicate err = %v", err)
	}
	if _, err := svc.CreateProject(ctx, "  ", false); !errors.Is(err, ErrValidation) {
		t.Errorf("blank name err = %v", err)
	}

	hidden, _ := svc.CreateProject(ctx, "internal", true)
	visible, _ := svc.ListProjects(ctx, false)
	for _, pr := range visible {
		if pr.ID == hidden.ID {
			t.Error("hidden project visible to non-admin")
		}
	}
	all, _ := svc.ListProjects(ctx, true)
	if len(all) != 2 {
		t.Errorf("admin sees %d projects, want 2", len(all))
	}

	if err := svc.UpdateProject(ctx, p.ID, "roof-2", true); err != nil {
		t.Errorf("update failed: %v", err)
	}
	if err := svc.UpdateProject(ctx, 999, "x", false); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("update missing err = %v", err)
	}
	if err := svc.UpdateProject(ctx, p.ID, "internal", false); !errors.Is(err, ErrProjectNameTaken) {
		t.Errorf("rename collision err = %v", err)
	}

	if err := svc.DeleteProject(ctx, p.ID); err != nil {
		t.Errorf("delete failed: %v", err)
	}
	if err := svc.DeleteProject(ctx, p.ID); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("double delete err = %v", err)
	}
}

func TestProjectDeleteNullsEntryReference(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewService(store, nil, nil, 0, 0)

	u, _ := svc.Register(ctx, "w1", "pw", "")
	p, _ := svc.CreateProject(ctx, "roof", false)
	if _, err := svc.CreateEntry(ctx, u.ID, NewEntry{
		WorkDate: "2024-01-15", StartTime: "08:00", EndTime: "17:00", ProjectID: &p.ID,
	}); err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	entries, _ := svc.ListEntries(ctx, u.ID, false, "", "")
	if len(entries) != 1 {
		t.Fatalf("entry should survive project deletion, got %d", len(entries))
	}
	if entries[0].ProjectID != nil {
		t.Error("entry still references the deleted project")
	}
}
