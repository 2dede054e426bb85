package timesheet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes worth translating for callers.
const (
	pgUniqueViolation = "23505"
	pgFKViolation     = "23503"
)

// Repository persists timeclock data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func isPgErr(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// -------- Users --------

// CreateUser inserts a new account with an already-hashed password.
func (r *Repository) CreateUser(ctx context.Context, username, passwordHash, role string) (User, error) {
	u := User{Username: username, PasswordHash: passwordHash, Role: role}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, username, passwordHash, role)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		if isPgErr(err, pgUniqueViolation) {
			return User{}, ErrUsernameTaken
		}
		return User{}, err
	}
	return u, nil
}

// GetUserByUsername returns the account for username, or nil when absent.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM users WHERE username = $1
	`, username)
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// ListUsers returns all accounts ordered by username, hashes included
// (the service strips them before they reach a response).
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, role, created_at
		FROM users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes an account. Work entries and their photo rows go with
// it via ON DELETE CASCADE.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// -------- Projects --------

// CreateProject inserts a named project.
func (r *Repository) CreateProject(ctx context.Context, name string, hidden bool) (Project, error) {
	p := Project{Name: name, IsHidden: hidden}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO projects (name, is_hidden)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, name, hidden)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		if isPgErr(err, pgUniqueViolation) {
			return Project{}, ErrProjectNameTaken
		}
		return Project{}, err
	}
	return p, nil
}

// ListProjects returns projects ordered by name. When includeHidden is
// false, hidden projects are filtered out.
func (r *Repository) ListProjects(ctx context.Context, includeHidden bool) ([]Project, error) {
	query := `SELECT id, name, is_hidden, created_at FROM projects`
	if !includeHidden {
		query += ` WHERE is_hidden = FALSE`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.IsHidden, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject renames a project and sets its visibility flag.
func (r *Repository) UpdateProject(ctx context.Context, id int64, name string, hidden bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects SET name = $2, is_hidden = $3 WHERE id = $1
	`, id, name, hidden)
	if err != nil {
		if isPgErr(err, pgUniqueViolation) {
			return ErrProjectNameTaken
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// DeleteProject removes a project. Entries referencing it keep existing
// with a null project id (ON DELETE SET NULL).
func (r *Repository) DeleteProject(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// -------- Work entries --------

// CreateEntry writes a new work entry owned by userID.
func (r *Repository) CreateEntry(ctx context.Context, userID int64, workDate time.Time, startTime, endTime, description string, projectID *int64) (int64, error) {
	var id int64
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO work_entries (user_id, work_date, start_time, end_time, description, project_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, userID, workDate, startTime, endTime, description, projectID)
	if err := row.Scan(&id); err != nil {
		if isPgErr(err, pgFKViolation) {
			return 0, ErrProjectNotFound
		}
		return 0, err
	}
	return id, nil
}

const entrySelect = `
	SELECT we.id, we.user_id, u.username, we.work_date, we.start_time, we.end_time,
	       we.description, we.project_id, p.name, we.created_at
	FROM work_entries we
	JOIN users u ON we.user_id = u.id
	LEFT JOIN projects p ON we.project_id = p.id`

// buildEntryFilter turns a filter into a WHERE clause and its args.
func buildEntryFilter(f EntryFilter) (string, []any) {
	args := []any{}
	clauses := []string{}
	if f.UserID != nil {
		clauses = append(clauses, "we.user_id = $"+itoa(len(args)+1))
		args = append(args, *f.UserID)
	}
	if f.From != nil {
		clauses = append(clauses, "we.work_date >= $"+itoa(len(args)+1))
		args = append(args, *f.From)
	}
	if f.To != nil {
		clauses = append(clauses, "we.work_date <= $"+itoa(len(args)+1))
		args = append(args, *f.To)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + joinClauses(clauses, " AND "), args
}

func scanEntry(row interface{ Scan(...any) error }) (Entry, error) {
	var e Entry
	var projectName sql.NullString
	err := row.Scan(&e.ID, &e.UserID, &e.Username, &e.WorkDate, &e.StartTime, &e.EndTime,
		&e.Description, &e.ProjectID, &projectName, &e.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	if projectName.Valid {
		e.ProjectName = &projectName.String
	}
	return e, nil
}

// ListEntries returns entries matching the filter, newest work date first,
// each with its ordered photo rows attached.
func (r *Repository) ListEntries(ctx context.Context, f EntryFilter) ([]Entry, error) {
	where, args := buildEntryFilter(f)
	query := entrySelect + where + ` ORDER BY we.work_date DESC, we.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		photos, err := r.PhotosForEntry(ctx, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].Photos = photos
	}
	return entries, nil
}

// GetEntry returns a single entry by id, joined with username and project name.
func (r *Repository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	row := r.db.QueryRowContext(ctx, entrySelect+` WHERE we.id = $1`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

// -------- Photos --------

// AddPhoto records a stored attachment pointer for an entry.
func (r *Repository) AddPhoto(ctx context.Context, entryID int64, key, filename string, size int64, order int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO work_entry_photos (work_entry_id, storage_key, original_filename, file_size, upload_order)
		VALUES ($1, $2, $3, $4, $5)
	`, entryID, key, filename, size, order)
	return err
}

// PhotosForEntry returns an entry's photo rows in display order.
func (r *Repository) PhotosForEntry(ctx context.Context, entryID int64) ([]Photo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, work_entry_id, storage_key, original_filename, file_size, upload_order
		FROM work_entry_photos
		WHERE work_entry_id = $1
		ORDER BY upload_order ASC
	`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []Photo
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.EntryID, &p.Key, &p.Filename, &p.Size, &p.Order); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
