package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tag-designer/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS templates (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		width REAL NOT NULL,
		height REAL NOT NULL,
		canvas BLOB,
		thumbnail TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		PRIMARY KEY (user_id, id)
	);`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		subject TEXT,
		login TEXT,
		email TEXT,
		avatar_url TEXT,
		name TEXT,
		password_hash TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	// Subjects are unique across all accounts, emails only among local ones.
	`CREATE UNIQUE INDEX IF NOT EXISTS users_subject ON users(subject) WHERE subject != '';`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_local_email ON users(lower(email)) WHERE password_hash != '';`,
}

// NewStore opens (or creates) the SQLite database and makes sure its tables exist.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err = db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return &sqliteStore{db}, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// TemplateStore implementation
func (s *sqliteStore) List(ctx context.Context, userID string, page, limit int) ([]*core.Template, int, error) {
	log := logrus.WithField("user_id", userID)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM templates WHERE user_id = ?", userID).Scan(&total); err != nil {
		log.WithError(err).Error("Failed to count templates")
		return nil, 0, err
	}

	start, end := core.Page(page, limit, total)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, description, width, height, thumbnail, created_at, updated_at FROM templates WHERE user_id = ? ORDER BY created_at, id LIMIT ? OFFSET ?",
		userID, end-start, start)
	if err != nil {
		log.WithError(err).Error("Failed to list templates")
		return nil, 0, err
	}
	defer rows.Close()

	templates := make([]*core.Template, 0, end-start)
	for rows.Next() {
		t := core.Template{UserID: userID}
		var description, thumbnail sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &description, &t.Width, &t.Height, &thumbnail, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		t.Description, t.Thumbnail = description.String, thumbnail.String
		templates = append(templates, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	log.Infof("Listed %d of %d templates", len(templates), total)
	return templates, total, nil
}

func (s *sqliteStore) Get(ctx context.Context, userID, id string) (*core.Template, error) {
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "template_id": id})
	log.Debug("Retrieving template by ID")

	t := core.Template{ID: id, UserID: userID}
	var description, thumbnail sql.NullString
	var canvas []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT name, description, width, height, canvas, thumbnail, created_at, updated_at FROM templates WHERE user_id = ? AND id = ?",
		userID, id).Scan(&t.Name, &description, &t.Width, &t.Height, &canvas, &thumbnail, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Template with specified ID not found")
			return nil, core.NotFoundf("template %s", id)
		}
		log.WithError(err).Error("Failed to retrieve template")
		return nil, err
	}
	t.Description, t.Thumbnail, t.Canvas = description.String, thumbnail.String, string(canvas)

	log.Info("Template retrieved successfully")
	return &t, nil
}

func (s *sqliteStore) Save(ctx context.Context, template *core.Template) error {
	if err := template.Validate(); err != nil {
		return err
	}
	if template.ID == "" {
		template.ID = ulid.Make().String()
	}
	log := logrus.WithFields(logrus.Fields{"user_id": template.UserID, "template_id": template.ID})

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Rollback on any error

	var createdAt time.Time
	err = tx.QueryRowContext(ctx, "SELECT created_at FROM templates WHERE user_id = ? AND id = ?", template.UserID, template.ID).Scan(&createdAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	exists := err == nil

	now := time.Now().UTC()
	if exists {
		_, err = tx.ExecContext(ctx,
			"UPDATE templates SET name = ?, description = ?, width = ?, height = ?, canvas = ?, thumbnail = ?, updated_at = ? WHERE user_id = ? AND id = ?",
			template.Name, template.Description, template.Width, template.Height, []byte(template.Canvas), template.Thumbnail, now, template.UserID, template.ID)
	} else {
		createdAt = now
		_, err = tx.ExecContext(ctx,
			"INSERT INTO templates (id, user_id, name, description, width, height, canvas, thumbnail, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			template.ID, template.UserID, template.Name, template.Description, template.Width, template.Height, []byte(template.Canvas), template.Thumbnail, now, now)
	}
	if err != nil {
		log.WithError(err).Error("Failed to save template")
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	template.CreatedAt, template.UpdatedAt = createdAt, now
	log.WithField("created", !exists).Info("Template saved successfully")
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, userID, id string) error {
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "template_id": id})

	res, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		log.WithError(err).Error("Failed to delete template")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		log.Warn("Template not found for deletion")
		return core.NotFoundf("template %s", id)
	}

	log.Info("Template deleted successfully")
	return nil
}

// UserStore implementation
func (s *sqliteStore) CreateUser(ctx context.Context, user *core.User) error {
	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, subject, login, email, avatar_url, name, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		user.ID, user.Subject, user.Login, user.Email, user.AvatarURL, user.Name, user.PasswordHash, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("user %s: %w", user.Email, core.ErrConflict)
		}
		logrus.WithError(err).Error("Failed to create user")
		return err
	}

	user.CreatedAt, user.UpdatedAt = now, now
	logrus.WithField("user_id", user.ID).Info("User created")
	return nil
}

const userColumns = "id, subject, login, email, avatar_url, name, password_hash, created_at, updated_at"

func (s *sqliteStore) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE lower(email) = lower(?) AND password_hash != ''", email)
	return scanUser(row, "user "+email)
}

func (s *sqliteStore) FindUserBySubject(ctx context.Context, subject string) (*core.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE subject = ?", subject)
	return scanUser(row, "user with subject "+subject)
}

func scanUser(row *sql.Row, what string) (*core.User, error) {
	var u core.User
	var subject, login, email, avatar, name, hash sql.NullString
	err := row.Scan(&u.ID, &subject, &login, &email, &avatar, &name, &hash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.NotFoundf("%s", what)
		}
		return nil, err
	}
	u.Subject, u.Login, u.Email = subject.String, login.String, email.String
	u.AvatarURL, u.Name, u.PasswordHash = avatar.String, name.String, hash.String
	return &u, nil
}
