package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"tag-designer/core"

	"github.com/klauspost/compress/zstd"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Template files are zstd-compressed JSON, one file per template under
// <base>/templates/<userID>/. Users live in <base>/users/<userID>.json.
const templateExt = ".json.zst"

type fsStore struct {
	basePath string

	// mu guards read-modify-write cycles; the directory is owned by this process.
	mu sync.RWMutex
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) (*fsStore, error) {
	for _, dir := range []string{basePath, filepath.Join(basePath, "templates"), filepath.Join(basePath, "users")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	return &fsStore{basePath: basePath}, nil
}

func compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Close()

	return encoder.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	return decoder.DecodeAll(data, nil)
}

// within joins elem onto root and rejects anything that escapes it.
func within(root string, elem ...string) (string, error) {
	for _, e := range elem {
		if e == "" || e == "." || e == ".." || filepath.Base(e) != e {
			return "", core.Validationf("invalid path element %q", e)
		}
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(filepath.Join(append([]string{root}, elem...)...))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", core.Validationf("invalid path: access denied")
	}
	return absPath, nil
}

func (s *fsStore) userTemplatePath(userID string) (string, error) {
	return within(filepath.Join(s.basePath, "templates"), userID)
}

func (s *fsStore) templatePath(userID, id string) (string, error) {
	dir, err := s.userTemplatePath(userID)
	if err != nil {
		return "", err
	}
	return within(dir, id+templateExt)
}

func readTemplate(path string) (*core.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", filepath.Base(path), err)
	}
	var t core.Template
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", filepath.Base(path), err)
	}
	return &t, nil
}

// TemplateStore implementation
func (s *fsStore) List(ctx context.Context, userID string, page, limit int) ([]*core.Template, int, error) {
	userPath, err := s.userTemplatePath(userID)
	if err != nil {
		return nil, 0, err
	}
	log := logrus.WithField("user_id", userID).WithField("path", userPath)

	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := os.ReadDir(userPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("User directory does not exist, returning empty list.")
			return []*core.Template{}, 0, nil
		}
		log.WithError(err).Error("Failed to read user directory")
		return nil, 0, err
	}

	all := make([]*core.Template, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), templateExt) {
			continue
		}
		t, err := readTemplate(filepath.Join(userPath, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read template file %s, skipping", file.Name())
			continue
		}
		// For list view, we don't need the canvas payload.
		all = append(all, t.Summary())
	}
	sortOldestFirst(all)

	start, end := core.Page(page, limit, len(all))
	log.Infof("Listed %d of %d templates", end-start, len(all))
	return all[start:end], len(all), nil
}

func (s *fsStore) Get(ctx context.Context, userID, id string) (*core.Template, error) {
	filePath, err := s.templatePath(userID, id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "template_id": id, "path": filePath})

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := readTemplate(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Template file not found")
			return nil, core.NotFoundf("template %s", id)
		}
		log.WithError(err).Error("Failed to read template file")
		return nil, err
	}

	log.Info("Template retrieved successfully")
	return t, nil
}

func (s *fsStore) Save(ctx context.Context, template *core.Template) error {
	if err := template.Validate(); err != nil {
		return err
	}
	if template.ID == "" {
		template.ID = ulid.Make().String()
	}
	userPath, err := s.userTemplatePath(template.UserID)
	if err != nil {
		return err
	}
	filePath, err := s.templatePath(template.UserID, template.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": template.UserID, "template_id": template.ID, "path": filePath})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(userPath, 0755); err != nil {
		log.WithError(err).Error("Failed to create user directory")
		return err
	}

	now := time.Now()
	createdAt := now
	existing, err := readTemplate(filePath)
	switch {
	case err == nil:
		createdAt = existing.CreatedAt
	case !os.IsNotExist(err):
		log.WithError(err).Warn("Existing template unreadable, overwriting")
	}

	record := *template
	record.CreatedAt, record.UpdatedAt = createdAt, now
	data, err := json.Marshal(&record)
	if err != nil {
		log.WithError(err).Error("Failed to marshal template for saving")
		return err
	}
	packed, err := compress(data)
	if err != nil {
		return err
	}

	// Write then rename so a crash never leaves a truncated file behind.
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, packed, 0644); err != nil {
		log.WithError(err).Error("Failed to write template file")
		return err
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		log.WithError(err).Error("Failed to move template file into place")
		return err
	}

	template.CreatedAt, template.UpdatedAt = createdAt, now
	log.WithField("bytes", len(packed)).Info("Template saved successfully")
	return nil
}

func (s *fsStore) Delete(ctx context.Context, userID, id string) error {
	filePath, err := s.templatePath(userID, id)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "template_id": id, "path": filePath})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Template file not found for deletion")
			return core.NotFoundf("template %s", id)
		}
		log.WithError(err).Error("Failed to delete template file")
		return err
	}

	log.Info("Template deleted successfully")
	return nil
}

func sortOldestFirst(ts []*core.Template) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].ID < ts[j].ID
		}
		return ts[i].CreatedAt.Before(ts[j].CreatedAt)
	})
}

// UserStore implementation
func (s *fsStore) users() ([]*core.User, error) {
	dir := filepath.Join(s.basePath, "users")
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	users := make([]*core.User, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, err
		}
		var record userRecord
		if err := json.Unmarshal(data, &record); err != nil {
			logrus.WithError(err).Warnf("Failed to unmarshal user file %s, skipping", file.Name())
			continue
		}
		users = append(users, record.user())
	}
	return users, nil
}

// userRecord persists the password hash that core.User keeps out of JSON.
type userRecord struct {
	core.User
	PasswordHash string `json:"passwordHash,omitempty"`
}

func (r userRecord) user() *core.User {
	u := r.User
	u.PasswordHash = r.PasswordHash
	return &u
}

func (s *fsStore) CreateUser(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.users()
	if err != nil {
		return err
	}
	for _, u := range existing {
		if (user.PasswordHash != "" && u.PasswordHash != "" && strings.EqualFold(u.Email, user.Email)) ||
			(user.Subject != "" && u.Subject == user.Subject) {
			return fmt.Errorf("user %s: %w", user.Email, core.ErrConflict)
		}
	}

	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	path, err := within(filepath.Join(s.basePath, "users"), user.ID+".json")
	if err != nil {
		return err
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now

	data, err := json.Marshal(userRecord{User: *user, PasswordHash: user.PasswordHash})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		logrus.WithError(err).Error("Failed to write user file")
		return err
	}
	logrus.WithField("user_id", user.ID).Info("User created")
	return nil
}

func (s *fsStore) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return s.findUser(func(u *core.User) bool {
		return u.PasswordHash != "" && strings.EqualFold(u.Email, email)
	}, "user "+email)
}

func (s *fsStore) FindUserBySubject(ctx context.Context, subject string) (*core.User, error) {
	return s.findUser(func(u *core.User) bool { return u.Subject == subject }, "user with subject "+subject)
}

func (s *fsStore) findUser(match func(*core.User) bool, what string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, err := s.users()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.NotFoundf("%s", what)
		}
		return nil, err
	}
	for _, u := range users {
		if match(u) {
			return u, nil
		}
	}
	return nil, core.NotFoundf("%s", what)
}
