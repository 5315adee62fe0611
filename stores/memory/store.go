package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"tag-designer/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore implements TemplateStore and UserStore in process memory.
type memStore struct {
	mu sync.RWMutex
	// templates maps userID to that user's templates keyed by ID.
	templates map[string]map[string]*core.Template
	users     map[string]*core.User
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		templates: make(map[string]map[string]*core.Template),
		users:     make(map[string]*core.User),
	}
}

// List returns one page of a user's templates, oldest first. Part of the TemplateStore interface.
func (s *memStore) List(ctx context.Context, userID string, page, limit int) ([]*core.Template, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userTemplates := s.templates[userID]
	all := make([]*core.Template, 0, len(userTemplates))
	for _, t := range userTemplates {
		all = append(all, t)
	}
	sortOldestFirst(all)

	start, end := core.Page(page, limit, len(all))
	list := make([]*core.Template, 0, end-start)
	for _, t := range all[start:end] {
		// The list view never carries the canvas payload.
		list = append(list, t.Summary())
	}

	logrus.WithField("user_id", userID).Infof("Listed %d of %d templates", len(list), len(all))
	return list, len(all), nil
}

func sortOldestFirst(ts []*core.Template) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].ID < ts[j].ID
		}
		return ts[i].CreatedAt.Before(ts[j].CreatedAt)
	})
}

// Get returns a single template by its ID, ensuring it belongs to the user. Part of the TemplateStore interface.
func (s *memStore) Get(ctx context.Context, userID, id string) (*core.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "template_id": id})

	t, ok := s.templates[userID][id]
	if !ok {
		log.Warn("Template not found for user")
		return nil, core.NotFoundf("template %s", id)
	}

	log.Info("Template retrieved successfully")
	c := *t
	return &c, nil
}

// Save creates or updates a template for a user. Part of the TemplateStore interface.
func (s *memStore) Save(ctx context.Context, template *core.Template) error {
	if err := template.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userTemplates, ok := s.templates[template.UserID]
	if !ok {
		userTemplates = make(map[string]*core.Template)
		s.templates[template.UserID] = userTemplates
	}

	if template.ID == "" {
		template.ID = ulid.Make().String()
	}

	now := time.Now()
	if existing, exists := userTemplates[template.ID]; exists {
		template.CreatedAt = existing.CreatedAt
	} else {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	c := *template
	userTemplates[template.ID] = &c
	logrus.WithFields(logrus.Fields{"user_id": template.UserID, "template_id": template.ID}).Info("Template saved successfully")
	return nil
}

// Delete removes a template, ensuring it belongs to the user. Part of the TemplateStore interface.
func (s *memStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "template_id": id})

	if _, ok := s.templates[userID][id]; !ok {
		log.Warn("Template not found for deletion")
		return core.NotFoundf("template %s", id)
	}

	delete(s.templates[userID], id)
	log.Info("Template deleted successfully")
	return nil
}

// CreateUser stores a new account. Part of the UserStore interface.
func (s *memStore) CreateUser(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	for _, u := range s.users {
		if (email != "" && u.PasswordHash != "" && user.PasswordHash != "" && strings.ToLower(u.Email) == email) ||
			(user.Subject != "" && u.Subject == user.Subject) {
			return core.ErrConflict
		}
	}

	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now

	c := *user
	s.users[user.ID] = &c
	logrus.WithField("user_id", user.ID).Info("User created")
	return nil
}

// FindUserByEmail looks up a local account. Part of the UserStore interface.
func (s *memStore) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.PasswordHash != "" && strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, core.NotFoundf("user %s", email)
}

// FindUserBySubject looks up an account by its identity provider subject. Part of the UserStore interface.
func (s *memStore) FindUserBySubject(ctx context.Context, subject string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Subject == subject {
			c := *u
			return &c, nil
		}
	}
	return nil, core.NotFoundf("user with subject %s", subject)
}
