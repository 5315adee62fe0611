package stores

import (
	"context"
	"fmt"

	"tag-designer/config"
	"tag-designer/core"
	"tag-designer/stores/aws"
	"tag-designer/stores/filesystem"
	"tag-designer/stores/memory"
	"tag-designer/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// Store is a union interface that includes all store types.
type Store interface {
	core.TemplateStore
	core.UserStore
}

// GetStore builds the backend selected by cfg.Type.
func GetStore(ctx context.Context, cfg config.Storage) (Store, error) {
	var (
		store Store
		err   error
	)

	storageField := logrus.Fields{
		"storageType": cfg.Type,
	}

	switch cfg.Type {
	case "filesystem":
		storageField["basePath"] = cfg.LocalPath
		store, err = filesystem.NewStore(cfg.LocalPath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store, err = sqlite.NewStore(cfg.DataSourceName)
	case "s3":
		storageField["bucketName"] = cfg.S3.Bucket
		if cfg.S3.Endpoint != "" {
			storageField["endpoint"] = cfg.S3.Endpoint
		}
		store, err = aws.NewStore(ctx, aws.Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	case "", "memory":
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	default:
		return nil, core.Validationf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s storage: %w", cfg.Type, err)
	}

	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}

// UserTemplates scopes a TemplateStore to one user and reports every
// failure in the core error taxonomy. It is what an editor session persists through.
type UserTemplates struct {
	store  core.TemplateStore
	userID string
}

func ForUser(store core.TemplateStore, userID string) *UserTemplates {
	return &UserTemplates{store: store, userID: userID}
}

func (u *UserTemplates) UserID() string { return u.userID }

func (u *UserTemplates) Save(ctx context.Context, t *core.Template) error {
	t.UserID = u.userID
	return core.Transport("save template", u.store.Save(ctx, t))
}

func (u *UserTemplates) List(ctx context.Context, page, limit int) ([]*core.Template, int, error) {
	list, total, err := u.store.List(ctx, u.userID, page, limit)
	if err != nil {
		return nil, 0, core.Transport("list templates", err)
	}
	return list, total, nil
}

func (u *UserTemplates) Get(ctx context.Context, id string) (*core.Template, error) {
	t, err := u.store.Get(ctx, u.userID, id)
	if err != nil {
		return nil, core.Transport("get template", err)
	}
	return t, nil
}

func (u *UserTemplates) Delete(ctx context.Context, id string) error {
	return core.Transport("delete template", u.store.Delete(ctx, u.userID, id))
}
