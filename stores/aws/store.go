package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"tag-designer/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// s3API is the subset of *s3.Client the store needs.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type s3Store struct {
	s3Client s3API
	bucket   string
}

// Options selects the bucket and, for S3-compatible services, the endpoint
// and static credentials. Empty fields fall back to the SDK defaults.
type Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewStore creates a new S3-based store.
func NewStore(ctx context.Context, opts Options) (*s3Store, error) {
	if opts.Bucket == "" {
		return nil, core.Validationf("s3 bucket name is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newStore(s3Client, opts.Bucket), nil
}

func newStore(client s3API, bucket string) *s3Store {
	return &s3Store{s3Client: client, bucket: bucket}
}

// validKeyPart rejects anything that could turn into a different key path.
func validKeyPart(kind, part string) error {
	if part == "" || part == "." || part == ".." || path.Base(part) != part {
		return core.Validationf("invalid %s: must be a plain name", kind)
	}
	return nil
}

func (s *s3Store) templateKey(userID, id string) (string, error) {
	if err := validKeyPart("user id", userID); err != nil {
		return "", err
	}
	if err := validKeyPart("template id", id); err != nil {
		return "", err
	}
	return path.Join("templates", userID, id+".json"), nil
}

func isNoSuchKey(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}

func (s *s3Store) getJSON(ctx context.Context, key string, v any) error {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func (s *s3Store) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

func (s *s3Store) keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, object := range output.Contents {
			keys = append(keys, aws.ToString(object.Key))
		}
	}
	return keys, nil
}

// TemplateStore implementation
func (s *s3Store) List(ctx context.Context, userID string, page, limit int) ([]*core.Template, int, error) {
	if err := validKeyPart("user id", userID); err != nil {
		return nil, 0, err
	}
	log := logrus.WithField("user_id", userID)

	keys, err := s.keys(ctx, path.Join("templates", userID)+"/")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list templates for user %s: %w", userID, err)
	}

	all := make([]*core.Template, 0, len(keys))
	for _, key := range keys {
		var t core.Template
		if err := s.getJSON(ctx, key, &t); err != nil {
			log.WithError(err).Warnf("Failed to load template %s, skipping", key)
			continue
		}
		all = append(all, t.Summary())
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	start, end := core.Page(page, limit, len(all))
	log.Infof("Listed %d of %d templates", end-start, len(all))
	return all[start:end], len(all), nil
}

func (s *s3Store) Get(ctx context.Context, userID, id string) (*core.Template, error) {
	key, err := s.templateKey(userID, id)
	if err != nil {
		return nil, err
	}
	var t core.Template
	if err := s.getJSON(ctx, key, &t); err != nil {
		if isNoSuchKey(err) {
			return nil, core.NotFoundf("template %s", id)
		}
		return nil, fmt.Errorf("failed to get template %s: %w", id, err)
	}
	return &t, nil
}

func (s *s3Store) Save(ctx context.Context, template *core.Template) error {
	if err := template.Validate(); err != nil {
		return err
	}
	if template.ID == "" {
		template.ID = ulid.Make().String()
	}
	key, err := s.templateKey(template.UserID, template.ID)
	if err != nil {
		return err
	}

	// Preserve CreatedAt on update
	now := time.Now()
	createdAt := now
	if existing, err := s.Get(ctx, template.UserID, template.ID); err == nil {
		createdAt = existing.CreatedAt
	} else if !errors.Is(err, core.ErrNotFound) {
		return err
	}

	record := *template
	record.CreatedAt, record.UpdatedAt = createdAt, now
	if err := s.putJSON(ctx, key, &record); err != nil {
		return fmt.Errorf("failed to save template %s: %w", template.ID, err)
	}

	template.CreatedAt, template.UpdatedAt = createdAt, now
	logrus.WithFields(logrus.Fields{"user_id": template.UserID, "template_id": template.ID}).Info("Template saved successfully")
	return nil
}

func (s *s3Store) Delete(ctx context.Context, userID, id string) error {
	// S3 deletes are idempotent, so existence is checked first.
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	key, _ := s.templateKey(userID, id)
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete template %s: %w", id, err)
	}
	return nil
}

// userRecord persists the password hash that core.User keeps out of JSON.
type userRecord struct {
	core.User
	PasswordHash string `json:"passwordHash,omitempty"`
}

// UserStore implementation. Accounts are few, so lookups scan the users/ prefix.
func (s *s3Store) CreateUser(ctx context.Context, user *core.User) error {
	users, err := s.users(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if (user.PasswordHash != "" && u.PasswordHash != "" && strings.EqualFold(u.Email, user.Email)) ||
			(user.Subject != "" && u.Subject == user.Subject) {
			return fmt.Errorf("user %s: %w", user.Email, core.ErrConflict)
		}
	}

	if user.ID == "" {
		user.ID = ulid.Make().String()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	if err := s.putJSON(ctx, path.Join("users", user.ID+".json"), userRecord{User: *user, PasswordHash: user.PasswordHash}); err != nil {
		return fmt.Errorf("failed to save user %s: %w", user.ID, err)
	}
	return nil
}

func (s *s3Store) users(ctx context.Context) ([]*core.User, error) {
	keys, err := s.keys(ctx, "users/")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]*core.User, 0, len(keys))
	for _, key := range keys {
		var r userRecord
		if err := s.getJSON(ctx, key, &r); err != nil {
			logrus.WithError(err).Warnf("Failed to load user %s, skipping", key)
			continue
		}
		u := r.User
		u.PasswordHash = r.PasswordHash
		users = append(users, &u)
	}
	return users, nil
}

func (s *s3Store) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	users, err := s.users(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.PasswordHash != "" && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, core.NotFoundf("user %s", email)
}

func (s *s3Store) FindUserBySubject(ctx context.Context, subject string) (*core.User, error) {
	users, err := s.users(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Subject == subject {
			return u, nil
		}
	}
	return nil, core.NotFoundf("user with subject %s", subject)
}
