package aws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"tag-designer/core"
	"tag-designer/stores/storetest"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory bucket that pages listings two keys at a time.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	listErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	if len(keys) > 2 {
		keys = keys[:2]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestTemplateStore(t *testing.T) {
	storetest.TestTemplateStore(t, newStore(newFakeS3(), "bucket"))
}

func TestUserStore(t *testing.T) {
	storetest.TestUserStore(t, newStore(newFakeS3(), "bucket"))
}

func TestNewStore_RequiresBucket(t *testing.T) {
	if _, err := NewStore(context.Background(), Options{}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("NewStore() error = %v, want ErrValidation", err)
	}
}

func TestTemplateKey(t *testing.T) {
	s := newStore(newFakeS3(), "bucket")

	key, err := s.templateKey("user", "01ABC")
	if err != nil || key != "templates/user/01ABC.json" {
		t.Errorf("templateKey() = %q, %v", key, err)
	}
	for _, id := range []string{"", ".", "..", "a/b", "../x"} {
		if _, err := s.templateKey("user", id); !errors.Is(err, core.ErrValidation) {
			t.Errorf("templateKey(%q) error = %v, want ErrValidation", id, err)
		}
	}
}

func TestList_TransportError(t *testing.T) {
	fake := newFakeS3()
	fake.listErr = errors.New("connection reset")
	s := newStore(fake, "bucket")

	_, _, err := s.List(context.Background(), "user", 1, 20)
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("List() error = %v, want the listing failure", err)
	}
}
