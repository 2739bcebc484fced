package blobstore_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servifield/servifield/internal/blobstore"
	"github.com/servifield/servifield/internal/degradation"
)

type fakeS3 struct {
	headErr error

	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	if in.ContentType != nil {
		f.types[*in.Key] = *in.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestStore_PutGetDelete(t *testing.T) {
	fake := newFakeS3()
	store := blobstore.NewWithClient(fake, "servifield-media")
	ctx := context.Background()

	err := store.Put(ctx, "jobs/wo_123/signature.png", strings.NewReader("png-bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", fake.types["jobs/wo_123/signature.png"])

	body, err := store.Get(ctx, "jobs/wo_123/signature.png")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Delete(ctx, "jobs/wo_123/signature.png"))

	_, err = store.Get(ctx, "jobs/wo_123/signature.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NoSuchKey")
}

func TestStore_Ping(t *testing.T) {
	fake := newFakeS3()
	store := blobstore.NewWithClient(fake, "servifield-media")

	require.NoError(t, store.Ping(context.Background()))

	fake.headErr = errors.New("api error Forbidden")
	require.Error(t, store.Ping(context.Background()))
}

func TestProbe_ReportsBucketHealth(t *testing.T) {
	fake := newFakeS3()
	store := blobstore.NewWithClient(fake, "servifield-media")
	probe := blobstore.NewProbe(store, zerolog.Nop())

	state, err := probe.CheckState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, degradation.StatusHealthy, state.Status)

	fake.headErr = errors.New("dial tcp: i/o timeout")
	state, err = probe.CheckState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, degradation.StatusUnavailable, state.Status)
	assert.Contains(t, state.LastErrorMessage, "i/o timeout")
	assert.Equal(t, 50.0, state.SuccessRate)
}
