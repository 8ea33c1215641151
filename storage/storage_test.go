package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects and metadata in maps and satisfies both the
// object and presign interfaces.
type fakeS3 struct {
	objects  map[string][]byte
	metadata map[string]map[string]string
	failWith error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:  map[string][]byte{},
		metadata: map[string]map[string]string{},
	}
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	body, ok := f.objects[*params.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(body)))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*params.Key]; !ok {
		return nil, errors.New("NotFound")
	}
	return &s3.HeadObjectOutput{Metadata: f.metadata[*params.Key]}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, params *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	if _, ok := f.objects[*params.Key]; !ok {
		return nil, errors.New("NoSuchKey")
	}
	f.metadata[*params.Key] = params.Metadata
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) PresignGetObject(_ context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	url := "https://signed.example.org/" + *params.Key + "?expires=" + opts.Expires.String()
	return &v4.PresignedHTTPRequest{URL: url, Method: "GET"}, nil
}

func newTestStore() (*Store, *fakeS3) {
	fake := newFakeS3()
	return New(fake, fake, "apps-bucket", "eu-central-1"), fake
}

func TestBuildKeyName(t *testing.T) {

	key, err := BuildKeyName("Android", "psiphon", "psiphon-3.apk")
	require.NoError(t, err)
	assert.Equal(t, "android/psiphon/psiphon-3.apk", key)

	_, err = BuildKeyName("", "psiphon", "x.apk")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPutAndGetBinary(t *testing.T) {

	store, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.PutBinary(ctx, "android/psiphon/a.apk", []byte("payload")))

	body, err := store.GetBinary(ctx, "android/psiphon/a.apk")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), body)

	_, err = store.GetBinary(ctx, "missing")
	assert.ErrorIs(t, err, ErrAWS)

	_, err = store.GetBinary(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetJSON(t *testing.T) {

	store, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.PutBinary(ctx, "conf.json", []byte(`{"name":"psiphon"}`)))

	var v struct {
		Name string `json:"name"`
	}
	require.NoError(t, store.GetJSON(ctx, "conf.json", &v))
	assert.Equal(t, "psiphon", v.Name)

	require.NoError(t, store.PutBinary(ctx, "bad.json", []byte("{")))
	assert.Error(t, store.GetJSON(ctx, "bad.json", &v))
}

func TestObjectMetadata(t *testing.T) {

	store, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.PutBinary(ctx, "a.apk", []byte("x")))
	require.NoError(t, store.SetObjectMetadata(ctx, "a.apk", map[string]string{"version": "3.1"}))

	meta, err := store.ObjectMetadata(ctx, "a.apk")
	require.NoError(t, err)
	assert.Equal(t, "3.1", meta["version"])

	err = store.SetObjectMetadata(ctx, "missing", map[string]string{"a": "b"})
	assert.ErrorIs(t, err, ErrAWS)
}

func TestTempLink(t *testing.T) {

	store, _ := newTestStore()
	ctx := context.Background()

	url, err := store.TempLink(ctx, "android/psiphon/a.apk", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "android/psiphon/a.apk")
	assert.Contains(t, url, "expires=1h0m0s")

	url, err = store.TempLink(ctx, "a.apk", 0)
	require.NoError(t, err)
	assert.Contains(t, url, "expires="+DefaultLinkTTL.String(), "zero duration falls back to the default")

	_, err = store.TempLink(ctx, "", time.Hour)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPutDocFile(t *testing.T) {

	store, fake := newTestStore()
	store.now = func() time.Time { return time.Date(2016, 8, 1, 10, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	key, err := store.PutDocFile(ctx, "uploads", "report.pdf", []byte("doc"), "user report")
	require.NoError(t, err)
	assert.Equal(t, "uploads/20160801T103000-report.pdf", key)
	assert.Equal(t, []byte("doc"), fake.objects[key])
	assert.Equal(t, []byte("user report"), fake.objects[key+".cap"])

	// no caption means no sibling object
	key, err = store.PutDocFile(ctx, "uploads", "plain.bin", []byte("x"), "")
	require.NoError(t, err)
	_, ok := fake.objects[key+".cap"]
	assert.False(t, ok)

	_, err = store.PutDocFile(ctx, "uploads", "", nil, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBuildStaticLink(t *testing.T) {
	store, _ := newTestStore()
	assert.Equal(t,
		"https://apps-bucket.s3.eu-central-1.amazonaws.com/android/psiphon/a.apk",
		store.BuildStaticLink("android/psiphon/a.apk"))
}
