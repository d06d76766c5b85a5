package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/vibast-solutions/ms-go-nengtul/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	putInput    *s3.PutObjectInput
	putBody     string
	deleteInput *s3.DeleteObjectInput
	err         error
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putInput = in
	if in.Body != nil {
		b, _ := io.ReadAll(in.Body)
		f.putBody = string(b)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleteInput = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.DeleteObjectOutput{}, nil
}

func TestPutReturnsPublicURL(t *testing.T) {
	fake := &fakeObjects{}
	store := newS3ImageStore(fake, config.S3Config{Bucket: "images", PublicURL: "https://cdn.nengtul.example"})

	url, err := store.Put(context.Background(), "profile/u/1.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.nengtul.example/profile/u/1.png", url)
	assert.Equal(t, "images", aws.ToString(fake.putInput.Bucket))
	assert.Equal(t, "profile/u/1.png", aws.ToString(fake.putInput.Key))
	assert.Equal(t, "image/png", aws.ToString(fake.putInput.ContentType))
	assert.Equal(t, "png-bytes", fake.putBody)
}

func TestBaseURLFallbacks(t *testing.T) {
	minio := newS3ImageStore(&fakeObjects{}, config.S3Config{Bucket: "images", Endpoint: "http://minio:9000/"})
	assert.Equal(t, "http://minio:9000/images", minio.baseURL)

	hosted := newS3ImageStore(&fakeObjects{}, config.S3Config{Bucket: "images", Region: "ap-northeast-2"})
	assert.Equal(t, "https://images.s3.ap-northeast-2.amazonaws.com", hosted.baseURL)
}

func TestPutError(t *testing.T) {
	store := newS3ImageStore(&fakeObjects{err: errors.New("denied")}, config.S3Config{Bucket: "images"})
	_, err := store.Put(context.Background(), "k", "image/png", strings.NewReader(""))
	assert.Error(t, err)
}

func TestDeleteResolvesKeyFromURL(t *testing.T) {
	fake := &fakeObjects{}
	store := newS3ImageStore(fake, config.S3Config{Bucket: "images", PublicURL: "https://cdn.nengtul.example"})

	require.NoError(t, store.Delete(context.Background(), "https://cdn.nengtul.example/profile/u/1.png"))
	assert.Equal(t, "profile/u/1.png", aws.ToString(fake.deleteInput.Key))

	err := store.Delete(context.Background(), "https://elsewhere.example/profile/u/1.png")
	assert.ErrorIs(t, err, ErrForeignURL)
}

func TestProfileKey(t *testing.T) {
	key := ProfileKey("user+tag@example.com", "Me.PNG")
	assert.True(t, strings.HasPrefix(key, "profile/user_tag_example.com/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)
	assert.NotEqual(t, key, ProfileKey("user+tag@example.com", "Me.PNG"))
}
