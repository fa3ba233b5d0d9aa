package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/uniportal-api/services/storage/storagetest"
)

func TestLocalStoreSaveAndDelete(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)

	url, err := store.Save(context.Background(), CategoryStudyPlans, "Plan.PNG", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/study-plans/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	path := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(url, "/")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, store.Delete(context.Background(), url))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// deleting a missing file is not an error
	assert.NoError(t, store.Delete(context.Background(), url))
}

func TestLocalStoreRejectsForeignURLs(t *testing.T) {
	store := NewLocalStore(t.TempDir())

	assert.Error(t, store.Delete(context.Background(), "https://cdn.example.com/a.png"))
	assert.Error(t, store.Delete(context.Background(), "/uploads/../secret"))
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		kind    Kind
		max     int64
		wantErr bool
	}{
		{name: "image ok", file: "a.jpg", content: "x", kind: KindImage, max: 1024},
		{name: "media accepts video", file: "clip.MP4", content: "x", kind: KindMedia, max: 1024},
		{name: "wrong extension", file: "a.exe", content: "x", kind: KindMedia, max: 1024, wantErr: true},
		{name: "pdf not image", file: "a.pdf", content: "%PDF-", kind: KindImage, max: 1024, wantErr: true},
		{name: "too large", file: "a.png", content: strings.Repeat("x", 2048), kind: KindImage, max: 1024, wantErr: true},
		{name: "broken pdf", file: "plan.pdf", content: "not a pdf", kind: KindPDF, max: 1 << 20, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := storagetest.FileHeader(t, tt.file, []byte(tt.content))
			err := ValidateUpload(header, tt.kind, tt.max)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidUpload), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMediaKindOf(t *testing.T) {
	assert.Equal(t, KindPDF, MediaKindOf("plan.PDF"))
	assert.Equal(t, KindVideo, MediaKindOf("intro.mov"))
	assert.Equal(t, KindImage, MediaKindOf("cover.webp"))
}

type fakeS3 struct {
	s3iface.S3API
	puts    []*s3.PutObjectInput
	deletes []*s3.DeleteObjectInput
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, in)
	return &s3.DeleteObjectOutput{}, nil
}

func TestSpacesStoreRoundTrip(t *testing.T) {
	fake := &fakeS3{}
	store := newSpacesStore(fake, SpacesConfig{Bucket: "portal", Endpoint: "blr1.digitaloceanspaces.com"})

	url, err := store.Save(context.Background(), CategoryArticles, "cover.jpg", strings.NewReader("img"))
	require.NoError(t, err)
	require.Len(t, fake.puts, 1)
	assert.True(t, strings.HasPrefix(url, "https://portal.blr1.digitaloceanspaces.com/articles/"))
	assert.Equal(t, "image/jpeg", aws.StringValue(fake.puts[0].ContentType))

	body, err := io.ReadAll(fake.puts[0].Body)
	require.NoError(t, err)
	assert.Equal(t, "img", string(body))

	require.NoError(t, store.Delete(context.Background(), url))
	require.Len(t, fake.deletes, 1)
	assert.Equal(t, aws.StringValue(fake.puts[0].Key), aws.StringValue(fake.deletes[0].Key))

	assert.Error(t, store.Delete(context.Background(), "https://elsewhere.com/x.jpg"))
}

func TestSpacesStoreUsesCDN(t *testing.T) {
	store := newSpacesStore(&fakeS3{}, SpacesConfig{Bucket: "b", Endpoint: "e.com", CDNURL: "https://cdn.example.com/"})

	url, err := store.Save(context.Background(), CategoryCourses, "t.png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/courses/"))
}
