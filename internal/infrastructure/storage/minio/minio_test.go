package minio

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

type fakeObjectAPI struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeObjectAPI() *fakeObjectAPI {
	return &fakeObjectAPI{objects: make(map[string][]byte)}
}

func (f *fakeObjectAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return true, nil
}

func (f *fakeObjectAPI) MakeBucket(ctx context.Context, bucket string, opts miniogo.MakeBucketOptions) error {
	return nil
}

func (f *fakeObjectAPI) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts miniogo.PutObjectOptions) (miniogo.UploadInfo, error) {
	if f.putErr != nil {
		return miniogo.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return miniogo.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return miniogo.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func (f *fakeObjectAPI) GetObject(ctx context.Context, bucket, key string, opts miniogo.GetObjectOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, miniogo.ErrorResponse{Code: "NoSuchKey"}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectAPI) RemoveObject(ctx context.Context, bucket, key string, opts miniogo.RemoveObjectOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectAPI) StatObject(ctx context.Context, bucket, key string, opts miniogo.StatObjectOptions) (miniogo.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data, ok := f.objects[key]; ok {
		return miniogo.ObjectInfo{Key: key, Size: int64(len(data))}, nil
	}
	return miniogo.ObjectInfo{}, miniogo.ErrorResponse{Code: "NoSuchKey"}
}

func sampleRequest() *clinical.ExtractionRequest {
	return &clinical.ExtractionRequest{
		Documents: []string{"Admitted 2025-01-14 with subarachnoid hemorrhage."},
		Hints:     clinical.ExtractionHints{Pathology: clinical.PathologySAH, PatientAge: 54},
	}
}

func TestArchiveRequest_RoundTrip(t *testing.T) {
	api := newFakeObjectAPI()
	archive := NewDocumentArchive(NewClientWithAPI(api, "neurochart", nil), nil)

	key, err := archive.ArchiveRequest(context.Background(), "sess-1", sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "sessions/sess-1/request.json", key)

	got, err := archive.FetchRequest(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sampleRequest().Documents, got.Documents)
	assert.Equal(t, clinical.PathologySAH, got.Hints.Pathology)
	assert.Equal(t, 54, got.Hints.PatientAge)
}

func TestFetchRequest_MissingSession(t *testing.T) {
	api := newFakeObjectAPI()
	archive := NewDocumentArchive(NewClientWithAPI(api, "neurochart", nil), nil)

	_, err := archive.FetchRequest(context.Background(), "sess-unknown")
	assert.ErrorIs(t, err, ErrRequestNotArchived)
}

func TestDeleteRequest_RemovesObject(t *testing.T) {
	api := newFakeObjectAPI()
	archive := NewDocumentArchive(NewClientWithAPI(api, "neurochart", nil), nil)

	_, err := archive.ArchiveRequest(context.Background(), "sess-1", sampleRequest())
	require.NoError(t, err)
	require.NoError(t, archive.DeleteRequest(context.Background(), "sess-1"))

	_, err = archive.FetchRequest(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrRequestNotArchived)
}

func TestArchiveRequest_UploadFailure(t *testing.T) {
	api := newFakeObjectAPI()
	api.putErr = assert.AnError
	archive := NewDocumentArchive(NewClientWithAPI(api, "neurochart", nil), nil)

	_, err := archive.ArchiveRequest(context.Background(), "sess-1", sampleRequest())
	assert.Error(t, err)
}
