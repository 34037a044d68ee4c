package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

var ErrRequestNotArchived = errors.New(errors.ErrCodeNotFound, "archived request not found")

const requestObjectName = "request.json"

// DocumentArchive stores the raw documents of each extraction request so a
// session can be replayed against a newer pipeline.
type DocumentArchive interface {
	ArchiveRequest(ctx context.Context, sessionID common.ID, req *clinical.ExtractionRequest) (string, error)
	FetchRequest(ctx context.Context, sessionID common.ID) (*clinical.ExtractionRequest, error)
	DeleteRequest(ctx context.Context, sessionID common.ID) error
}

type documentArchive struct {
	client *Client
	logger logging.Logger
}

// NewDocumentArchive constructs the archive.  logger may be nil.
func NewDocumentArchive(client *Client, logger logging.Logger) DocumentArchive {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &documentArchive{client: client, logger: logger.Named("document_archive")}
}

func requestKey(sessionID common.ID) string {
	return path.Join("sessions", string(sessionID), requestObjectName)
}

func (a *documentArchive) ArchiveRequest(ctx context.Context, sessionID common.ID, req *clinical.ExtractionRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode extraction request")
	}

	key := requestKey(sessionID)
	_, err = a.client.api.PutObject(ctx, a.client.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to archive extraction request")
	}

	a.logger.Debug("request archived",
		logging.String("session_id", string(sessionID)),
		logging.String("key", key),
		logging.Int("bytes", len(data)),
	)
	return key, nil
}

func (a *documentArchive) FetchRequest(ctx context.Context, sessionID common.ID) (*clinical.ExtractionRequest, error) {
	key := requestKey(sessionID)

	if _, err := a.client.api.StatObject(ctx, a.client.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrRequestNotArchived
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to stat archived request")
	}

	obj, err := a.client.api.GetObject(ctx, a.client.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to fetch archived request")
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read archived request")
	}

	var req clinical.ExtractionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "archived request is corrupt")
	}
	return &req, nil
}

func (a *documentArchive) DeleteRequest(ctx context.Context, sessionID common.ID) error {
	err := a.client.api.RemoveObject(ctx, a.client.bucket, requestKey(sessionID), minio.RemoveObjectOptions{})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete archived request")
	}
	return nil
}
