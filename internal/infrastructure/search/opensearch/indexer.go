package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

// Backend narrows the OpenSearch surface the indexer needs, so tests can
// substitute a fake.
type Backend interface {
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, mapping []byte) error
	IndexDocument(ctx context.Context, index, id string, body []byte) error
	DeleteDocument(ctx context.Context, index, id string) error
	Search(ctx context.Context, index string, query []byte) ([]json.RawMessage, error)
}

// sessionMapping keeps deduplicated_text analyzed for full-text queries and
// the summary fields as keywords/numerics for filtering.
const sessionMapping = `{
	"mappings": {
		"properties": {
			"session_id":         {"type": "keyword"},
			"created_at":         {"type": "date"},
			"primary_pathology":  {"type": "keyword"},
			"entity_count":       {"type": "integer"},
			"event_count":        {"type": "integer"},
			"quality_overall":    {"type": "float"},
			"degraded":           {"type": "boolean"},
			"deduplicated_text":  {"type": "text"}
		}
	}
}`

// SessionDocument is the indexed projection of a finished session.
type SessionDocument struct {
	SessionID        string    `json:"session_id"`
	CreatedAt        time.Time `json:"created_at"`
	PrimaryPathology string    `json:"primary_pathology"`
	EntityCount      int       `json:"entity_count"`
	EventCount       int       `json:"event_count"`
	QualityOverall   float64   `json:"quality_overall"`
	Degraded         bool      `json:"degraded"`
	DeduplicatedText string    `json:"deduplicated_text"`
}

// SessionIndexer maintains the session search index.
type SessionIndexer interface {
	EnsureIndex(ctx context.Context) error
	IndexSession(ctx context.Context, session *clinical.ExtractionSession) error
	DeleteSession(ctx context.Context, id common.ID) error
	SearchSessions(ctx context.Context, text string, limit int) ([]*SessionDocument, error)
}

type sessionIndexer struct {
	backend Backend
	index   string
	logger  logging.Logger
}

// NewSessionIndexer constructs the indexer against the client's session
// index.
func NewSessionIndexer(client *Client, logger logging.Logger) SessionIndexer {
	return NewSessionIndexerWithBackend(&osBackend{api: client.api}, client.SessionIndex(), logger)
}

// NewSessionIndexerWithBackend injects the backend; used by tests.
func NewSessionIndexerWithBackend(backend Backend, index string, logger logging.Logger) SessionIndexer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &sessionIndexer{backend: backend, index: index, logger: logger.Named("session_indexer")}
}

func (i *sessionIndexer) EnsureIndex(ctx context.Context) error {
	exists, err := i.backend.IndexExists(ctx, i.index)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to check session index")
	}
	if exists {
		return nil
	}
	if err := i.backend.CreateIndex(ctx, i.index, []byte(sessionMapping)); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create session index")
	}
	i.logger.Info("session index created", logging.String("index", i.index))
	return nil
}

func (i *sessionIndexer) IndexSession(ctx context.Context, session *clinical.ExtractionSession) error {
	doc := SessionDocument{
		SessionID:        string(session.ID),
		CreatedAt:        session.CreatedAt,
		PrimaryPathology: string(session.PrimaryPathology),
		EntityCount:      len(session.Entities),
		EventCount:       len(session.Timeline),
		Degraded:         session.Degraded,
		DeduplicatedText: session.DeduplicatedText,
	}
	if session.Quality != nil {
		doc.QualityOverall = session.Quality.Overall
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode session document")
	}
	if err := i.backend.IndexDocument(ctx, i.index, doc.SessionID, body); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to index session")
	}

	i.logger.Debug("session indexed",
		logging.String("session_id", doc.SessionID),
		logging.String("pathology", doc.PrimaryPathology),
	)
	return nil
}

func (i *sessionIndexer) DeleteSession(ctx context.Context, id common.ID) error {
	if err := i.backend.DeleteDocument(ctx, i.index, string(id)); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete indexed session")
	}
	return nil
}

func (i *sessionIndexer) SearchSessions(ctx context.Context, text string, limit int) ([]*SessionDocument, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query, err := json.Marshal(map[string]any{
		"size": limit,
		"query": map[string]any{
			"match": map[string]any{
				"deduplicated_text": text,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode search query")
	}

	sources, err := i.backend.Search(ctx, i.index, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "session search failed")
	}

	out := make([]*SessionDocument, 0, len(sources))
	for _, src := range sources {
		var doc SessionDocument
		if err := json.Unmarshal(src, &doc); err != nil {
			i.logger.Warn("skipping undecodable search hit", logging.Err(err))
			continue
		}
		out = append(out, &doc)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Production backend
// ─────────────────────────────────────────────────────────────────────────────

type osBackend struct {
	api *opensearchapi.Client
}

func (b *osBackend) IndexExists(ctx context.Context, index string) (bool, error) {
	resp, err := b.api.Indices.Exists(ctx, opensearchapi.IndicesExistsReq{Indices: []string{index}})
	if resp != nil && resp.StatusCode == 404 {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *osBackend) CreateIndex(ctx context.Context, index string, mapping []byte) error {
	_, err := b.api.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: index,
		Body:  bytes.NewReader(mapping),
	})
	return err
}

func (b *osBackend) IndexDocument(ctx context.Context, index, id string, body []byte) error {
	_, err := b.api.Index(ctx, opensearchapi.IndexReq{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(body),
	})
	return err
}

func (b *osBackend) DeleteDocument(ctx context.Context, index, id string) error {
	_, err := b.api.Document.Delete(ctx, opensearchapi.DocumentDeleteReq{
		Index:      index,
		DocumentID: id,
	})
	return err
}

func (b *osBackend) Search(ctx context.Context, index string, query []byte) ([]json.RawMessage, error) {
	resp, err := b.api.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{index},
		Body:    bytes.NewReader(query),
	})
	if err != nil {
		return nil, err
	}
	sources := make([]json.RawMessage, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		sources = append(sources, hit.Source)
	}
	return sources, nil
}
