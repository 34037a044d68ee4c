// Package opensearch indexes finished extraction sessions so clinicians can
// run full-text search over deduplicated note text and session summaries.
package opensearch

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v3"
	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/turtacn/NeuroChart-Intelligence/internal/config"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/errors"
)

var ErrConnectionFailed = errors.New(errors.ErrCodeInternal, "opensearch connection failed")

const defaultIndexPrefix = "neurochart-"

// Client wraps the OpenSearch typed API client.
type Client struct {
	api         *opensearchapi.Client
	indexPrefix string
	logger      logging.Logger
}

// NewClient connects to the configured cluster and verifies it with a ping.
func NewClient(cfg config.OpenSearchConfig, logger logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Named("opensearch")

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	api, err := opensearchapi.NewClient(opensearchapi.Config{
		Client: opensearch.Config{
			Addresses: cfg.Addresses,
			Username:  cfg.User,
			Password:  cfg.Password,
			Transport: transport,
		},
	})
	if err != nil {
		return nil, ErrConnectionFailed.WithCause(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := api.Ping(ctx, nil); err != nil {
		return nil, ErrConnectionFailed.WithCause(err)
	}

	prefix := cfg.IndexPrefix
	if prefix == "" {
		prefix = defaultIndexPrefix
	}

	logger.Info("opensearch client connected", logging.String("prefix", prefix))
	return &Client{api: api, indexPrefix: prefix, logger: logger}, nil
}

// SessionIndex returns the name of the session index.
func (c *Client) SessionIndex() string { return c.indexPrefix + "sessions" }
