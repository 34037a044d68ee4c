// Package bootstrap wires the optional infrastructure backends shared by the
// apiserver and worker binaries.  A backend that cannot be reached at startup
// is logged and skipped; nil members disable the corresponding feature.
package bootstrap

import (
	"context"

	"github.com/turtacn/NeuroChart-Intelligence/internal/config"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/database/neo4j"
	neo4jrepos "github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/database/neo4j/repositories"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/database/postgres"
	pgrepos "github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/search/opensearch"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/NeuroChart-Intelligence/internal/interfaces/http/handlers"
)

// Backends holds whichever infrastructure clients came up at startup.
type Backends struct {
	PG          *postgres.Connection
	RedisClient *redis.Client
	Neo4jDriver *neo4j.Driver

	Cache    redis.SessionCache
	Sessions pgrepos.SessionRepository
	Graph    neo4jrepos.TimelineGraphRepository
	Archive  minio.DocumentArchive
	Indexer  opensearch.SessionIndexer
}

// Connect attempts every configured backend.
func Connect(ctx context.Context, cfg *config.Config, logger logging.Logger) *Backends {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	b := &Backends{}

	if cfg.Database.Host != "" {
		if conn, err := postgres.NewConnection(ctx, cfg.Database, logger); err != nil {
			logger.Warn("session archive unavailable", logging.Err(err))
		} else {
			b.PG = conn
			b.Sessions = pgrepos.NewSessionRepository(conn.Pool(), logger)
		}
	}

	if cfg.Redis.Addr != "" {
		if client, err := redis.NewClient(cfg.Redis, logger); err != nil {
			logger.Warn("session cache unavailable", logging.Err(err))
		} else {
			b.RedisClient = client
			b.Cache = redis.NewSessionCache(client, cfg.Redis.KeyPrefix, cfg.Redis.DefaultTTL, logger)
		}
	}

	if cfg.Neo4j.URI != "" {
		if driver, err := neo4j.NewDriver(ctx, cfg.Neo4j, logger); err != nil {
			logger.Warn("timeline graph unavailable", logging.Err(err))
		} else {
			b.Neo4jDriver = driver
			b.Graph = neo4jrepos.NewTimelineGraphRepository(driver, logger)
		}
	}

	if cfg.MinIO.Endpoint != "" {
		if client, err := minio.NewClient(cfg.MinIO, logger); err != nil {
			logger.Warn("document archive unavailable", logging.Err(err))
		} else {
			b.Archive = minio.NewDocumentArchive(client, logger)
		}
	}

	if len(cfg.OpenSearch.Addresses) > 0 {
		if client, err := opensearch.NewClient(cfg.OpenSearch, logger); err != nil {
			logger.Warn("session index unavailable", logging.Err(err))
		} else {
			indexer := opensearch.NewSessionIndexer(client, logger)
			if err := indexer.EnsureIndex(ctx); err != nil {
				logger.Warn("session index setup failed", logging.Err(err))
			} else {
				b.Indexer = indexer
			}
		}
	}

	return b
}

// Checkers exposes readiness probes for the backends that are up.
func (b *Backends) Checkers() []handlers.HealthChecker {
	var out []handlers.HealthChecker
	if b.PG != nil {
		out = append(out, handlers.CheckerFunc{CheckerName: "postgres", Fn: b.PG.HealthCheck})
	}
	if b.RedisClient != nil {
		out = append(out, handlers.CheckerFunc{CheckerName: "redis", Fn: b.RedisClient.Ping})
	}
	return out
}

// Close releases every live client.
func (b *Backends) Close(logger logging.Logger) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if b.Neo4jDriver != nil {
		if err := b.Neo4jDriver.Close(context.Background()); err != nil {
			logger.Warn("neo4j close failed", logging.Err(err))
		}
	}
	if b.RedisClient != nil {
		if err := b.RedisClient.Close(); err != nil {
			logger.Warn("redis close failed", logging.Err(err))
		}
	}
	if b.PG != nil {
		b.PG.Close()
	}
}
