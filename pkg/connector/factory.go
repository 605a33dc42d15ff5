// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/sales-ingress/pkg/config"
)

// ConnectorFactory creates database connectors
type ConnectorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger) *ConnectorFactory {
	return &ConnectorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSnowflakeConnector creates a new Snowflake connector
func (f *ConnectorFactory) CreateSnowflakeConnector(ctx context.Context) (*SnowflakeConnector, error) {
	f.logger.Info("Creating Snowflake connector")

	connector, err := NewSnowflakeConnector(ctx, f.cfg.Snowflake)
	if err != nil {
		return nil, fmt.Errorf("failed to create Snowflake connector: %w", err)
	}

	return connector, nil
}

// CreatePostgresConnector creates a new PostgreSQL connector
func (f *ConnectorFactory) CreatePostgresConnector(ctx context.Context) (*PostgresConnector, error) {
	f.logger.Info("Creating PostgreSQL connector")

	connector, err := NewPostgresConnector(ctx, f.cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connector: %w", err)
	}

	return connector, nil
}

// CreateForRun creates and validates the connectors the configured run
// shape requires: the Postgres target unless the caller skips it (dry
// runs have no target), plus the Snowflake source for warehouse runs.
// Either connector may be nil when the run shape does not need it.
func (f *ConnectorFactory) CreateForRun(ctx context.Context, includePostgres bool) (*SnowflakeConnector, *PostgresConnector, error) {
	var pgConn *PostgresConnector
	var err error

	if includePostgres {
		pgConn, err = f.CreatePostgresConnector(ctx)
		if err != nil {
			return nil, nil, err
		}
		if err := pgConn.Validate(); err != nil {
			pgConn.Close()
			return nil, nil, fmt.Errorf("PostgreSQL validation failed: %w", err)
		}
	}

	if f.cfg.SourceKind != config.SourceWarehouse {
		return nil, pgConn, nil
	}

	snowConn, err := f.CreateSnowflakeConnector(ctx)
	if err != nil {
		if pgConn != nil {
			pgConn.Close() // Clean up the Postgres connection if Snowflake fails
		}
		return nil, nil, err
	}
	if err := snowConn.Validate(); err != nil {
		snowConn.Close()
		if pgConn != nil {
			pgConn.Close()
		}
		return nil, nil, fmt.Errorf("snowflake validation failed: %w", err)
	}

	return snowConn, pgConn, nil
}
