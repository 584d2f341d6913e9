// Package mcp exposes the assessment pipeline as MCP tools over stdio. It needs
// no network services: the reference tables are compiled in (optionally
// overlaid from YAML) and the audit trail is a local SQLite file.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/biomarker-assessment-engine/internal/audit"
	"github.com/biomarker-assessment-engine/internal/config"
	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/logging"
	"github.com/biomarker-assessment-engine/internal/reference"
	"github.com/biomarker-assessment-engine/internal/service"
	"github.com/biomarker-assessment-engine/internal/session"
)

// Server is the MCP server.
type Server struct {
	config     *config.LiteConfig
	info       domain.MCPConfig
	mcpServer  *mcp.Server
	service    *service.AssessmentService
	auditStore domain.AuditStore
	observer   *audit.Observer
	sessions   domain.SessionStore
	logger     *logrus.Logger
}

// Option is a functional option for Server.
type Option func(*Server) error

// WithAuditStore sets a custom audit store instead of the SQLite file under
// the data directory.
func WithAuditStore(store domain.AuditStore) Option {
	return func(s *Server) error {
		s.auditStore = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithServerInfo overrides the implementation name and version announced to clients.
func WithServerInfo(info domain.MCPConfig) Option {
	return func(s *Server) error {
		s.info = info
		return nil
	}
}

// NewServer builds the pipeline from cfg and registers every tool.
func NewServer(cfg *config.LiteConfig, opts ...Option) (*Server, error) {
	s := &Server{
		config: cfg,
		info:   domain.MCPConfig{ServerName: "biomarker-assessment-engine", ServerVersion: "v1.0.0"},
		logger: logging.New(cfg.LogLevel, cfg.LogFormat),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	tables, err := reference.LoadFile(cfg.ReferenceOverlay)
	if err != nil {
		return nil, err
	}

	var observers []service.OutcomeObserver
	if s.auditStore == nil && cfg.AuditEnabled {
		if err := cfg.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := audit.NewSQLiteStore(cfg.AuditDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create audit store: %w", err)
		}
		s.auditStore = store
	}
	if s.auditStore != nil {
		s.observer = audit.NewObserver(s.auditStore, tables.Version, s.logger)
		observers = append(observers, s.observer)
	}

	svc, err := service.NewAssessmentService(s.logger, tables, observers...)
	if err != nil {
		return nil, err
	}
	s.service = svc
	s.sessions = session.NewMemoryStore(cfg.SessionMaxEntries, cfg.SessionTTL)

	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    s.info.ServerName,
		Version: s.info.ServerVersion,
	}, nil)
	s.registerTools()

	s.logger.WithFields(logrus.Fields{
		"reference_version": tables.Version,
		"audit":             s.auditStore != nil,
	}).Info("MCP server initialized")
	return s, nil
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves over t.
func (s *Server) RunTransport(ctx context.Context, t mcp.Transport) error {
	s.logger.Info("Starting MCP server")
	if err := s.mcpServer.Run(ctx, t); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close releases the session store, drains pending audit records and closes
// the audit store.
func (s *Server) Close() error {
	if s.sessions != nil {
		s.sessions.Close()
	}
	if s.observer != nil {
		s.observer.Close()
	}
	if s.auditStore != nil {
		if err := s.auditStore.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close audit store")
			return err
		}
	}
	return nil
}
