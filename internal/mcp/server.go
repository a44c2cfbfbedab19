// Package mcp exposes the trial search and matching use-cases as MCP tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/trial-match-server/internal/domain"
)

// MatchingService is the set of use-cases served as tools
type MatchingService interface {
	SearchTrials(ctx context.Context, query domain.TrialQuery) ([]domain.Trial, error)
	GetTrial(ctx context.Context, nctID string) (*domain.Trial, error)
	MatchCondition(ctx context.Context, patient *domain.PatientRecord, condition string, maxTrials int, minScore float64) ([]domain.MatchResult, error)
	MatchTrial(ctx context.Context, patient *domain.PatientRecord, nctID string) (*domain.MatchResult, error)
}

// Server is the MCP tool server
type Server struct {
	config    *domain.Config
	matching  MatchingService
	mcpServer *mcp.Server
	logger    *logrus.Logger
}

// NewServer creates the MCP server and registers every tool
func NewServer(cfg *domain.Config, matching MatchingService, logger *logrus.Logger) *Server {
	serverInfo := &mcp.Implementation{
		Name:    cfg.MCP.ServerName,
		Version: cfg.MCP.ServerVersion,
	}

	server := &Server{
		config:    cfg,
		matching:  matching,
		mcpServer: mcp.NewServer(serverInfo, nil),
		logger:    logger,
	}

	server.registerTools()

	return server
}

// registerTools registers the search and matching tools with the SDK
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolSearchTrials,
		Description: "Search ClinicalTrials.gov for trials by condition and/or keywords",
	}, s.handleSearchTrials)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolGetTrial,
		Description: "Fetch a single clinical trial by NCT ID",
	}, s.handleGetTrial)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolMatchPatient,
		Description: "Match a patient record against recruiting trials for a condition and rank them by eligibility",
	}, s.handleMatchPatient)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolMatchPatientToTrial,
		Description: "Judge a patient's eligibility for one trial identified by NCT ID",
	}, s.handleMatchPatientToTrial)

	s.logger.WithField("tool_count", 4).Info("Registered MCP tools")
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves MCP over the given transport
func (s *Server) RunTransport(ctx context.Context, transport mcp.Transport) error {
	s.logger.WithFields(logrus.Fields{
		"server_name": s.config.MCP.ServerName,
		"version":     s.config.MCP.ServerVersion,
	}).Info("Starting MCP server")

	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
