package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// uriScheme is the custom URI scheme for engine resources.
const uriScheme = "ragengine://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "statistics",
		Name:        "statistics",
		Description: "Index size, chunking strategy, embedding model and queue depth",
		MIMEType:    "application/json",
	}, s.handleStatisticsResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sources",
		Name:        "sources",
		Description: "Corpora and notes available for retrieval",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "tasks/{taskId}",
		Name:        "task",
		Description: "Status of a processing task",
		MIMEType:    "application/json",
	}, s.handleTaskResource)
}

// handleStatisticsResource returns the engine statistics.
func (s *Server) handleStatisticsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, s.ports.Retrieval.Statistics(ctx))
}

// handleSourcesResource returns the corpora and notes in the catalog.
func (s *Server) handleSourcesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	sources, err := s.ports.Retrieval.AvailableSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	return jsonResource(req.Params.URI, sources)
}

// handleTaskResource returns one processing task.
func (s *Server) handleTaskResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	taskID := extractTaskID(req.Params.URI)
	if taskID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	task, ok := s.ports.Retrieval.Queue().GetTask(taskID)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	return jsonResource(req.Params.URI, task)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractTaskID extracts the task ID from a URI like ragengine://tasks/{taskId}.
func extractTaskID(uri string) string {
	const prefix = uriScheme + "tasks/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
