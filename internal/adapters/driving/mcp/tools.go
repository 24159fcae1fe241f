package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragengine/internal/core/domain"
)

const defaultLimit = 5

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query      string   `json:"query" jsonschema:"the text to search for"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 5)"`
	SourceType string   `json:"source_type,omitempty" jsonschema:"restrict results to note or document"`
	SourceIDs  []string `json:"source_ids,omitempty" jsonschema:"restrict results to these source ids"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results  []SearchResultOutput `json:"results"`
	Count    int                  `json:"count"`
	Degraded bool                 `json:"degraded,omitempty"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	SourceType string  `json:"source_type"`
	SourceID   string  `json:"source_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// ContextInput is the input schema for the get_context tool.
type ContextInput struct {
	Query     string   `json:"query" jsonschema:"the question the context should answer"`
	CorpusIDs []string `json:"corpus_ids,omitempty" jsonschema:"document corpora to search"`
	NoteIDs   []string `json:"note_ids,omitempty" jsonschema:"notes to search"`
	Limit     int      `json:"limit,omitempty" jsonschema:"maximum number of chunks to include (default 5)"`
}

// ContextOutput is the output schema for the get_context tool.
type ContextOutput struct {
	Context string                 `json:"context"`
	Sources []domain.ContextSource `json:"sources"`
}

// SourceInput identifies one source.
type SourceInput struct {
	SourceType string `json:"source_type" jsonschema:"note or document"`
	SourceID   string `json:"source_id" jsonschema:"the source identifier"`
}

// ProcessOutput is the output schema for the process_source tool.
type ProcessOutput struct {
	TaskID string `json:"task_id"`
}

// TaskStatusInput is the input schema for the task_status tool.
type TaskStatusInput struct {
	TaskID     string `json:"task_id,omitempty" jsonschema:"the task to look up"`
	SourceType string `json:"source_type,omitempty" jsonschema:"with source_id, list the tasks of a source"`
	SourceID   string `json:"source_id,omitempty" jsonschema:"with source_type, list the tasks of a source"`
}

// TaskStatusOutput is the output schema for the task_status tool.
type TaskStatusOutput struct {
	Tasks []TaskOutput `json:"tasks"`
}

// TaskOutput describes one processing task. Times are RFC 3339.
type TaskOutput struct {
	TaskID     string `json:"task_id"`
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	StartTime  string `json:"start_time,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
}

// StatisticsInput is the empty input of the statistics tool.
type StatisticsInput struct{}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Semantic search over indexed notes and documents",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_context",
		Description: "Assemble attributed context for a question from the selected corpora and notes",
	}, s.handleGetContext)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "process_source",
		Description: "Queue a stored note or document for chunking, embedding and indexing",
	}, s.handleProcessSource)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "task_status",
		Description: "Report the status of processing tasks",
	}, s.handleTaskStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "statistics",
		Description: "Index size, embedding model and queue depth",
	}, s.handleStatistics)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	filter := domain.SearchFilter{SourceIDs: input.SourceIDs}
	if input.SourceType != "" {
		sourceType, err := domain.ParseSourceType(input.SourceType)
		if err != nil {
			return nil, SearchOutput{}, err
		}
		filter.SourceType = sourceType
	}

	outcome, _, err := s.ports.Retrieval.SearchOutcome(ctx, input.Query, limit, filter)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results:  make([]SearchResultOutput, len(outcome.Results)),
		Count:    len(outcome.Results),
		Degraded: outcome.Degraded,
	}
	for i, r := range outcome.Results {
		output.Results[i] = SearchResultOutput{
			SourceType: r.Chunk.SourceType.String(),
			SourceID:   r.Chunk.SourceID,
			ChunkIndex: r.Chunk.Index,
			Score:      r.Score,
			Text:       r.Chunk.Text,
		}
	}

	return nil, output, nil
}

// handleGetContext handles the get_context tool invocation.
func (s *Server) handleGetContext(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ContextInput,
) (*mcp.CallToolResult, ContextOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	active := &domain.ActiveSources{CorpusIDs: input.CorpusIDs, NoteIDs: input.NoteIDs}
	text, sources := s.ports.Retrieval.GetContextForQuery(ctx, input.Query, active, limit)
	if sources == nil {
		sources = []domain.ContextSource{}
	}

	return nil, ContextOutput{Context: text, Sources: sources}, nil
}

// handleProcessSource handles the process_source tool invocation.
func (s *Server) handleProcessSource(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SourceInput,
) (*mcp.CallToolResult, ProcessOutput, error) {
	ref, err := parseRef(input.SourceType, input.SourceID)
	if err != nil {
		return nil, ProcessOutput{}, err
	}

	taskID, err := s.ports.Retrieval.Queue().AddTask(ref)
	if err != nil {
		return nil, ProcessOutput{}, fmt.Errorf("queueing %s: %w", ref, err)
	}
	return nil, ProcessOutput{TaskID: taskID}, nil
}

// handleTaskStatus handles the task_status tool invocation.
func (s *Server) handleTaskStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input TaskStatusInput,
) (*mcp.CallToolResult, TaskStatusOutput, error) {
	queue := s.ports.Retrieval.Queue()

	if input.TaskID != "" {
		task, ok := queue.GetTask(input.TaskID)
		if !ok {
			return nil, TaskStatusOutput{}, fmt.Errorf("%w: task %s", domain.ErrNotFound, input.TaskID)
		}
		return nil, TaskStatusOutput{Tasks: []TaskOutput{toTaskOutput(task)}}, nil
	}

	ref, err := parseRef(input.SourceType, input.SourceID)
	if err != nil {
		return nil, TaskStatusOutput{}, fmt.Errorf("task_id or source_type and source_id required: %w", err)
	}

	tasks := queue.GetTasksBySource(ref)
	output := TaskStatusOutput{Tasks: make([]TaskOutput, len(tasks))}
	for i, task := range tasks {
		output.Tasks[i] = toTaskOutput(task)
	}
	return nil, output, nil
}

// handleStatistics handles the statistics tool invocation.
func (s *Server) handleStatistics(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatisticsInput,
) (*mcp.CallToolResult, domain.Statistics, error) {
	return nil, s.ports.Retrieval.Statistics(ctx), nil
}

func toTaskOutput(task domain.ProcessingTask) TaskOutput {
	out := TaskOutput{
		TaskID:     task.ID,
		SourceType: task.SourceType.String(),
		SourceID:   task.SourceID,
		Status:     task.Status.String(),
		Error:      task.Error,
		CreatedAt:  task.CreatedAt.Format(time.RFC3339),
	}
	if task.StartTime != nil {
		out.StartTime = task.StartTime.Format(time.RFC3339)
	}
	if task.EndTime != nil {
		out.EndTime = task.EndTime.Format(time.RFC3339)
	}
	return out
}

func parseRef(sourceType, sourceID string) (domain.SourceRef, error) {
	t, err := domain.ParseSourceType(sourceType)
	if err != nil {
		return domain.SourceRef{}, err
	}
	return domain.NewSourceRef(t, sourceID)
}
