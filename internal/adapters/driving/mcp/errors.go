// Package mcp provides an MCP (Model Context Protocol) server adapter for the
// retrieval engine. It lets AI assistants search indexed sources, assemble
// context and queue sources for processing.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
