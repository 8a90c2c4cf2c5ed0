// Package mcpbridge implements a Model Context Protocol (MCP) server that
// exposes extension permission audits as MCP tools.
//
// The server speaks JSON-RPC 2.0 over stdio, the standard transport for local
// MCP hosts: one JSON message per line in, one per line out.
package mcpbridge

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

const protocolVersion = "2024-11-05"

// ServerName is reported to MCP hosts during initialize.
const ServerName = "extperm-mcp"

const maxMessageSize = 1 << 20

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// isNotification reports whether the sender expects no answer.
func (r rpcRequest) isNotification() bool { return len(r.ID) == 0 }

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type toolsListResult struct {
	Tools []ToolDefinition `json:"tools"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolCallResult struct {
	Content []textContent `json:"content"`
	IsError bool          `json:"isError"`
}

// methodFunc answers one JSON-RPC method.
type methodFunc func(ctx context.Context, params json.RawMessage) (any, *rpcError)

// Server is a stdio MCP server. It reads requests from the reader passed to
// Serve and writes responses to the writer passed to NewServer. tools/call
// requests run concurrently; responses may therefore arrive out of order,
// which JSON-RPC permits.
type Server struct {
	tools   *ToolRegistry
	methods map[string]methodFunc
	async   map[string]bool
	version string
	logger  *zap.Logger

	outMu sync.Mutex
	out   *json.Encoder

	inflight sync.WaitGroup
}

// NewServer creates an MCP server that writes responses to w.
// logger must not write to w.
func NewServer(w io.Writer, tools *ToolRegistry, logger *zap.Logger) *Server {
	s := &Server{
		tools:   tools,
		out:     json.NewEncoder(w),
		logger:  logger,
		version: "dev",
	}
	s.methods = map[string]methodFunc{
		"initialize": s.initialize,
		"ping":       func(context.Context, json.RawMessage) (any, *rpcError) { return struct{}{}, nil },
		"tools/list": s.listTools,
		"tools/call": s.callTool,
	}
	// Tool calls may wait on the inventory host.
	s.async = map[string]bool{"tools/call": true}
	return s
}

// SetVersion sets the version reported in serverInfo.
func (s *Server) SetVersion(v string) { s.version = v }

// Serve handles messages from r until EOF or ctx is cancelled, then waits for
// every in-flight tool call to answer.
func (s *Server) Serve(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, maxMessageSize), maxMessageSize)

	defer s.inflight.Wait()

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.reply(json.RawMessage(`null`), nil, &rpcError{Code: codeParseError, Message: "parse error"})
			continue
		}
		if req.isNotification() {
			s.logger.Debug("mcp: notification", zap.String("method", req.Method))
			continue
		}
		if req.JSONRPC != "2.0" {
			s.reply(req.ID, nil, &rpcError{Code: codeInvalidRequest, Message: `jsonrpc must be "2.0"`})
			continue
		}

		if s.async[req.Method] {
			s.inflight.Add(1)
			go func() {
				defer s.inflight.Done()
				s.handle(ctx, req)
			}()
			continue
		}
		s.handle(ctx, req)
	}
	return scanner.Err()
}

func (s *Server) handle(ctx context.Context, req rpcRequest) {
	fn, ok := s.methods[req.Method]
	if !ok {
		s.reply(req.ID, nil, &rpcError{Code: codeMethodNotFound, Message: "method not found: " + req.Method})
		return
	}
	result, rerr := fn(ctx, req.Params)
	s.reply(req.ID, result, rerr)
}

func (s *Server) initialize(context.Context, json.RawMessage) (any, *rpcError) {
	return initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ServerInfo:      serverInfo{Name: ServerName, Version: s.version},
	}, nil
}

func (s *Server) listTools(context.Context, json.RawMessage) (any, *rpcError) {
	return toolsListResult{Tools: s.tools.Definitions()}, nil
}

func (s *Server) callTool(ctx context.Context, raw json.RawMessage) (any, *rpcError) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(raw, &params); err != nil || params.Name == "" {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid params: want {name, arguments}"}
	}

	start := time.Now()
	text, isErr := s.tools.Call(ctx, params.Name, params.Arguments)
	s.logger.Info("mcp: tool call",
		zap.String("tool", params.Name),
		zap.Bool("is_error", isErr),
		zap.Duration("took", time.Since(start)),
	)
	return toolCallResult{Content: []textContent{{Type: "text", Text: text}}, IsError: isErr}, nil
}

func (s *Server) reply(id json.RawMessage, result any, rerr *rpcError) {
	resp := rpcResponse{JSONRPC: "2.0", ID: id}
	if rerr != nil {
		resp.Error = rerr
	} else {
		resp.Result = result
	}

	s.outMu.Lock()
	defer s.outMu.Unlock()
	if err := s.out.Encode(resp); err != nil {
		s.logger.Error("mcp: write response", zap.Error(err))
	}
}
