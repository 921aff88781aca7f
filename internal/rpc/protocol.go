// Package rpc exposes the echo store as a stdio tool server: newline-
// delimited JSON-RPC with initialize / tools/list / tools/call methods and
// six tools over search, details, reindex, stats, access, and groups.
package rpc

import "encoding/json"

const jsonrpcVersion = "2.0"

// protocolVersion is echoed back from initialize so hosts can gate on it.
const protocolVersion = "2024-11-05"

// Method names the server answers. Anything under notifications/ is
// consumed without a reply.
const (
	MethodInitialize = "initialize"
	MethodPing       = "ping"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
)

// Tool names.
const (
	ToolSearch       = "echo_search"
	ToolDetails      = "echo_details"
	ToolReindex      = "echo_reindex"
	ToolStats        = "echo_stats"
	ToolRecordAccess = "echo_record_access"
	ToolUpsertGroup  = "echo_upsert_group"
)

// Input limits. Limits clamp rather than reject: hosts pass model output
// through verbatim, and an off-range number should degrade, not fail.
const (
	defaultSearchLimit = 10
	minSearchLimit     = 1
	maxSearchLimit     = 50
	maxContextFiles    = 20
	maxIDsPerCall      = 50
	maxErrorChars      = 200
)

// Request is one incoming JSON-RPC message. A missing id marks a
// notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (r *Request) isNotification() bool {
	return len(r.ID) == 0
}

// Response is one outgoing JSON-RPC message. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the JSON-RPC error object for protocol-level failures. Tool
// execution failures use ToolResult.IsError instead.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// InitializeResult is the handshake reply.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// Capabilities advertises what the server offers; tools only.
type Capabilities struct {
	Tools struct{} `json:"tools"`
}

// ServerInfo names the server for host diagnostics.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Tool is one entry in the tools/list reply.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolsListResult wraps the tool table.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// CallParams are the tools/call parameters.
type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ContentBlock is one piece of tool output; payloads are JSON serialized
// into a text block.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the tools/call result. IsError marks tool execution
// failures, which travel in-band rather than as JSON-RPC errors.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// SearchArgs are the echo_search arguments.
type SearchArgs struct {
	Query        string   `json:"query"`
	Limit        int      `json:"limit,omitempty"`
	Layer        string   `json:"layer,omitempty"`
	Role         string   `json:"role,omitempty"`
	ContextFiles []string `json:"context_files,omitempty"`
}

// DetailsArgs are the echo_details arguments.
type DetailsArgs struct {
	IDs []string `json:"ids"`
}

// RecordAccessArgs are the echo_record_access arguments.
type RecordAccessArgs struct {
	EntryIDs []string `json:"entry_ids"`
	Query    string   `json:"query,omitempty"`
}

// UpsertGroupArgs are the echo_upsert_group arguments. GroupID is derived
// from the member set when absent.
type UpsertGroupArgs struct {
	EntryIDs     []string  `json:"entry_ids"`
	GroupID      string    `json:"group_id,omitempty"`
	Similarities []float64 `json:"similarities,omitempty"`
}

// toolTable is the static tools/list payload.
var toolTable = []Tool{
	{
		Name:        ToolSearch,
		Description: "Search memory entries across roles and layers. Returns ranked excerpts with per-factor score breakdowns.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "What to look for"},
				"limit": {"type": "integer", "minimum": 1, "maximum": 50, "default": 10},
				"layer": {"type": "string", "description": "Restrict to one layer: etched, inscribed, traced, notes, observations"},
				"role": {"type": "string", "description": "Restrict to one role"},
				"context_files": {"type": "array", "items": {"type": "string"}, "maxItems": 20, "description": "Files currently in focus; entries citing them rank higher"}
			},
			"required": ["query"]
		}`),
	},
	{
		Name:        ToolDetails,
		Description: "Fetch full entry content for ids returned by echo_search.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"ids": {"type": "array", "items": {"type": "string"}, "maxItems": 50, "description": "Entry ids from a previous search"}
			},
			"required": ["ids"]
		}`),
	},
	{
		Name:        ToolReindex,
		Description: "Rebuild the search index from the MEMORY.md files on disk.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
	},
	{
		Name:        ToolStats,
		Description: "Report entry totals by layer and role, access log size, and when the index was last rebuilt.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
	},
	{
		Name:        ToolRecordAccess,
		Description: "Mark entries as used so their access frequency and promotion eligibility rise.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"entry_ids": {"type": "array", "items": {"type": "string"}, "maxItems": 50},
				"query": {"type": "string", "description": "The query that surfaced these entries"}
			},
			"required": ["entry_ids"]
		}`),
	},
	{
		Name:        ToolUpsertGroup,
		Description: "Link entries into a semantic group used to widen future searches.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"entry_ids": {"type": "array", "items": {"type": "string"}, "maxItems": 50},
				"group_id": {"type": "string", "description": "Existing group to extend; omitted means derive one from the member set"},
				"similarities": {"type": "array", "items": {"type": "number"}, "description": "Per-entry similarity in [0,1], parallel to entry_ids"}
			},
			"required": ["entry_ids"]
		}`),
	},
}
