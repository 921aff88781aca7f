package rpc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/untoldecay/RuneEcho/internal/pipeline"
	"github.com/untoldecay/RuneEcho/internal/types"
)

// callTool dispatches one tools/call. Tool failures come back as in-band
// error results; the JSON-RPC layer never sees them.
func (s *Server) callTool(ctx context.Context, name string, args json.RawMessage) ToolResult {
	var payload interface{}
	var err error

	switch name {
	case ToolSearch:
		payload, err = s.toolSearch(ctx, args)
	case ToolDetails:
		payload, err = s.toolDetails(ctx, args)
	case ToolReindex:
		payload, err = s.toolReindex(ctx)
	case ToolStats:
		payload, err = s.toolStats(ctx)
	case ToolRecordAccess:
		payload, err = s.toolRecordAccess(ctx, args)
	case ToolUpsertGroup:
		payload, err = s.toolUpsertGroup(ctx, args)
	default:
		err = fmt.Errorf("unknown tool: %s", name)
	}

	if err != nil {
		return errorResult(s.errorMessage(err))
	}
	return textResult(payload)
}

func (s *Server) toolSearch(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args SearchArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if err := s.ensureFresh(ctx); err != nil {
		return nil, err
	}

	results, err := s.pipeline.Search(ctx, pipeline.SearchRequest{
		Query:        args.Query,
		Limit:        clampLimit(args.Limit),
		Role:         args.Role,
		Layer:        args.Layer,
		ContextFiles: capList(args.ContextFiles, maxContextFiles),
	})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []types.SearchResult{}
	}
	return map[string]interface{}{"entries": results}, nil
}

func (s *Server) toolDetails(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args DetailsArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := s.ensureFresh(ctx); err != nil {
		return nil, err
	}

	entries, err := s.store.EntriesByIDs(ctx, capList(args.IDs, maxIDsPerCall))
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []types.Entry{}
	}
	return map[string]interface{}{"entries": entries}, nil
}

func (s *Server) toolReindex(ctx context.Context) (interface{}, error) {
	res, err := s.reindexNow(ctx)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Server) toolStats(ctx context.Context) (interface{}, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Server) toolRecordAccess(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args RecordAccessArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}

	ids := capList(args.EntryIDs, maxIDsPerCall)
	n, err := s.store.RecordAccess(ctx, ids, args.Query)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return map[string]interface{}{"recorded": n, "entry_ids": ids}, nil
}

func (s *Server) toolUpsertGroup(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args UpsertGroupArgs
	if err := unmarshalArgs(raw, &args); err != nil {
		return nil, err
	}
	ids := capList(args.EntryIDs, maxIDsPerCall)
	if len(ids) == 0 {
		return nil, fmt.Errorf("entry_ids is required")
	}

	groupID := args.GroupID
	if groupID == "" {
		groupID = derivedGroupID(ids)
	}
	n, err := s.store.UpsertGroup(ctx, groupID, ids, args.Similarities)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"group_id": groupID, "memberships": n, "entry_ids": ids}, nil
}

func unmarshalArgs(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %v", err)
	}
	return nil
}

// clampLimit maps the wire limit into [1,50]; absent means 10.
func clampLimit(n int) int {
	switch {
	case n == 0:
		return defaultSearchLimit
	case n < minSearchLimit:
		return minSearchLimit
	case n > maxSearchLimit:
		return maxSearchLimit
	default:
		return n
	}
}

func capList(list []string, max int) []string {
	if len(list) > max {
		return list[:max]
	}
	return list
}

// derivedGroupID builds a stable id from the member set, the same shape the
// grouper produces during reindex.
func derivedGroupID(entryIDs []string) string {
	ids := append([]string(nil), entryIDs...)
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

func textResult(payload interface{}) ToolResult {
	data, err := json.Marshal(payload)
	if err != nil {
		return errorResult("encoding response failed")
	}
	return ToolResult{Content: []ContentBlock{{Type: "text", Text: string(data)}}}
}

func errorResult(msg string) ToolResult {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return ToolResult{
		Content: []ContentBlock{{Type: "text", Text: string(data)}},
		IsError: true,
	}
}
