package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/untoldecay/RuneEcho/internal/config"
	"github.com/untoldecay/RuneEcho/internal/indexer"
	"github.com/untoldecay/RuneEcho/internal/pipeline"
	"github.com/untoldecay/RuneEcho/internal/promote"
	"github.com/untoldecay/RuneEcho/internal/signals"
	"github.com/untoldecay/RuneEcho/internal/storage/sqlite"
	"github.com/untoldecay/RuneEcho/internal/types"
)

// ServerVersion mirrors the CLI version; main sets it before serving.
var ServerVersion = "0.0.0"

// maxFrameBytes bounds one request line.
const maxFrameBytes = 10 << 20

// Server handles tool calls against one store. The store connection is
// replaced whenever a pre-call reindex runs, so handlers always read the
// store and pipeline fields rather than caching them.
type Server struct {
	store    *sqlite.Store
	pipeline *pipeline.Pipeline
	talisman *config.TalismanLoader
	dbPath   string
	echoDir  string
}

// NewServer builds a server over an open store. configDir is the optional
// secondary talisman.yml search root.
func NewServer(store *sqlite.Store, dbPath, echoDir, configDir string) *Server {
	loader := config.NewTalismanLoader(echoDir, configDir)
	return &Server{
		store:    store,
		pipeline: pipeline.New(store, loader),
		talisman: loader,
		dbPath:   dbPath,
		echoDir:  echoDir,
	}
}

// Serve reads newline-delimited JSON-RPC frames from r until it closes.
// w carries only protocol frames; diagnostics belong on stderr. Requests
// are handled one at a time in arrival order. A frame over maxFrameBytes
// is drained and answered with a parse error; it never stops the loop.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := readFrame(br)
		if err == errFrameTooLarge {
			writeFrame(w, Response{
				JSONRPC: jsonrpcVersion,
				Error:   &Error{Code: codeParseError, Message: "frame too large"},
			})
			continue
		}
		if len(line) > 0 {
			if resp, ok := s.handleFrame(ctx, line); ok {
				writeFrame(w, resp)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

var errFrameTooLarge = errors.New("frame exceeds size limit")

// readFrame reads one newline-terminated frame, trimmed. A frame past
// maxFrameBytes is consumed to its terminating newline and reported as
// errFrameTooLarge. io.EOF may accompany a final unterminated frame.
func readFrame(br *bufio.Reader) ([]byte, error) {
	var buf []byte
	for {
		chunk, err := br.ReadSlice('\n')
		buf = append(buf, chunk...)
		if err == bufio.ErrBufferFull {
			if len(buf) > maxFrameBytes {
				return nil, drainFrame(br)
			}
			continue
		}
		if len(buf) > maxFrameBytes {
			return nil, errFrameTooLarge
		}
		return bytes.TrimSpace(buf), err
	}
}

// drainFrame discards the remainder of an oversized frame up to its
// newline so the reader is positioned at the next frame.
func drainFrame(br *bufio.Reader) error {
	for {
		_, err := br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			continue
		}
		return errFrameTooLarge
	}
}

// Close releases the store currently held by the server. The handle may
// differ from the one passed to NewServer after a reindex swap.
func (s *Server) Close() error {
	return s.store.Close()
}

// handleFrame parses one line and dispatches it. The bool is false for
// notifications, which get no reply.
func (s *Server) handleFrame(ctx context.Context, line []byte) (Response, bool) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{
			JSONRPC: jsonrpcVersion,
			Error:   &Error{Code: codeParseError, Message: "parse error"},
		}, true
	}
	if req.isNotification() {
		return Response{}, false
	}
	return s.handleRequest(ctx, &req), true
}

func (s *Server) handleRequest(ctx context.Context, req *Request) Response {
	resp := Response{JSONRPC: jsonrpcVersion, ID: req.ID}

	switch req.Method {
	case MethodInitialize:
		resp.Result = mustJSON(InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "echo-search", Version: ServerVersion},
		})
	case MethodPing:
		resp.Result = json.RawMessage(`{}`)
	case MethodToolsList:
		resp.Result = mustJSON(ToolsListResult{Tools: toolTable})
	case MethodToolsCall:
		var params CallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &Error{Code: codeInvalidParams, Message: "invalid params"}
			return resp
		}
		resp.Result = mustJSON(s.callTool(ctx, params.Name, params.Arguments))
	default:
		resp.Error = &Error{
			Code:    codeMethodNotFound,
			Message: fmt.Sprintf("method not found: %s", req.Method),
		}
	}
	return resp
}

// ensureFresh runs the pre-call contract for search and details: consume
// the dirty signal, then rebuild when it was present or the index is empty.
func (s *Server) ensureFresh(ctx context.Context) error {
	dirty := signals.Consume(s.echoDir)
	if !dirty {
		n, err := s.store.CountEntries(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
	_, err := s.reindexNow(ctx)
	return err
}

// reindexNow closes the serving connection, reopens it, and rebuilds the
// index on the fresh connection. The reopened store serves even when the
// rebuild itself fails, so one bad reindex cannot wedge the server.
func (s *Server) reindexNow(ctx context.Context) (*types.ReindexResult, error) {
	if err := s.store.Close(); err != nil {
		return nil, fmt.Errorf("closing store for reindex: %v", err)
	}
	store, err := sqlite.Open(ctx, s.dbPath)
	if err != nil {
		return nil, fmt.Errorf("reopening store: %v", err)
	}
	s.store = store
	s.pipeline = pipeline.New(store, s.talisman)

	ix := indexer.New(store, s.echoDir, promote.New(store, s.echoDir))
	return ix.Reindex(ctx)
}

// errorMessage flattens an error for the wire: configured paths are
// redacted and the text is capped at 200 characters.
func (s *Server) errorMessage(err error) string {
	msg := err.Error()
	for _, p := range []string{s.dbPath, s.echoDir} {
		if p != "" {
			msg = strings.ReplaceAll(msg, p, "...")
		}
	}
	if utf8.RuneCountInString(msg) > maxErrorChars {
		msg = string([]rune(msg)[:maxErrorChars])
	}
	return msg
}

func writeFrame(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = w.Write(data)
}

func mustJSON(v interface{}) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
