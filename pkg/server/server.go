// Package server exposes the pipeline as a single JSON-RPC tool over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/t3xtart/pkg/backend"
	"github.com/umputun/t3xtart/pkg/pipeline"
)

// protocol constants of the tool surface.
const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "t3xtart"
	ToolName        = "render_and_send"
	HealthText      = "t3xtart alive"
)

// json-rpc error codes.
const (
	codeParseError     = -32700
	codeInvalidParams  = -32602
	maxRequestBodySize = 1 << 20
)

//go:generate moq -out mocks/runner.go -pkg mocks -skip-ensure -fmt goimports . Runner

// Runner runs one request to a terminal status, e.g. pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, req backend.Request) pipeline.Status
}

// Config holds server configuration.
type Config struct {
	Address     string // listen address, e.g. ":8080"
	Version     string // reported in serverInfo
	Instruction string // master instruction, published as the response_container description
}

// Server handles tool calls over HTTP.
type Server struct {
	cfg        Config
	runner     Runner
	candidates backend.Candidates
	log        lgr.L
	srv        *http.Server
}

// NewServer makes a Server. candidates are passed to every run in their configured order.
func NewServer(cfg Config, runner Runner, candidates backend.Candidates, log lgr.L) *Server {
	if log == nil {
		log = lgr.NoOp
	}
	return &Server{cfg: cfg, runner: runner, candidates: candidates, log: log}
}

// Start begins listening for HTTP requests.
// blocks until ctx is canceled or the server fails.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	s.log.Logf("[INFO] listening on %s", s.cfg.Address)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("http server: %w", err)
}

// Handler returns the routes wrapped with CORS headers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/sse", s.handleRPC)
	return cors(mux)
}

// handleRoot answers health checks on GET and tool calls on POST.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method == http.MethodPost {
		s.handleRPC(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(HealthText))
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	Content []contentItem   `json:"content,omitempty"` // some hosts put generated text here
}

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

type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callParams struct {
	Name      string                     `json:"name"`
	Arguments map[string]json.RawMessage `json:"arguments"`
}

// handleRPC dispatches a json-rpc request. unknown methods get an empty result.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		s.log.Logf("[WARN] bad rpc request: %v", err)
		writeJSON(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error"}})
		return
	}

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": ServerName, "version": s.cfg.Version},
		}
	case "tools/list":
		resp.Result = map[string]any{"tools": []any{s.toolSchema()}}
	case "tools/call":
		result, rerr := s.callTool(r.Context(), req)
		resp.Result, resp.Error = result, rerr
	default:
		s.log.Logf("[DEBUG] method %q ignored", req.Method)
		resp.Result = map[string]any{}
	}
	writeJSON(w, resp)
}

// toolSchema describes render_and_send. the host is asked to put plan and art into
// response_container following the master instruction.
func (s *Server) toolSchema() map[string]any {
	return map[string]any{
		"name":        ToolName,
		"description": "Generate Text Art. Put EVERYTHING (Plan + Art) into 'response_container'.",
		"inputSchema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"user_request":       map[string]any{"type": "string"},
				"response_container": map[string]any{"type": "string", "description": s.cfg.Instruction},
			},
			"required": []string{"user_request", "response_container"},
		},
	}
}

// callTool runs the pipeline for one tools/call and maps its status to a tool result.
func (s *Server) callTool(ctx context.Context, req rpcRequest) (any, *rpcError) {
	var params callParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, &rpcError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}
		}
	}
	if params.Name != "" && params.Name != ToolName {
		return nil, &rpcError{Code: codeInvalidParams, Message: fmt.Sprintf("unknown tool %q", params.Name)}
	}

	request := stringArg(params.Arguments, "user_request")
	st := s.runner.Run(ctx, backend.Request{
		Subject:    request,
		Prefilled:  container(params.Arguments, req.Content),
		Candidates: s.candidates.All(),
	})

	text := st.Message
	if !st.Delivered() && st.Reason != "" {
		text += ": " + st.Reason
	}
	return map[string]any{
		"content": []contentItem{{Type: "text", Text: text}},
		"isError": !st.Delivered(),
	}, nil
}

// container returns the generated text the host passed in. without response_container the
// top-level text content entries are used, and as a last resort the arguments as JSON.
func container(args map[string]json.RawMessage, content []contentItem) string {
	if text := stringArg(args, "response_container"); text != "" {
		return text
	}

	var b strings.Builder
	for _, c := range content {
		if c.Type == "text" {
			b.WriteString(c.Text)
			b.WriteString("\n")
		}
	}
	if strings.TrimSpace(b.String()) != "" {
		return b.String()
	}

	if len(args) == 0 {
		return ""
	}
	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return string(data)
}

// stringArg returns a string argument, empty if missing or not a string.
func stringArg(args map[string]json.RawMessage, name string) string {
	raw, ok := args[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// cors allows any origin, preflight requests are answered directly.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
