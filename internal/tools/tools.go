// Package tools defines the tools the model may invoke.
//
// The registry maps tool names to handlers and exposes the parameter
// schema catalog sent to the model. The set of tools is fixed at
// startup; handlers decode their own typed argument structs from the
// raw arguments JSON the model supplies.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vendora-ai/vendora/internal/imagegen"
	"github.com/vendora-ai/vendora/internal/llm"
	"github.com/vendora-ai/vendora/internal/vendorapi"
)

// Handler executes one tool call. The returned value is serialized to
// JSON and becomes the tool-result message content.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is one callable tool.
type Tool struct {
	Name        string
	Description string
	Parameters  any
	Handler     Handler
}

// UnknownToolError reports a model request for a tool that is not
// registered. The loop feeds it back to the model as an error payload
// rather than failing the turn.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// Registry holds the available tools.
type Registry struct {
	tools   map[string]*Tool
	backend *vendorapi.Client
	images  *imagegen.Manager
	logger  *slog.Logger
}

// NewRegistry creates the registry with the full commerce tool set.
func NewRegistry(backend *vendorapi.Client, images *imagegen.Manager, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:   make(map[string]*Tool),
		backend: backend,
		images:  images,
		logger:  logger,
	}
	r.registerBuiltins()
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog returns the tool schemas in the model's wire format, sorted
// by name so the catalog is stable across calls.
func (r *Registry) Catalog() []llm.Tool {
	catalog := make([]llm.Tool, 0, len(r.tools))
	for _, name := range r.Names() {
		t := r.tools[name]
		catalog = append(catalog, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return catalog
}

// Execute runs a tool by name with the raw arguments JSON and returns
// the JSON-serialized result. An unregistered name yields
// *UnknownToolError; handler failures are returned as-is.
func (r *Registry) Execute(ctx context.Context, name, argsJSON string) (string, error) {
	tool := r.tools[name]
	if tool == nil {
		return "", &UnknownToolError{Name: name}
	}

	raw := json.RawMessage(argsJSON)
	if argsJSON == "" {
		raw = json.RawMessage("{}")
	}

	result, err := tool.Handler(ctx, raw)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal %s result: %w", name, err)
	}
	return string(data), nil
}

// decodeArgs unmarshals the model-supplied arguments into a typed
// struct, rejecting malformed JSON with a handler-level error.
func decodeArgs[T any](raw json.RawMessage) (T, error) {
	var args T
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}
