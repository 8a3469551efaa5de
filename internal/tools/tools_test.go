package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/vendora-ai/vendora/internal/vendorapi"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := vendorapi.NewClient("http://127.0.0.1:1", "example.test", logger)
	return NewRegistry(backend, nil, logger)
}

func TestRegistry_BuiltinsRegistered(t *testing.T) {
	r := newTestRegistry(t)

	want := []string{
		"auth_vendor",
		"capture_store_details",
		"capture_store_story",
		"create_product",
		"create_store",
		"generate_ai_image",
		"generate_product_edit_link",
		"generate_store_edit_link",
		"get_all_products",
		"get_product_by_id",
		"get_storefront_details",
		"get_storefront_link",
		"get_storefront_qr",
		"update_product",
		"upload_store_images",
	}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("got %d tools, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tool %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistry_CatalogStableOrder(t *testing.T) {
	r := newTestRegistry(t)

	catalog := r.Catalog()
	names := make([]string, len(catalog))
	for i, tool := range catalog {
		if tool.Type != "function" {
			t.Errorf("tool %d type %q", i, tool.Type)
		}
		if tool.Function.Parameters == nil {
			t.Errorf("tool %q has no parameters schema", tool.Function.Name)
		}
		names[i] = tool.Function.Name
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("catalog not sorted: %v", names)
	}
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Execute(context.Background(), "no_such_tool", `{}`)
	var unknown *UnknownToolError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownToolError, got %v", err)
	}
	if unknown.Name != "no_such_tool" {
		t.Errorf("name: %q", unknown.Name)
	}
}

func TestRegistry_ExecuteMarshalsResult(t *testing.T) {
	r := newTestRegistry(t)
	r.Register(&Tool{
		Name: "answer",
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return map[string]int{"value": 42}, nil
		},
	})

	got, err := r.Execute(context.Background(), "answer", "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got != `{"value":42}` {
		t.Errorf("got %q", got)
	}
}

func TestRegistry_ExecuteRejectsBadArgs(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Execute(context.Background(), "auth_vendor", `{not json`)
	if err == nil {
		t.Fatal("expected error for malformed arguments")
	}
}

func TestCategory_SchemaCarriesEnum(t *testing.T) {
	s := Category("").JSONSchema()
	if len(s.Enum) != len(BusinessCategories) {
		t.Fatalf("enum size: got %d, want %d", len(s.Enum), len(BusinessCategories))
	}
	var found bool
	for _, v := range s.Enum {
		if v == "Food, Beverages & Tobacco" {
			found = true
		}
	}
	if !found {
		t.Error("comma-bearing category missing from enum")
	}
}

func TestSchemaOf_RequiredAndOptionalFields(t *testing.T) {
	s := schemaOf(updateProductArgs{})

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	var decoded struct {
		Type       string          `json:"type"`
		Required   []string        `json:"required"`
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}
	if decoded.Type != "object" {
		t.Errorf("type: %q", decoded.Type)
	}
	if len(decoded.Required) != 2 {
		t.Errorf("required: %v", decoded.Required)
	}
	for _, name := range decoded.Required {
		if name != "product_id" && name != "auth_token" {
			t.Errorf("unexpected required field %q", name)
		}
	}
}

func TestConversationContext(t *testing.T) {
	ctx := WithConversationID(context.Background(), "telegram-5")
	if got := ConversationIDFromContext(ctx); got != "telegram-5" {
		t.Errorf("got %q", got)
	}
	if got := ConversationIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
	if NotifierFromContext(context.Background()) != nil {
		t.Error("expected nil notifier")
	}
}
