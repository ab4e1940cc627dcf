package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/frontend-bootcamp/reqstate/internal/mockapi"
	"github.com/frontend-bootcamp/reqstate/internal/observability"
	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// =============================================================================
// Exit Codes Tests
// =============================================================================

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{CodeUsage, ExitUsage},
		{CodeNotFound, ExitNotFound},
		{CodeValidation, ExitValidation},
		{CodeServer, ExitServer},
		{CodeTimeout, ExitTimeout},
		{CodeCancelled, ExitCancelled},
		{CodeInternal, ExitInternal},
		{"unknown_code", ExitInternal}, // Unknown codes default to ExitInternal
		{"", ExitInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ExitCodeFor(tt.code); got != tt.expected {
				t.Errorf("ExitCodeFor(%q) = %d, want %d", tt.code, got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestErrorInterface(t *testing.T) {
	e := &Error{Code: CodeUsage, Message: "bad flag", Hint: "use --page"}
	if got := e.Error(); got != "bad flag: use --page" {
		t.Errorf("Error() = %q", got)
	}

	e = &Error{Code: CodeUsage, Message: "bad flag"}
	if got := e.Error(); got != "bad flag" {
		t.Errorf("Error() without hint = %q", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root")
	e := &Error{Code: CodeInternal, Message: "wrapped", Cause: cause}
	if !errors.Is(e, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestErrNotFound(t *testing.T) {
	e := ErrNotFound("user", "42")
	if e.Code != CodeNotFound {
		t.Errorf("Code = %q, want %q", e.Code, CodeNotFound)
	}
	if e.Message != "user not found: 42" {
		t.Errorf("Message = %q", e.Message)
	}
	if e.ExitCode() != ExitNotFound {
		t.Errorf("ExitCode() = %d, want %d", e.ExitCode(), ExitNotFound)
	}
}

func TestFromDomain(t *testing.T) {
	verr := &mockapi.ValidationError{
		Entity: "user",
		Fields: []mockapi.FieldError{{Field: "email", Message: "invalid email"}},
	}

	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"not found", fmt.Errorf("user 9: %w", mockapi.ErrNotFound), CodeNotFound, false},
		{"server", mockapi.ErrServer, CodeServer, true},
		{"validation", verr, CodeValidation, false},
		{"wrapped validation", fmt.Errorf("create: %w", verr), CodeValidation, false},
		{"timeout", request.ErrTimeout, CodeTimeout, true},
		{"deadline", context.DeadlineExceeded, CodeTimeout, true},
		{"cancelled", context.Canceled, CodeCancelled, false},
		{"closed", request.ErrClosed, CodeCancelled, false},
		{"other", errors.New("boom"), CodeInternal, false},
		{"passthrough", ErrUsage("bad"), CodeUsage, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := FromDomain(tt.err)
			if e.Code != tt.code {
				t.Errorf("Code = %q, want %q", e.Code, tt.code)
			}
			if e.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", e.Retryable, tt.retryable)
			}
		})
	}

	if FromDomain(nil) != nil {
		t.Error("FromDomain(nil) should be nil")
	}
}

func TestFromDomainValidationFields(t *testing.T) {
	verr := &mockapi.ValidationError{
		Entity: "user",
		Fields: []mockapi.FieldError{
			{Field: "name", Message: "is required"},
			{Field: "email", Message: "invalid email"},
		},
	}
	e := FromDomain(verr)
	if len(e.Fields) != 2 {
		t.Fatalf("Fields = %v, want 2 entries", e.Fields)
	}
	if e.Message != "Invalid user" {
		t.Errorf("Message = %q", e.Message)
	}
}

func TestFromDomainNotFoundMessage(t *testing.T) {
	e := FromDomain(fmt.Errorf("post 99: %w", mockapi.ErrNotFound))
	if e.Message != "Post 99: not found" {
		t.Errorf("Message = %q", e.Message)
	}
}

// =============================================================================
// Envelope Tests
// =============================================================================

func TestWriterOK(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})

	err := w.OK([]mockapi.User{{ID: 1, Name: "Ana García", Email: "ana@example.com"}},
		WithSummary("1 user"),
		WithBreadcrumbs(Breadcrumb{Action: "show", Cmd: "reqstate users show 1"}),
	)
	if err != nil {
		t.Fatalf("OK() error = %v", err)
	}

	var resp Response
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if !resp.OK {
		t.Error("ok should be true")
	}
	if resp.Summary != "1 user" {
		t.Errorf("summary = %q", resp.Summary)
	}
	if len(resp.Breadcrumbs) != 1 {
		t.Errorf("breadcrumbs = %v", resp.Breadcrumbs)
	}
}

func TestWriterErr(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf})

	verr := &mockapi.ValidationError{
		Entity: "product",
		Fields: []mockapi.FieldError{{Field: "price", Message: "must be >= 0"}},
	}
	if err := w.Err(verr); err != nil {
		t.Fatalf("Err() error = %v", err)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.OK {
		t.Error("ok should be false")
	}
	if resp.Code != CodeValidation {
		t.Errorf("code = %q, want %q", resp.Code, CodeValidation)
	}
	if len(resp.Fields) != 1 || resp.Fields[0].Field != "price" {
		t.Errorf("fields = %v", resp.Fields)
	}
}

func TestWriterQuietFormat(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatQuiet, Writer: &buf})

	if err := w.OK(map[string]any{"id": 1}, WithSummary("ignored")); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "summary") || strings.Contains(buf.String(), `"ok"`) {
		t.Errorf("quiet output should contain only data, got %s", buf.String())
	}
}

func TestWriterIDsFormat(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatIDs, Writer: &buf})

	if err := w.OK(mockapi.SeedTodos()); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "1\n2\n3\n4\n" {
		t.Errorf("ids output = %q", got)
	}
}

func TestWriterCountFormat(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatCount, Writer: &buf})

	if err := w.OK(mockapi.SeedProducts()); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "4" {
		t.Errorf("count = %q, want 4", got)
	}
}

func TestWriterJQ(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatAuto, Writer: &buf, JQ: ".data[] | select(.completed) | .title"})

	if err := w.OK(mockapi.SeedTodos()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	for _, l := range lines {
		if strings.HasPrefix(l, `"`) {
			t.Errorf("strings should print raw, got %q", l)
		}
	}
	if len(lines) == 0 || lines[0] == "" {
		t.Errorf("expected completed todo titles, got %q", buf.String())
	}
}

func TestWriterJQNonString(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf, JQ: ".data | length"})

	if err := w.OK([]int{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "3" {
		t.Errorf("jq result = %q, want 3", got)
	}
}

func TestWriterJQInvalidFilter(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatJSON, Writer: &buf, JQ: ".data["})

	err := w.OK(nil)
	var e *Error
	if !errors.As(err, &e) || e.Code != CodeUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestEffectiveFormat(t *testing.T) {
	var buf bytes.Buffer
	if got := New(Options{Writer: &buf}).EffectiveFormat(); got != FormatJSON {
		t.Errorf("auto on non-TTY = %v, want JSON", got)
	}
	if got := New(Options{Writer: &buf, Format: FormatMarkdown}).EffectiveFormat(); got != FormatMarkdown {
		t.Errorf("explicit format = %v, want Markdown", got)
	}
}

func TestParseFormat(t *testing.T) {
	for name, want := range map[string]Format{
		"":         FormatAuto,
		"json":     FormatJSON,
		"md":       FormatMarkdown,
		"markdown": FormatMarkdown,
		"styled":   FormatStyled,
		"quiet":    FormatQuiet,
	} {
		got, err := ParseFormat(name)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("ParseFormat(yaml) should fail")
	}
}

func TestNewWithNilWriter(t *testing.T) {
	w := New(Options{Format: FormatJSON})
	if w.Out() == nil {
		t.Error("nil writer should default to stdout")
	}
}

// =============================================================================
// NormalizeData Tests
// =============================================================================

func TestNormalizeDataWithStruct(t *testing.T) {
	data := NormalizeData([]mockapi.User{{ID: 1, Name: "Ana"}})
	rows, ok := data.([]map[string]any)
	if !ok {
		t.Fatalf("NormalizeData returned %T, want []map[string]any", data)
	}
	if rows[0]["name"] != "Ana" {
		t.Errorf("name = %v", rows[0]["name"])
	}
}

func TestNormalizeDataWithRawMessage(t *testing.T) {
	data := NormalizeData(json.RawMessage(`[{"id": 1}]`))
	if _, ok := data.([]map[string]any); !ok {
		t.Fatalf("NormalizeData returned %T", data)
	}
}

func TestNormalizeDataEmptySlice(t *testing.T) {
	data := NormalizeData([]mockapi.Todo{})
	rows, ok := data.([]map[string]any)
	if !ok || len(rows) != 0 {
		t.Fatalf("NormalizeData(empty) = %#v", data)
	}
}

func TestNormalizeDataWithNil(t *testing.T) {
	if NormalizeData(nil) != nil {
		t.Error("nil should stay nil")
	}
}

// =============================================================================
// Rendering Tests
// =============================================================================

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{true, "yes"},
		{false, "no"},
		{float64(3), "3"},
		{2.5, "2.50"},
		{[]any{"a", float64(1)}, "a, 1"},
		{[]any{map[string]any{"name": "Ana"}}, "Ana"},
		{map[string]any{"title": "Post"}, "Post"},
	}
	for _, tt := range tests {
		if got := formatCell(tt.in); got != tt.want {
			t.Errorf("formatCell(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatValueUsesLocale(t *testing.T) {
	en := NewLocale("en_US.UTF-8")
	if got := formatValue(en, "price", 1299.5); got != "1,299.50" {
		t.Errorf("en price = %q", got)
	}
	de := NewLocale("de_DE.UTF-8")
	if got := formatValue(de, "price", 1299.5); got != "1.299,50" {
		t.Errorf("de price = %q", got)
	}
	if got := formatValue(de, "id", float64(1234)); got != "1234" {
		t.Errorf("ids are not grouped: %q", got)
	}
}

func TestNewLocaleFallback(t *testing.T) {
	if got := NewLocale("").Tag().String(); got != "en-US" {
		t.Errorf("empty locale = %q, want en-US", got)
	}
}

func TestWriterMarkdownTable(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_NUMERIC", "")
	t.Setenv("LANG", "en_US.UTF-8")
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})

	if err := w.OK(mockapi.SeedProducts(), WithSummary("4 products")); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "## 4 products\n") {
		t.Errorf("missing summary heading:\n%s", out)
	}
	if !strings.Contains(out, "| ID | Name | Price | Category |") {
		t.Errorf("unexpected header order:\n%s", out)
	}
	if !strings.Contains(out, "999.00") {
		t.Errorf("price not formatted:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("markdown output should not contain ANSI escapes")
	}
}

func TestWriterMarkdownObjectAndError(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})

	if err := w.OK(mockapi.User{ID: 1, Name: "Ana García", Email: "ana@example.com"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "- **Name:** Ana García") {
		t.Errorf("object render:\n%s", buf.String())
	}

	buf.Reset()
	verr := &mockapi.ValidationError{Entity: "user", Fields: []mockapi.FieldError{{Field: "email", Message: "invalid email"}}}
	if err := w.Err(verr); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "- `email`: invalid email") {
		t.Errorf("field errors missing:\n%s", buf.String())
	}
}

func TestWriterMarkdownBreadcrumbsAndStats(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatMarkdown, Writer: &buf})

	stats := observability.SessionMetrics{Started: 2, Succeeded: 1, Dropped: map[string]int{"superseded": 1}}
	err := w.OK("done",
		WithBreadcrumbs(Breadcrumb{Cmd: "reqstate todos list", Description: "See todos"}),
		WithMeta("stats", stats),
	)
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "- `reqstate todos list`: See todos") {
		t.Errorf("breadcrumbs:\n%s", out)
	}
	if !strings.Contains(out, "*Stats: 2 requests | 1 ok | 1 dropped*") {
		t.Errorf("stats:\n%s", out)
	}
}

func TestWriterStyledEmitsANSI(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatStyled, Writer: &buf})

	if err := w.OK(mockapi.SeedUsers(), WithSummary("2 users")); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "\x1b[") {
		t.Error("styled output should contain ANSI escapes")
	}
	if !strings.Contains(out, "Ana García") {
		t.Errorf("styled output missing data:\n%s", out)
	}
}

func TestWriterStyledEmpty(t *testing.T) {
	var buf bytes.Buffer
	w := New(Options{Format: FormatStyled, Writer: &buf})

	if err := w.OK([]mockapi.Todo{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "(no results)") {
		t.Errorf("empty list:\n%s", buf.String())
	}
}

func TestFormatHeader(t *testing.T) {
	if got := formatHeader("total_pages"); got != "Total Pages" {
		t.Errorf("formatHeader = %q", got)
	}
}
