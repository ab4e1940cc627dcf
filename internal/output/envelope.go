package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/x/term"

	"github.com/frontend-bootcamp/reqstate/internal/mockapi"
)

// Response is the success envelope for JSON output.
type Response struct {
	OK          bool           `json:"ok"`
	Data        any            `json:"data,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Breadcrumbs []Breadcrumb   `json:"breadcrumbs,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Breadcrumb is a suggested follow-up command.
type Breadcrumb struct {
	Action      string `json:"action"`
	Cmd         string `json:"cmd"`
	Description string `json:"description"`
}

// ErrorResponse is the error envelope. Fields lists rejected payload fields
// for validation errors.
type ErrorResponse struct {
	OK     bool                 `json:"ok"`
	Error  string               `json:"error"`
	Code   string               `json:"code"`
	Hint   string               `json:"hint,omitempty"`
	Fields []mockapi.FieldError `json:"fields,omitempty"`
}

// Format specifies the output format.
type Format int

const (
	FormatAuto     Format = iota // styled on a terminal, JSON otherwise
	FormatJSON
	FormatMarkdown // literal Markdown, safe to pipe
	FormatStyled   // ANSI styling even when piped
	FormatQuiet    // data only, no envelope
	FormatIDs
	FormatCount
)

var formatNames = []struct {
	format Format
	names  []string
}{
	{FormatAuto, []string{"auto", ""}},
	{FormatJSON, []string{"json"}},
	{FormatMarkdown, []string{"markdown", "md"}},
	{FormatStyled, []string{"styled"}},
	{FormatQuiet, []string{"quiet"}},
	{FormatIDs, []string{"ids"}},
	{FormatCount, []string{"count"}},
}

func (f Format) String() string {
	for _, fn := range formatNames {
		if fn.format == f {
			return fn.names[0]
		}
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat maps a config format name to a Format.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var valid []string
	for _, fn := range formatNames {
		if slices.Contains(fn.names, s) {
			return fn.format, nil
		}
		valid = append(valid, fn.names[0])
	}
	return FormatAuto, ErrUsageHint(fmt.Sprintf("unknown format %q", s), "Use one of: "+strings.Join(valid, ", "))
}

// Options controls output behavior.
type Options struct {
	Format Format
	Writer io.Writer
	// JQ filters JSON output through a jq expression.
	JQ string
}

// DefaultOptions writes auto-detected output to stdout.
func DefaultOptions() Options {
	return Options{Format: FormatAuto, Writer: os.Stdout}
}

// Writer renders envelopes in the configured format.
type Writer struct {
	opts Options
}

// New creates a Writer. A nil Options.Writer means stdout.
func New(opts Options) *Writer {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	return &Writer{opts: opts}
}

// Out returns the destination writer.
func (w *Writer) Out() io.Writer { return w.opts.Writer }

// EffectiveFormat resolves FormatAuto against the destination. A jq filter
// always means JSON.
func (w *Writer) EffectiveFormat() Format {
	switch {
	case w.opts.Format != FormatAuto:
		return w.opts.Format
	case w.opts.JQ == "" && isTerminal(w.opts.Writer):
		return FormatStyled
	default:
		return FormatJSON
	}
}

// OK writes a success envelope around data.
func (w *Writer) OK(data any, opts ...ResponseOption) error {
	resp := &Response{OK: true, Data: data}
	for _, opt := range opts {
		opt(resp)
	}
	return w.write(resp)
}

// Err writes an error envelope. Plain errors are classified with FromDomain.
func (w *Writer) Err(err error) error {
	e := FromDomain(err)
	return w.write(&ErrorResponse{
		Error:  e.Message,
		Code:   e.Code,
		Hint:   e.Hint,
		Fields: e.Fields,
	})
}

func (w *Writer) write(v any) error {
	resp, isSuccess := v.(*Response)

	switch w.EffectiveFormat() {
	case FormatQuiet:
		if isSuccess {
			return w.writeJSON(resp.Data)
		}
	case FormatIDs:
		if isSuccess {
			return w.writeIDs(resp.Data)
		}
	case FormatCount:
		if isSuccess {
			_, err := fmt.Fprintln(w.opts.Writer, countOf(resp.Data))
			return err
		}
	case FormatMarkdown:
		return w.render(NewMarkdownRenderer(w.opts.Writer), v)
	case FormatStyled:
		return w.render(NewRenderer(w.opts.Writer, true), v)
	}
	return w.writeJSON(v)
}

// envelopeRenderer is satisfied by both the styled and Markdown renderers.
type envelopeRenderer interface {
	RenderResponse(io.Writer, *Response) error
	RenderError(io.Writer, *ErrorResponse) error
}

func (w *Writer) render(r envelopeRenderer, v any) error {
	switch resp := v.(type) {
	case *Response:
		return r.RenderResponse(w.opts.Writer, resp)
	case *ErrorResponse:
		return r.RenderError(w.opts.Writer, resp)
	}
	return w.writeJSON(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

func (w *Writer) writeJSON(v any) error {
	if w.opts.JQ != "" {
		return w.writeJQ(v)
	}
	enc := json.NewEncoder(w.opts.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeIDs prints the id of every record in data, one per line.
func (w *Writer) writeIDs(data any) error {
	var records []map[string]any
	switch d := NormalizeData(data).(type) {
	case []map[string]any:
		records = d
	case map[string]any:
		records = []map[string]any{d}
	}
	for _, rec := range records {
		id, ok := rec["id"]
		if !ok {
			continue
		}
		if _, err := fmt.Fprintln(w.opts.Writer, formatCell(id)); err != nil {
			return err
		}
	}
	return nil
}

// countOf is the number of items in a list payload; anything else counts
// as one.
func countOf(data any) int {
	switch d := NormalizeData(data).(type) {
	case []any:
		return len(d)
	case []map[string]any:
		return len(d)
	}
	return 1
}

// NormalizeData converts typed payloads to generic JSON values so renderers
// can treat every entity alike. Lists of objects become []map[string]any.
func NormalizeData(data any) any {
	switch d := data.(type) {
	case nil, []map[string]any, map[string]any:
		return data
	case []any:
		return normalizeList(d)
	case json.RawMessage:
		var v any
		if err := json.Unmarshal(d, &v); err != nil {
			return data
		}
		return NormalizeData(v)
	}

	v, err := toJSONValue(data)
	if err != nil {
		return data
	}
	if list, ok := v.([]any); ok {
		return normalizeList(list)
	}
	return v
}

func normalizeList(list []any) any {
	if len(list) == 0 {
		return []map[string]any{}
	}
	if maps := toMapSlice(list); maps != nil {
		return maps
	}
	return list
}

// toJSONValue round-trips v through encoding/json.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResponseOption modifies a Response.
type ResponseOption func(*Response)

// WithSummary sets the one-line summary.
func WithSummary(s string) ResponseOption {
	return func(r *Response) { r.Summary = s }
}

// WithBreadcrumbs appends follow-up commands.
func WithBreadcrumbs(b ...Breadcrumb) ResponseOption {
	return func(r *Response) { r.Breadcrumbs = append(r.Breadcrumbs, b...) }
}

// WithMeta sets one metadata key.
func WithMeta(key string, value any) ResponseOption {
	return func(r *Response) {
		if r.Meta == nil {
			r.Meta = make(map[string]any)
		}
		r.Meta[key] = value
	}
}
