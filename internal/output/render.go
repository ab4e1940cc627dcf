package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"

	"github.com/frontend-bootcamp/reqstate/internal/observability"
	"github.com/frontend-bootcamp/reqstate/internal/tui"
)

// Renderer handles styled terminal output.
type Renderer struct {
	width  int
	styled bool // whether to emit ANSI styling
	locale Locale

	// Text styles
	Summary lipgloss.Style
	Muted   lipgloss.Style
	Data    lipgloss.Style
	Error   lipgloss.Style
	Hint    lipgloss.Style
	Success lipgloss.Style

	// Table styles
	Header    lipgloss.Style
	Cell      lipgloss.Style
	CellMuted lipgloss.Style
}

// NewRenderer creates a renderer with styles from the resolved theme.
// Styling is enabled when writing to a TTY, or when forceStyled is true.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	return NewRendererWithTheme(w, forceStyled, tui.ResolveTheme())
}

// NewRendererWithTheme creates a renderer with a specific theme (for testing).
func NewRendererWithTheme(w io.Writer, forceStyled bool, theme tui.Theme) *Renderer {
	width, isTTY := terminalInfo(w)
	styled := isTTY || forceStyled

	// lipgloss.NewRenderer does not carry the profile through in this
	// version, so the global profile is set instead.
	if styled {
		lipgloss.SetColorProfile(2) // TrueColor
	} else {
		lipgloss.SetColorProfile(0) // Ascii (no colors)
	}

	r := &Renderer{width: width, styled: styled, locale: DetectLocale()}

	plain := lipgloss.NewStyle()
	r.Summary, r.Muted, r.Data, r.Error, r.Hint, r.Success = plain, plain, plain, plain, plain, plain
	r.Header, r.Cell, r.CellMuted = plain, plain, plain
	if !styled {
		return r
	}

	// Dark variants: the background cannot be detected when piped.
	r.Summary = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Primary.Dark)).Bold(true)
	r.Muted = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted.Dark))
	r.Data = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Foreground.Dark))
	r.Error = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Error.Dark)).Bold(true)
	r.Hint = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted.Dark)).Italic(true)
	r.Success = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Success.Dark))
	r.Header = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Foreground.Dark)).Bold(true)
	r.Cell = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Foreground.Dark))
	r.CellMuted = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Muted.Dark))
	return r
}

// terminalInfo returns the terminal width and whether the writer is a TTY.
func terminalInfo(w io.Writer) (width int, isTTY bool) {
	width = 80

	if f, ok := w.(*os.File); ok {
		if w, _, err := term.GetSize(f.Fd()); err == nil && w >= 40 {
			width = w
		}
		isTTY = term.IsTerminal(f.Fd())
	}
	return width, isTTY
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.Summary.Render(resp.Summary))
		b.WriteString("\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data))

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n")
		r.renderBreadcrumbs(&b, resp.Breadcrumbs)
	}

	if stats, ok := extractStats(resp.Meta); ok {
		if parts := stats.FormatParts(); len(parts) > 0 {
			b.WriteString("\n")
			b.WriteString(r.Muted.Render("Stats: "+strings.Join(parts, " | ")) + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString(r.Error.Render("Error: " + resp.Error))
	b.WriteString("\n")
	for _, f := range resp.Fields {
		b.WriteString(r.Error.Render(fmt.Sprintf("  %s: %s", f.Field, f.Message)))
		b.WriteString("\n")
	}
	if resp.Hint != "" && len(resp.Fields) == 0 {
		b.WriteString(r.Hint.Render("Hint: " + resp.Hint))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderData(b *strings.Builder, data any) {
	p := classify(data)
	switch p.kind {
	case kindNone:
		b.WriteString(r.Muted.Render("(no data)") + "\n")
	case kindEmpty:
		b.WriteString(r.Muted.Render("(no results)") + "\n")
	case kindRows:
		r.renderTable(b, p.rows)
	case kindObject:
		r.renderObject(b, p.object)
	case kindList:
		for _, item := range p.list {
			b.WriteString(r.Data.Render("• "+formatCell(item)) + "\n")
		}
	default:
		b.WriteString(r.Data.Render(p.scalar) + "\n")
	}
}

type payloadKind int

const (
	kindNone payloadKind = iota
	kindEmpty
	kindRows
	kindObject
	kindList
	kindScalar
)

// payload is normalized response data sorted by how it renders.
type payload struct {
	kind   payloadKind
	rows   []map[string]any
	object map[string]any
	list   []any
	scalar string
}

func classify(data any) payload {
	switch d := data.(type) {
	case nil:
		return payload{kind: kindNone}
	case []map[string]any:
		if len(d) == 0 {
			return payload{kind: kindEmpty}
		}
		return payload{kind: kindRows, rows: d}
	case map[string]any:
		return payload{kind: kindObject, object: d}
	case []any:
		if len(d) == 0 {
			return payload{kind: kindEmpty}
		}
		if maps := toMapSlice(d); maps != nil {
			return payload{kind: kindRows, rows: maps}
		}
		return payload{kind: kindList, list: d}
	case string:
		return payload{kind: kindScalar, scalar: d}
	}
	return payload{kind: kindScalar, scalar: fmt.Sprintf("%v", data)}
}

// toMapSlice returns nil unless every element is an object.
func toMapSlice(slice []any) []map[string]any {
	if len(slice) == 0 {
		return nil
	}
	result := make([]map[string]any, 0, len(slice))
	for _, item := range slice {
		m, ok := item.(map[string]any)
		if !ok {
			return nil
		}
		result = append(result, m)
	}
	return result
}

// columnSpec controls how an entity field shows up in tables and objects.
// Lower priority sorts first and survives narrow terminals.
type columnSpec struct {
	priority int
	muted    bool
	hidden   bool // long text, left out of tables
}

var columnSpecs = map[string]columnSpec{
	"id":          {priority: 1, muted: true},
	"name":        {priority: 2},
	"title":       {priority: 2},
	"email":       {priority: 3},
	"completed":   {priority: 4},
	"price":       {priority: 4},
	"category":    {priority: 5},
	"page":        {priority: 6},
	"total_pages": {priority: 7},
	"body":        {priority: 9, hidden: true},
}

func specFor(key string) columnSpec {
	if cs, ok := columnSpecs[key]; ok {
		return cs
	}
	return columnSpec{priority: 50}
}

func isNested(v any) bool {
	switch v.(type) {
	case map[string]any, []map[string]any, []any:
		return true
	}
	return false
}

// sortKeys orders keys by column priority, then name.
func sortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := specFor(keys[i]).priority, specFor(keys[j]).priority
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
}

type column struct {
	key    string
	header string
	muted  bool
	width  int
}

// detectColumns picks the visible scalar columns of the first row.
func detectColumns(data []map[string]any) []column {
	if len(data) == 0 {
		return nil
	}
	var keys []string
	for key, val := range data[0] {
		if specFor(key).hidden || isNested(val) {
			continue
		}
		keys = append(keys, key)
	}
	sortKeys(keys)

	cols := make([]column, len(keys))
	for i, key := range keys {
		cols[i] = column{key: key, header: formatHeader(key), muted: specFor(key).muted}
	}
	return cols
}

// objectFields orders an object's scalar keys by column priority.
func objectFields(data map[string]any) []string {
	var keys []string
	for k, v := range data {
		if _, isMap := v.(map[string]any); isMap {
			continue
		}
		if _, isRows := v.([]map[string]any); isRows {
			continue
		}
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

const maxCellWidth = 40

func (r *Renderer) renderTable(b *strings.Builder, data []map[string]any) {
	columns := r.fitColumns(detectColumns(data), data)
	if len(columns) == 0 {
		return
	}

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.header
	}
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return r.Header
			case col < len(columns) && columns[col].muted:
				return r.CellMuted
			}
			return r.Cell
		})

	for _, item := range data {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = ansi.Truncate(r.formatValue(col.key, item[col.key]), maxCellWidth, "…")
		}
		t.Row(cells...)
	}

	b.WriteString(t.String() + "\n")
}

// fitColumns measures every column and drops the lowest-priority ones until
// the table fits the terminal. The first column always stays.
func (r *Renderer) fitColumns(cols []column, data []map[string]any) []column {
	const padding = 2
	total := 0
	for i := range cols {
		w := lipgloss.Width(cols[i].header)
		for _, row := range data {
			w = max(w, lipgloss.Width(r.formatValue(cols[i].key, row[cols[i].key])))
		}
		cols[i].width = min(w, maxCellWidth)
		total += cols[i].width + padding
	}
	for len(cols) > 1 && total > r.width {
		last := cols[len(cols)-1]
		total -= last.width + padding
		cols = cols[:len(cols)-1]
	}
	return cols
}

func (r *Renderer) renderObject(b *strings.Builder, data map[string]any) {
	keys := objectFields(data)
	if len(keys) == 0 {
		b.WriteString(r.Muted.Render("(no data)") + "\n")
		return
	}

	labelWidth := 0
	for _, k := range keys {
		labelWidth = max(labelWidth, len(formatHeader(k)))
	}

	for _, k := range keys {
		style := r.Data
		if specFor(k).muted {
			style = r.CellMuted
		}
		label := r.Muted.Render(fmt.Sprintf("%-*s: ", labelWidth, formatHeader(k)))
		b.WriteString(label + style.Render(r.formatValue(k, data[k])) + "\n")
	}
}

func (r *Renderer) renderBreadcrumbs(b *strings.Builder, crumbs []Breadcrumb) {
	b.WriteString(r.Muted.Render("Next:"))
	b.WriteString("\n")
	for _, bc := range crumbs {
		cmd := r.Muted.Render("  " + bc.Cmd)
		if bc.Description != "" {
			cmd += r.Muted.Render("  # " + bc.Description)
		}
		b.WriteString(cmd + "\n")
	}
}

func (r *Renderer) formatValue(key string, val any) string {
	return formatValue(r.locale, key, val)
}

// formatValue formats prices and counts with the locale, everything else
// with formatCell.
func formatValue(l Locale, key string, val any) string {
	f, ok := val.(float64)
	if !ok {
		return formatCell(val)
	}
	switch key {
	case "price":
		return l.FormatPrice(f)
	case "id", "page", "next_page", "total_pages":
		return formatCell(val)
	default:
		return l.FormatNumber(f)
	}
}

func formatHeader(key string) string {
	if key == "id" {
		return "ID"
	}
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		if v == float64(int(v)) {
			return fmt.Sprintf("%d", int(v))
		}
		return fmt.Sprintf("%.2f", v)
	case int, int64:
		return fmt.Sprintf("%d", v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				if name, ok := m["name"].(string); ok {
					items = append(items, name)
					continue
				}
				if title, ok := m["title"].(string); ok {
					items = append(items, title)
					continue
				}
			}
			items = append(items, formatCell(item))
		}
		return strings.Join(items, ", ")
	case map[string]any:
		if title, ok := v["title"].(string); ok {
			return title
		}
		if name, ok := v["name"].(string); ok {
			return name
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MarkdownRenderer outputs literal Markdown syntax (portable, pipeable).
type MarkdownRenderer struct {
	width  int
	locale Locale
}

// NewMarkdownRenderer creates a renderer for literal Markdown output.
func NewMarkdownRenderer(w io.Writer) *MarkdownRenderer {
	width, _ := terminalInfo(w)
	return &MarkdownRenderer{width: width, locale: DetectLocale()}
}

// RenderResponse renders a success response as literal Markdown.
func (r *MarkdownRenderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString("## " + resp.Summary + "\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data))

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n### Next\n\n")
		for _, bc := range resp.Breadcrumbs {
			line := "- `" + bc.Cmd + "`"
			if bc.Description != "" {
				line += ": " + bc.Description
			}
			b.WriteString(line + "\n")
		}
	}

	if stats, ok := extractStats(resp.Meta); ok {
		if parts := stats.FormatParts(); len(parts) > 0 {
			b.WriteString("\n*Stats: " + strings.Join(parts, " | ") + "*\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response as literal Markdown.
func (r *MarkdownRenderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString("**Error:** " + resp.Error + "\n")
	for _, f := range resp.Fields {
		b.WriteString("- `" + f.Field + "`: " + f.Message + "\n")
	}
	if resp.Hint != "" && len(resp.Fields) == 0 {
		b.WriteString("\n*Hint: " + resp.Hint + "*\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *MarkdownRenderer) renderData(b *strings.Builder, data any) {
	p := classify(data)
	switch p.kind {
	case kindNone:
		b.WriteString("*No data*\n")
	case kindEmpty:
		b.WriteString("*No results*\n")
	case kindRows:
		r.renderTable(b, p.rows)
	case kindObject:
		r.renderObject(b, p.object)
	case kindList:
		for _, item := range p.list {
			b.WriteString("- " + formatCell(item) + "\n")
		}
	default:
		b.WriteString(p.scalar + "\n")
	}
}

func (r *MarkdownRenderer) renderTable(b *strings.Builder, data []map[string]any) {
	cols := detectColumns(data)
	if len(cols) == 0 {
		return
	}

	headers := make([]string, len(cols))
	seps := make([]string, len(cols))
	for i, col := range cols {
		headers[i] = col.header
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")

	for _, item := range data {
		cells := make([]string, len(cols))
		for i, col := range cols {
			cells[i] = strings.ReplaceAll(formatValue(r.locale, col.key, item[col.key]), "|", "\\|")
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}

func (r *MarkdownRenderer) renderObject(b *strings.Builder, data map[string]any) {
	keys := objectFields(data)
	if len(keys) == 0 {
		b.WriteString("*No data*\n")
		return
	}
	for _, k := range keys {
		b.WriteString("- **" + formatHeader(k) + ":** " + formatValue(r.locale, k, data[k]) + "\n")
	}
}

// extractStats pulls session stats from response meta if present.
func extractStats(meta map[string]any) (observability.SessionMetrics, bool) {
	if meta == nil {
		return observability.SessionMetrics{}, false
	}
	stats, ok := meta["stats"].(observability.SessionMetrics)
	return stats, ok
}
