package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"

	"github.com/frontend-bootcamp/reqstate/internal/request"
)

// ViewConfig describes what a RequestView shows.
type ViewConfig[T any] struct {
	Title     string
	Container *request.Container[T]

	// Load returns the operation for page. Pages start at 1.
	Load func(page int) request.Op[T]
	// Render draws loaded data.
	Render func(data T, width int) string
	// Pages reports the page count of loaded data. Nil disables paging.
	Pages func(data T) int

	// Poll refetches on this interval when nothing is in flight.
	Poll time.Duration
	// Watch refetches when this file changes.
	Watch string
}

// ViewKeyMap defines the RequestView keybindings.
type ViewKeyMap struct {
	Refresh key.Binding
	Reset   key.Binding
	Prev    key.Binding
	Next    key.Binding
	Quit    key.Binding
}

// DefaultViewKeyMap returns the default RequestView keybindings.
func DefaultViewKeyMap() ViewKeyMap {
	return ViewKeyMap{
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Reset:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reset")),
		Prev:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev page")),
		Next:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next page")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp returns the bindings for the help line.
func (k ViewKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Reset, k.Prev, k.Next, k.Quit}
}

// FullHelp returns all bindings.
func (k ViewKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type (
	stateChangedMsg struct{}
	pollMsg         struct{}
	fileChangedMsg  struct{}
	watchErrMsg     struct{ err error }
)

// RequestView is a bubbletea model over one request container. Every
// key press and tick goes through the container, so superseded and stale
// results are dropped by it and never reach the screen.
type RequestView[T any] struct {
	cfg     ViewConfig[T]
	keys    ViewKeyMap
	help    help.Model
	spinner spinner.Model
	styles  *Styles

	state   request.State[T]
	page    int
	width   int
	notice  string
	changed chan struct{}
	unsub   func()
	watcher *fsnotify.Watcher
}

// NewRequestView subscribes to cfg.Container and, if cfg.Watch is set,
// starts watching the file. Call Close when done.
func NewRequestView[T any](cfg ViewConfig[T]) (*RequestView[T], error) {
	s := spinner.New()
	s.Spinner = spinner.MiniDot

	v := &RequestView[T]{
		cfg:     cfg,
		keys:    DefaultViewKeyMap(),
		help:    help.New(),
		spinner: s,
		styles:  NewStyles(),
		state:   cfg.Container.Get(),
		page:    1,
		width:   80,
		changed: make(chan struct{}, 1),
	}
	v.spinner.Style = v.styles.Loading.UnsetPadding()

	if cfg.Watch != "" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		// The directory is watched because writers replace the file.
		if err := w.Add(filepath.Dir(cfg.Watch)); err != nil {
			_ = w.Close()
			return nil, err
		}
		v.watcher = w
	}

	v.unsub = cfg.Container.Subscribe(func(request.State[T]) {
		select {
		case v.changed <- struct{}{}:
		default:
		}
	})
	return v, nil
}

// Close stops the subscription and the file watcher.
func (v *RequestView[T]) Close() error {
	v.unsub()
	if v.watcher != nil {
		return v.watcher.Close()
	}
	return nil
}

// Page returns the current page.
func (v *RequestView[T]) Page() int { return v.page }

// State returns the last state the view has drawn.
func (v *RequestView[T]) State() request.State[T] { return v.state }

func (v *RequestView[T]) Init() tea.Cmd {
	v.load()
	return tea.Batch(v.spinner.Tick, v.waitChange, v.pollTick(), v.fileCmd())
}

// load starts a request for the current page, superseding any in flight.
func (v *RequestView[T]) load() {
	v.cfg.Container.Run(v.cfg.Load(v.page))
}

func (v *RequestView[T]) waitChange() tea.Msg {
	<-v.changed
	return stateChangedMsg{}
}

func (v *RequestView[T]) pollTick() tea.Cmd {
	if v.cfg.Poll <= 0 {
		return nil
	}
	return tea.Tick(v.cfg.Poll, func(time.Time) tea.Msg { return pollMsg{} })
}

func (v *RequestView[T]) fileCmd() tea.Cmd {
	if v.watcher == nil {
		return nil
	}
	return v.waitFile
}

func (v *RequestView[T]) waitFile() tea.Msg {
	name := filepath.Clean(v.cfg.Watch)
	for {
		select {
		case ev, ok := <-v.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == name && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				return fileChangedMsg{}
			}
		case err, ok := <-v.watcher.Errors:
			if !ok {
				return nil
			}
			return watchErrMsg{err: err}
		}
	}
}

func (v *RequestView[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v, v.handleKey(msg)
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.help.Width = msg.Width
	case stateChangedMsg:
		v.state = v.cfg.Container.Get()
		return v, v.waitChange
	case pollMsg:
		if !v.cfg.Container.InFlight() {
			v.load()
		}
		return v, v.pollTick()
	case fileChangedMsg:
		v.notice = "data file changed"
		v.load()
		return v, v.fileCmd()
	case watchErrMsg:
		v.notice = "watch: " + msg.err.Error()
		return v, v.fileCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *RequestView[T]) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, v.keys.Quit):
		return tea.Quit
	case key.Matches(msg, v.keys.Refresh):
		v.notice = ""
		v.load()
	case key.Matches(msg, v.keys.Reset):
		v.notice = ""
		v.cfg.Container.Reset()
	case key.Matches(msg, v.keys.Prev):
		if v.cfg.Pages != nil && v.page > 1 {
			v.page--
			v.load()
		}
	case key.Matches(msg, v.keys.Next):
		if v.cfg.Pages != nil && v.page < v.lastPage() {
			v.page++
			v.load()
		}
	}
	return nil
}

// lastPage is the page count of the data on screen, unbounded while
// nothing has loaded yet.
func (v *RequestView[T]) lastPage() int {
	data, ok := request.PreviousOf(v.state)
	if !ok {
		return v.page + 1
	}
	return v.cfg.Pages(data)
}

func (v *RequestView[T]) View() string {
	var b strings.Builder

	header := v.styles.Title.Render(v.cfg.Title) + " " + v.styles.RenderStatus(v.state.Status())
	if v.cfg.Pages != nil {
		header += v.styles.Muted.Render(fmt.Sprintf(" page %d", v.page))
	}
	b.WriteString(header + "\n\n")

	body := request.Match(v.state, request.Cases[T, string]{
		Idle: func() string {
			return v.styles.Muted.Render("Nothing loaded. Press r to fetch.")
		},
		Loading: func(previous T, hasPrevious bool) string {
			line := v.spinner.View() + " Loading…"
			if hasPrevious {
				return line + "\n\n" + v.styles.Muted.Render(v.cfg.Render(previous, v.width))
			}
			return line
		},
		Succeeded: func(data T) string {
			return v.cfg.Render(data, v.width)
		},
		Failed: func(err error, previous T, hasPrevious bool) string {
			line := v.styles.RenderResult(false, err.Error())
			if hasPrevious {
				return line + "\n\n" + v.styles.Muted.Render(v.cfg.Render(previous, v.width))
			}
			return line
		},
	})
	b.WriteString(body + "\n")

	if v.notice != "" {
		b.WriteString("\n" + v.styles.Warning.Render(v.notice) + "\n")
	}
	b.WriteString("\n" + v.help.View(v.keys))
	return b.String()
}
