// Package ui provides the Bubbletea progress view for batch runs.
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alnah/go-shadowing/internal/batch"
)

// FileStatus represents the processing state of a single file.
type FileStatus int

const (
	StatusQueued FileStatus = iota
	StatusRunning
	StatusDone
	StatusFailed
)

// FileProgress tracks one file of the batch.
type FileProgress struct {
	Input  string
	Output string
	Status FileStatus

	StartTime time.Time
	Elapsed   time.Duration

	Chunks    int
	Source    time.Duration
	Stretched time.Duration
	URL       string

	Err error
}

// Model is the Bubbletea model for the batch UI.
type Model struct {
	Files     []FileProgress
	Completed int
	Failed    int

	StartTime  time.Time
	Done       bool
	Cancelling bool

	// Width is the terminal width; zero until the first WindowSizeMsg.
	Width int

	cancel func()
	now    func() time.Time
}

// Option configures a Model.
type Option func(*Model)

// WithCancel sets the function called on the first Ctrl+C. The terminal is
// in raw mode while the UI runs, so the key never reaches the process as
// SIGINT.
func WithCancel(fn func()) Option {
	return func(m *Model) {
		m.cancel = fn
	}
}

// WithNow sets the clock (for testing).
func WithNow(fn func() time.Time) Option {
	return func(m *Model) {
		m.now = fn
	}
}

// NewModel creates a model with every job queued.
func NewModel(jobs []batch.Job, opts ...Option) Model {
	m := Model{
		Files:  make([]FileProgress, len(jobs)),
		cancel: func() {},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&m)
	}
	for i, j := range jobs {
		m.Files[i] = FileProgress{Input: j.Input, Output: j.Output}
	}
	m.StartTime = m.now()
	return m
}

// Init initializes the model. Progress arrives through Program.Send.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.Cancelling {
				return m, tea.Quit
			}
			m.Cancelling = true
			m.cancel()
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width

	case FileStartMsg:
		if f := m.file(msg.Index); f != nil {
			f.Status = StatusRunning
			f.StartTime = m.now()
		}

	case FileDoneMsg:
		f := m.file(msg.Result.Index)
		if f == nil {
			break
		}
		m.finish(f, msg.Result)

	case AllDoneMsg:
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) file(i int) *FileProgress {
	if i < 0 || i >= len(m.Files) {
		return nil
	}
	return &m.Files[i]
}

func (m *Model) finish(f *FileProgress, r batch.Result) {
	f.Elapsed = r.Elapsed
	f.URL = r.URL
	if r.Report != nil {
		f.Chunks = len(r.Report.Segmentation.Chunks)
		f.Source = r.Report.Source
		f.Stretched = r.Report.Length()
	}
	if r.Err != nil {
		f.Status = StatusFailed
		f.Err = r.Err
		m.Failed++
		return
	}
	f.Status = StatusDone
	m.Completed++
}

// View renders the UI.
func (m Model) View() string {
	if m.Done {
		return renderSummary(m)
	}
	return renderProcessingView(m)
}
