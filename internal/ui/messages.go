package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alnah/go-shadowing/internal/batch"
)

// FileStartMsg indicates a worker picked up a file.
type FileStartMsg struct {
	Index int
}

// FileDoneMsg indicates a file finished, successfully or not.
type FileDoneMsg struct {
	Result batch.Result
}

// AllDoneMsg indicates every file has a result.
type AllDoneMsg struct{}

// Forward returns a batch event callback that delivers events to send,
// typically (*tea.Program).Send.
func Forward(send func(tea.Msg)) func(batch.Event) {
	return func(e batch.Event) {
		switch e.Kind {
		case batch.EventStarted:
			send(FileStartMsg{Index: e.Job.Index})
		case batch.EventFinished:
			if e.Result != nil {
				send(FileDoneMsg{Result: *e.Result})
			}
		}
	}
}
