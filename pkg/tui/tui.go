package tui

import (
	"context"
)

// Renderer shows one event at a time. Close flushes and releases the terminal.
type Renderer interface {
	SetSpinner(title string)
	SetProgress(title string, percent float64)
	SetText(title string)
	Close()
}

type TUI struct {
	ctx      context.Context
	eventsCh chan Event
	renderer Renderer
}

func New(ctx context.Context, eventsCh chan Event, r Renderer) *TUI {
	return &TUI{ctx, eventsCh, r}
}

// Run dispatches events until ctx is done or the channel is closed.
func (t *TUI) Run() {
	defer t.renderer.Close()
	for {
		select {
		case <-t.ctx.Done():
			return

		case event, ok := <-t.eventsCh:
			if !ok {
				return
			}
			dispatch(t.renderer, event)
		}
	}
}

func dispatch(r Renderer, event Event) {
	switch event.eventType {
	case eventTypeSpin:
		r.SetSpinner(event.text)
	case eventTypeBar:
		r.SetProgress(event.text, event.percent)
	case eventTypeText:
		r.SetText(event.text)
	}
}
