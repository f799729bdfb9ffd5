// ============================================================
// RESULT PRESENTER - timed overlay per workflow
// ============================================================
package presenter

import (
	"log"
	"sync"
	"time"

	"attendance-kiosk/models"
)

// Sink receives every overlay change. It is called with the presenter lock
// held and must not call back into the Presenter.
type Sink interface {
	OverlayChanged(state models.OverlayState)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(state models.OverlayState)

func (f SinkFunc) OverlayChanged(state models.OverlayState) { f(state) }

type overlay struct {
	state     models.OverlayState
	presented time.Time
	timer     *time.Timer // single pending show or hide
}

type Presenter struct {
	showDelay time.Duration
	window    time.Duration
	sink      Sink

	mu       sync.Mutex
	overlays map[models.Workflow]*overlay
	closed   bool
}

// NewPresenter creates a presenter. Zero durations fall back to the defaults.
func NewPresenter(cfg models.OverlayConfig, sink Sink) *Presenter {
	p := &Presenter{
		showDelay: cfg.ShowDelay,
		window:    cfg.DisplayWindow,
		sink:      sink,
		overlays:  make(map[models.Workflow]*overlay),
	}
	if p.showDelay <= 0 {
		p.showDelay = models.DefaultOverlayShowDelay
	}
	if p.window <= 0 {
		p.window = models.DefaultOverlayWindow
	}
	return p
}

// Present replaces the workflow's overlay. Any pending show or hide of the
// previous presentation is cancelled.
func (p *Presenter) Present(workflow models.Workflow, outcome models.Outcome, text, detail string) {
	if outcome == models.OutcomeHidden {
		p.Hide(workflow)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	o := p.overlay(workflow)
	o.stop()
	o.state = models.OverlayState{
		Workflow: workflow,
		Outcome:  outcome,
		Icon:     outcome.Icon(),
		Text:     text,
		Detail:   detail,
		Seq:      o.state.Seq + 1,
	}
	o.presented = time.Now()
	p.notify(o)

	seq := o.state.Seq
	o.timer = time.AfterFunc(p.showDelay, func() { p.show(workflow, seq) })
}

// Hide hides the workflow's overlay now.
func (p *Presenter) Hide(workflow models.Workflow) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	o := p.overlay(workflow)
	o.stop()
	o.state = models.OverlayState{
		Workflow: workflow,
		Outcome:  models.OutcomeHidden,
		Seq:      o.state.Seq + 1,
	}
	p.notify(o)
}

// State returns the current overlay of workflow.
func (p *Presenter) State(workflow models.Workflow) models.OverlayState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o, ok := p.overlays[workflow]; ok {
		return o.state
	}
	return models.OverlayState{Workflow: workflow, Outcome: models.OutcomeHidden}
}

// Close cancels all pending timers. Later calls are ignored.
func (p *Presenter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, o := range p.overlays {
		o.stop()
	}
}

func (p *Presenter) show(workflow models.Workflow, seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	o := p.overlays[workflow]
	if p.closed || o == nil || o.state.Seq != seq {
		return
	}

	o.state.Visible = true
	p.notify(o)

	o.timer = nil
	if o.state.Outcome.InProgress() {
		return
	}

	// The window runs from Present, not from the show.
	remaining := p.window - time.Since(o.presented)
	if remaining <= 0 {
		o.state.Visible = false
		p.notify(o)
		return
	}
	o.timer = time.AfterFunc(remaining, func() { p.hide(workflow, seq) })
}

func (p *Presenter) hide(workflow models.Workflow, seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	o := p.overlays[workflow]
	if p.closed || o == nil || o.state.Seq != seq {
		return
	}

	o.timer = nil
	o.state.Visible = false
	p.notify(o)
}

func (p *Presenter) overlay(workflow models.Workflow) *overlay {
	o, ok := p.overlays[workflow]
	if !ok {
		o = &overlay{state: models.OverlayState{Workflow: workflow, Outcome: models.OutcomeHidden}}
		p.overlays[workflow] = o
	}
	return o
}

func (p *Presenter) notify(o *overlay) {
	s := o.state
	if s.Outcome != models.OutcomeHidden && !s.Visible {
		log.Printf("🪧 [%s] %s: %s %s", s.Workflow, s.Outcome, s.Text, s.Detail)
	}
	if p.sink != nil {
		p.sink.OverlayChanged(s)
	}
}

func (o *overlay) stop() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}
