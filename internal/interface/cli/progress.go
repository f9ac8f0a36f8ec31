package cli

import (
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/yanqian/ai-notesum/internal/domain/summarizer"
	"github.com/yanqian/ai-notesum/internal/infra/notify"
)

// progress shows a spinner until the first edit arrives, then prints
// notifications as plain lines.
type progress struct {
	mu       sync.Mutex
	sp       *spinner.Spinner
	spinning bool
	term     *notify.TerminalNotifier
}

func newProgress(out io.Writer, enabled bool) *progress {
	p := &progress{term: notify.NewTerminalNotifier(out)}
	if enabled {
		p.sp = spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(out))
		p.sp.Suffix = "  Preparing..."
		p.sp.Color("cyan")
	}
	return p
}

func (p *progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sp == nil {
		return
	}
	p.sp.Start()
	p.spinning = true
}

// Stop halts the spinner. Safe to call repeatedly.
func (p *progress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *progress) stopLocked() {
	if p.spinning {
		p.sp.Stop()
		p.spinning = false
	}
}

// Notify implements summarizer.Notifier.
func (p *progress) Notify(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinning {
		p.sp.Lock()
		p.sp.Suffix = "  " + message
		p.sp.Unlock()
		return
	}
	p.term.Notify(message)
}

// NotifyError implements summarizer.Notifier. The command prints the
// returned error itself, so only the spinner is cleared here.
func (p *progress) NotifyError(error) {
	p.Stop()
}

var _ summarizer.Notifier = (*progress)(nil)
