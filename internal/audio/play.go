// ============================================================
// VOICE FEEDBACK - spoken outcome for the kiosk
// ============================================================
package audio

import (
	"context"
	"log"
	"sync"

	"attendance-kiosk/models"
)

// Utterance is one spoken message.
type Utterance struct {
	Text   string
	Lang   string
	Rate   float64 // 1.0 = normal speed
	Pitch  float64 // 1.0 = normal pitch
	Volume float64 // 0..1
}

// Synthesizer speaks an utterance and blocks until it finished or ctx was
// cancelled.
type Synthesizer interface {
	Name() string
	Say(ctx context.Context, u Utterance) error
}

// Voice keeps at most one utterance audible: every Speak cancels the one in
// flight and the next one starts only after the previous has stopped.
type Voice struct {
	synth Synthesizer
	cfg   models.VoiceConfig

	mu          sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	currentText string
}

// NewVoice creates the voice channel. A nil synthesizer makes every Speak a
// silent no-op.
func NewVoice(synth Synthesizer, cfg models.VoiceConfig) *Voice {
	if synth != nil {
		log.Printf("🔊 Voice feedback via %s (%s)", synth.Name(), cfg.Lang)
	} else {
		log.Println("🔇 Voice feedback unavailable, continuing silently")
	}
	return &Voice{synth: synth, cfg: cfg}
}

// Available reports whether speech will actually be produced.
func (v *Voice) Available() bool {
	return v != nil && v.synth != nil
}

// Speak replaces whatever is being said with message. It never blocks on
// playback and never fails.
func (v *Voice) Speak(message string, positive bool) {
	if !v.Available() || message == "" {
		return
	}

	u := v.utterance(message, positive)

	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	prev := v.done
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	v.cancel = cancel
	v.done = done
	v.currentText = message
	v.mu.Unlock()

	go v.play(ctx, prev, done, u)
}

func (v *Voice) utterance(message string, positive bool) Utterance {
	pitch := v.cfg.PitchDn
	if positive {
		pitch = v.cfg.PitchUp
	}
	return Utterance{
		Text:   message,
		Lang:   v.cfg.Lang,
		Rate:   v.cfg.Rate,
		Pitch:  pitch,
		Volume: v.cfg.Volume,
	}
}

func (v *Voice) play(ctx context.Context, prev <-chan struct{}, done chan struct{}, u Utterance) {
	defer func() {
		v.mu.Lock()
		if v.done == done {
			v.cancel = nil
			v.done = nil
			v.currentText = ""
		}
		v.mu.Unlock()
		close(done)
	}()

	// The previous utterance was cancelled; wait until it is silent.
	if prev != nil {
		<-prev
	}
	if ctx.Err() != nil {
		return
	}

	log.Printf("🗣️  Speaking: %q (pitch %.1f)", u.Text, u.Pitch)
	if err := v.synth.Say(ctx, u); err != nil && ctx.Err() == nil {
		log.Printf("⚠️  Speech failed: %v", err)
	}
}

// Status returns what is currently being spoken.
func (v *Voice) Status() (isSpeaking bool, text string) {
	if v == nil {
		return false, ""
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.done != nil, v.currentText
}

// Stop silences the voice and waits for playback to end.
func (v *Voice) Stop() {
	if v == nil {
		return
	}
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	done := v.done
	v.mu.Unlock()

	if done != nil {
		<-done
	}
}
