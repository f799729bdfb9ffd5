package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// espeak defaults: 175 words per minute, pitch 50 of 0..99, amplitude 100 of 0..200.
const (
	espeakBaseWPM   = 175
	espeakBasePitch = 50
	espeakBaseAmp   = 100
)

// EspeakSynthesizer speaks through the espeak-ng (or espeak) binary.
type EspeakSynthesizer struct {
	binary string
}

// NewEspeakSynthesizer returns a synthesizer for the first espeak binary on PATH.
func NewEspeakSynthesizer() (*EspeakSynthesizer, error) {
	for _, name := range []string{"espeak-ng", "espeak"} {
		if path, err := exec.LookPath(name); err == nil {
			return &EspeakSynthesizer{binary: path}, nil
		}
	}
	return nil, fmt.Errorf("espeak not found in PATH")
}

func (s *EspeakSynthesizer) Name() string { return "espeak" }

func (s *EspeakSynthesizer) Say(ctx context.Context, u Utterance) error {
	cmd := exec.CommandContext(ctx, s.binary, espeakArgs(u)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", s.binary, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// espeakArgs maps an utterance onto espeak command line flags.
func espeakArgs(u Utterance) []string {
	args := []string{}
	if u.Lang != "" {
		args = append(args, "-v", strings.ToLower(u.Lang))
	}
	args = append(args,
		"-s", strconv.Itoa(scale(u.Rate, espeakBaseWPM, 80, 450)),
		"-p", strconv.Itoa(scale(u.Pitch, espeakBasePitch, 0, 99)),
		"-a", strconv.Itoa(scale(u.Volume, espeakBaseAmp, 0, 200)),
		u.Text,
	)
	return args
}

func scale(factor float64, base, lo, hi int) int {
	v := int(factor*float64(base) + 0.5)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
