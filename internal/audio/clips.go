package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var ErrNoClip = errors.New("no clip for phrase")

// clipPlayers are tried in order; the clip path is appended as last argument.
var clipPlayers = [][]string{
	{"paplay"},
	{"ogg123", "-q"},
	{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
}

// ClipSynthesizer plays pre-recorded clips matching the utterance text.
// Pitch and rate are baked into the recordings.
type ClipSynthesizer struct {
	library *AudioLibrary
	player  []string
}

func NewClipSynthesizer(library *AudioLibrary, player []string) *ClipSynthesizer {
	return &ClipSynthesizer{library: library, player: player}
}

// FindClipPlayer returns the first usable player command on PATH.
func FindClipPlayer() ([]string, error) {
	for _, p := range clipPlayers {
		if _, err := exec.LookPath(p[0]); err == nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no OGG player found in PATH")
}

func (c *ClipSynthesizer) Name() string { return "clips/" + c.player[0] }

func (c *ClipSynthesizer) Say(ctx context.Context, u Utterance) error {
	clip, ok := c.library.Get(u.Text)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoClip, u.Text)
	}

	// Bound playback in case the player hangs on a broken sink.
	ctx, cancel := context.WithTimeout(ctx, clip.Duration+2*time.Second)
	defer cancel()

	args := append(append([]string{}, c.player[1:]...), clip.Path)
	cmd := exec.CommandContext(ctx, c.player[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", c.player[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
