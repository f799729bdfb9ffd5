// ============================================================
// AUDIO LIBRARY - pre-recorded OGG Opus clips
// ============================================================
package audio

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// opusClockRate is the granule clock of every Ogg Opus stream.
const opusClockRate = 48000

// Clip is a registered audio file.
type Clip struct {
	Path     string
	Duration time.Duration
	Channels uint8
}

type AudioLibrary struct {
	sounds map[string]Clip // phrase -> clip
	mu     sync.RWMutex
}

func NewAudioLibrary() *AudioLibrary {
	return &AudioLibrary{
		sounds: make(map[string]Clip),
	}
}

// Register validates filePath as Ogg Opus and binds it to phrase.
func (al *AudioLibrary) Register(phrase, filePath string) error {
	clip, err := ProbeOGG(filePath)
	if err != nil {
		return err
	}

	al.mu.Lock()
	al.sounds[phrase] = clip
	al.mu.Unlock()

	log.Printf("📚 Registered clip: %q -> %s (%s)", phrase, filePath, clip.Duration)
	return nil
}

// Get returns the clip for phrase.
func (al *AudioLibrary) Get(phrase string) (Clip, bool) {
	al.mu.RLock()
	defer al.mu.RUnlock()
	clip, exists := al.sounds[phrase]
	return clip, exists
}

// List returns the registered phrases in sorted order.
func (al *AudioLibrary) List() []string {
	al.mu.RLock()
	defer al.mu.RUnlock()

	names := make([]string, 0, len(al.sounds))
	for name := range al.sounds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered clips.
func (al *AudioLibrary) Len() int {
	al.mu.RLock()
	defer al.mu.RUnlock()
	return len(al.sounds)
}

// ProbeOGG reads every page of an Ogg Opus file and returns its duration.
func ProbeOGG(filePath string) (Clip, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Clip{}, fmt.Errorf("cannot open file: %w", err)
	}
	defer file.Close()

	ogg, header, err := oggreader.NewWith(file)
	if err != nil {
		return Clip{}, fmt.Errorf("cannot create OGG reader: %w", err)
	}

	var lastGranule uint64
	for {
		_, pageHeader, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Clip{}, fmt.Errorf("read %s: %w", filePath, err)
		}
		if pageHeader.GranulePosition > lastGranule {
			lastGranule = pageHeader.GranulePosition
		}
	}

	samples := lastGranule
	if samples > uint64(header.PreSkip) {
		samples -= uint64(header.PreSkip)
	}

	return Clip{
		Path:     filePath,
		Duration: time.Duration(samples) * time.Second / opusClockRate,
		Channels: header.Channels,
	}, nil
}
