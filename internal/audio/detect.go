package audio

import (
	"log"
	"path/filepath"

	"attendance-kiosk/models"
)

// Detect picks a synthesizer for cfg.Backend. It returns nil when speech is
// disabled or nothing usable is installed.
func Detect(cfg models.VoiceConfig) Synthesizer {
	switch cfg.Backend {
	case "off":
		return nil
	case "espeak":
		return espeakOrNil()
	case "clips":
		return clipsOrNil(cfg)
	default:
		if s := espeakOrNil(); s != nil {
			return s
		}
		return clipsOrNil(cfg)
	}
}

func espeakOrNil() Synthesizer {
	s, err := NewEspeakSynthesizer()
	if err != nil {
		log.Printf("⚠️  %v", err)
		return nil
	}
	return s
}

func clipsOrNil(cfg models.VoiceConfig) Synthesizer {
	if cfg.ClipsDir == "" || len(cfg.Clips) == 0 {
		return nil
	}
	player, err := FindClipPlayer()
	if err != nil {
		log.Printf("⚠️  %v", err)
		return nil
	}

	library := NewAudioLibrary()
	for phrase, file := range cfg.Clips {
		if err := library.Register(phrase, filepath.Join(cfg.ClipsDir, file)); err != nil {
			log.Printf("⚠️  Skipping clip %q: %v", phrase, err)
		}
	}
	if library.Len() == 0 {
		return nil
	}
	return NewClipSynthesizer(library, player)
}
