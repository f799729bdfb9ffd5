package camera

import (
	"log"
	"sync"

	"attendance-kiosk/models"
)

// ============================================================
// SESSION MANAGER
// ============================================================

// Manager hands out exactly one Session per surface.
type Manager struct {
	device   Device
	cfg      models.CameraConfig
	pool     *bufferPool
	onChange func(surface models.Surface, active bool)

	mu       sync.Mutex
	sessions map[models.Surface]*Session
}

func NewManager(device Device, cfg models.CameraConfig) *Manager {
	return &Manager{
		device:   device,
		cfg:      cfg,
		pool:     newBufferPool(),
		sessions: make(map[models.Surface]*Session),
	}
}

// SetObserver registers a callback for stream activation changes. It only
// affects sessions created afterwards. fn runs with the session lock held
// and must not call back into the session.
func (m *Manager) SetObserver(fn func(surface models.Surface, active bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Session returns the session for surface, creating it on first use.
func (m *Manager) Session(surface models.Surface) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[surface]; ok {
		return s
	}
	s := newSession(surface, m.device, m.cfg.For(surface), m.pool)
	s.onChange = m.onChange
	m.sessions[surface] = s
	return s
}

// ReleaseAll stops every active stream.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Release(); err != nil {
			log.Printf("⚠️  [%s] Release failed: %v", s.Surface(), err)
		}
	}
}
