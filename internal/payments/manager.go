package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mvickers/tradepost-backend/pkg/logger"
)

// Factory builds one concrete driver. Factories run lazily on first use
// so an unconfigured provider never costs a connection at startup.
type Factory func() (Driver, error)

// Manager resolves drivers by configuration key and memoizes them. An
// unknown or empty key resolves to the NullDriver so the rest of the
// system runs unchanged in "payments disabled" mode.
type Manager struct {
	mu        sync.Mutex
	factories map[string]Factory
	drivers   map[string]Driver
	fallback  Driver
	logg      *logger.Logger
}

// NewManager builds an empty manager. Register factories before resolving.
func NewManager(logg *logger.Logger) *Manager {
	return &Manager{
		factories: make(map[string]Factory),
		drivers:   make(map[string]Driver),
		fallback:  NewNullDriver(),
		logg:      logg,
	}
}

// Register adds a named driver factory. Later registrations win.
func (m *Manager) Register(name string, factory Factory) {
	if factory == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[normalizeDriverName(name)] = factory
}

// Driver returns the memoized driver for the key, building it on first
// use. Unknown keys and factory failures fall back to the NullDriver.
func (m *Manager) Driver(ctx context.Context, name string) Driver {
	key := normalizeDriverName(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if driver, ok := m.drivers[key]; ok {
		return driver
	}

	factory, ok := m.factories[key]
	if !ok {
		if m.logg != nil && key != "" {
			m.logg.Warn(m.logg.WithField(ctx, "driver", key), "unknown payment driver, using null driver")
		}
		m.drivers[key] = m.fallback
		return m.fallback
	}

	driver, err := factory()
	if err != nil {
		if m.logg != nil {
			m.logg.Error(m.logg.WithField(ctx, "driver", key), "building payment driver failed, using null driver", err)
		}
		m.drivers[key] = m.fallback
		return m.fallback
	}
	if driver == nil {
		driver = m.fallback
	}

	m.drivers[key] = driver
	if m.logg != nil {
		m.logg.Info(m.logg.WithField(ctx, "driver", key), fmt.Sprintf("payment driver %q initialized", driver.Name()))
	}
	return driver
}

func normalizeDriverName(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}
