package main

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// SettingsStore is the per-instance settings capability handed to the plugin loop.
// Instances are keyed by the host's action context.
type SettingsStore interface {
	// Read returns the last known settings of an instance.
	Read(instance string) (CounterSettings, bool)
	// Write persists new settings for an instance.
	Write(ctx context.Context, instance string, s CounterSettings) error
}

// settingsObserver is implemented by stores that mirror what the host reports.
// The loop feeds it every snapshot that arrives attached to an event.
type settingsObserver interface {
	Observe(instance string, s CounterSettings)
	Forget(instance string)
}

// ============================================================================
// MemoryStore
// ============================================================================

// MemoryStore keeps settings in process memory only.
// Used directly in tests and as the mirror inside HostSettingsStore.
type MemoryStore struct {
	mu        sync.RWMutex
	instances map[string]CounterSettings
	writes    int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{instances: make(map[string]CounterSettings)}
}

func (m *MemoryStore) Read(instance string) (CounterSettings, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.instances[instance]
	return s, ok
}

func (m *MemoryStore) Write(ctx context.Context, instance string, s CounterSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[instance] = s
	m.writes++
	return nil
}

// Observe records a host-reported snapshot. It does not count as a write.
func (m *MemoryStore) Observe(instance string, s CounterSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[instance] = s
}

// Forget drops an instance from the store.
func (m *MemoryStore) Forget(instance string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.instances, instance)
}

// writeCount returns how many times Write succeeded. Test helper.
func (m *MemoryStore) writeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// instanceIDs returns the known instance ids, sorted. Test helper.
func (m *MemoryStore) instanceIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ============================================================================
// HostSettingsStore
// ============================================================================

// settingsWriter is the part of the host connection the store needs.
type settingsWriter interface {
	SetSettings(ctx context.Context, instance string, s CounterSettings) error
}

// HostSettingsStore persists through the host and mirrors the result locally
// so events that arrive without a snapshot (IPC) can still be reduced.
type HostSettingsStore struct {
	host   settingsWriter
	mirror *MemoryStore
}

// NewHostSettingsStore wraps a host connection.
func NewHostSettingsStore(host settingsWriter) *HostSettingsStore {
	return &HostSettingsStore{host: host, mirror: NewMemoryStore()}
}

func (h *HostSettingsStore) Read(instance string) (CounterSettings, bool) {
	return h.mirror.Read(instance)
}

// Write updates the mirror only after the host accepted the settings.
func (h *HostSettingsStore) Write(ctx context.Context, instance string, s CounterSettings) error {
	if h.host == nil {
		return errNoHost{}
	}
	if err := h.host.SetSettings(ctx, instance, s); err != nil {
		return fmt.Errorf("set settings: %w", err)
	}
	h.mirror.Observe(instance, s)
	return nil
}

func (h *HostSettingsStore) Observe(instance string, s CounterSettings) {
	h.mirror.Observe(instance, s)
}

func (h *HostSettingsStore) Forget(instance string) {
	h.mirror.Forget(instance)
}
