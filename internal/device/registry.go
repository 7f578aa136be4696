// Package device resolves camera identity across the two source ID spaces.
package device

import (
	"errors"
	"strings"
	"sync"

	"camsync/internal/model"
)

var ErrDeviceNotFound = errors.New("device not found")

type Registry struct {
	mu      sync.RWMutex
	devices []model.DeviceDescriptor
}

func NewRegistry(devices []model.DeviceDescriptor) *Registry {
	return &Registry{devices: devices}
}

// Replace swaps the device set, so a config reload takes effect without a
// restart. Events in flight keep the descriptor they already resolved.
func (r *Registry) Replace(devices []model.DeviceDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = devices
}

func (r *Registry) All() []model.DeviceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.DeviceDescriptor, len(r.devices))
	copy(out, r.devices)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Resolve maps a push-feed display name onto a configured device. The two
// feeds do not agree on device naming, so matching is case-insensitive:
// exact matches win, then substring matches in either direction ("Front"
// resolves to "Front Door").
func (r *Registry) Resolve(name string) (model.DeviceDescriptor, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return model.DeviceDescriptor{}, ErrDeviceNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, dev := range r.devices {
		if strings.ToLower(dev.DisplayName) == needle {
			return dev, nil
		}
	}
	for _, dev := range r.devices {
		configured := strings.ToLower(dev.DisplayName)
		if strings.Contains(configured, needle) || strings.Contains(needle, configured) {
			return dev, nil
		}
	}
	return model.DeviceDescriptor{}, ErrDeviceNotFound
}

// ByInternalID looks a device up by its primary id.
func (r *Registry) ByInternalID(id string) (model.DeviceDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, dev := range r.devices {
		if dev.InternalID == id {
			return dev, nil
		}
	}
	return model.DeviceDescriptor{}, ErrDeviceNotFound
}
