package device

import (
	"errors"
	"testing"

	"camsync/internal/model"
)

func testRegistry() *Registry {
	return NewRegistry([]model.DeviceDescriptor{
		{InternalID: "DEVICE_A", DisplayName: "Front Door", AlternateID: "gh-a"},
		{InternalID: "DEVICE_B", DisplayName: "Backyard"},
	})
}

func TestResolveExact(t *testing.T) {
	dev, err := testRegistry().Resolve("front door")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if dev.InternalID != "DEVICE_A" {
		t.Fatalf("got %s", dev.InternalID)
	}
}

func TestResolveSubstring(t *testing.T) {
	dev, err := testRegistry().Resolve("Front")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if dev.InternalID != "DEVICE_A" {
		t.Fatalf("got %s", dev.InternalID)
	}
}

func TestResolveSubstringReversed(t *testing.T) {
	// Push name longer than the configured one.
	dev, err := testRegistry().Resolve("Backyard Camera")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if dev.InternalID != "DEVICE_B" {
		t.Fatalf("got %s", dev.InternalID)
	}
}

func TestResolveUnknown(t *testing.T) {
	_, err := testRegistry().Resolve("Garage")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestResolveEmptyName(t *testing.T) {
	_, err := testRegistry().Resolve("  ")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestReplaceSwapsDeviceSet(t *testing.T) {
	r := testRegistry()
	r.Replace([]model.DeviceDescriptor{
		{InternalID: "DEVICE_C", DisplayName: "Garage"},
	})
	if r.Len() != 1 {
		t.Fatalf("len: %d", r.Len())
	}
	dev, err := r.Resolve("Garage")
	if err != nil {
		t.Fatalf("resolve after replace: %v", err)
	}
	if dev.InternalID != "DEVICE_C" {
		t.Fatalf("got %s", dev.InternalID)
	}
	if _, err := r.Resolve("Front Door"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("replaced device should no longer resolve, got %v", err)
	}
}
