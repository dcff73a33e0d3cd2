// Package fprint is the public facade of the fingerprint driver core: driver
// registration and device-identity claiming (spec.md §6 "Device identity
// table"), open/close and the four acquisition operations, and the
// discovery-directory stored-print layout. It composes internal/device,
// internal/imgdev, internal/transport, internal/template, and
// internal/match the way guiperry-HASHER's top-level packages compose its
// internal/driver and internal/discovery layers, generalized from a single
// hardcoded Bitmain ASIC to a registry of sensor drivers.
package fprint

import (
	"context"
	"fmt"
	"sync"

	"fprint/internal/imgdev"
)

// VidPid is one (USB vendor, USB product) pair a driver claims.
type VidPid struct {
	Vendor  uint16
	Product uint16
}

// DiscoverFunc further refines or rejects a vendor/product match and
// assigns a 32-bit device type, matching libfprint's discover-hook
// convention (spec.md §6, SPEC_FULL.md §4.12).
type DiscoverFunc func(ctx context.Context, vendor, product uint16) (devtype uint32, ok bool, err error)

// Registration is what a concrete sensor driver supplies to RegisterDriver.
type Registration struct {
	// Name identifies the driver in diagnostics; not part of the wire
	// protocol.
	Name string
	// VidPids is the driver's device identity table (spec.md §6).
	VidPids []VidPid
	// Discover optionally refines a vendor/product match; nil accepts
	// every (vendor, product) in VidPids unconditionally with devtype 0.
	Discover DiscoverFunc
	// NewImageDriver builds a fresh imgdev.ImageDriver bound to the USB
	// device found at (vendor, product, devtype).
	NewImageDriver func(vendor, product uint16, devtype uint32) (imgdev.ImageDriver, error)
	// NewExtractor builds a fresh minutiae extractor for this driver's
	// acquisitions (NewMinutiaeExtractor builds one from the
	// internal/minutiae + internal/prune pipeline). Open installs no default
	// extractor when it is nil, so only Capture acquisitions, which do not
	// extract minutiae, work without one.
	NewExtractor func() imgdev.Extractor
}

var (
	registryMu sync.Mutex
	registry   []Registration
)

// RegisterDriver appends reg to the process-wide driver registry. Claiming
// iterates registrations in registration order — "the first registered
// driver whose table contains the device's (vendor, product)" (spec.md
// §6) — so call order matters exactly as libfprint's does.
func RegisterDriver(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, reg)
}

// resetRegistry clears the registry; used by tests to avoid cross-test
// leakage of package-level registration state.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = nil
}

// Claim finds the first registered driver whose VidPids contains (vendor,
// product), runs its optional Discover hook, and returns the matching
// Registration plus the resolved device type. ok is false if no
// registration claims the device.
func Claim(ctx context.Context, vendor, product uint16) (reg Registration, devtype uint32, ok bool, err error) {
	registryMu.Lock()
	candidates := append([]Registration(nil), registry...)
	registryMu.Unlock()

	for _, r := range candidates {
		if !r.claims(vendor, product) {
			continue
		}
		if r.Discover == nil {
			return r, 0, true, nil
		}
		dt, accepted, derr := r.Discover(ctx, vendor, product)
		if derr != nil {
			return Registration{}, 0, false, fmt.Errorf("discover %s: %w", r.Name, derr)
		}
		if !accepted {
			continue
		}
		return r, dt, true, nil
	}
	return Registration{}, 0, false, nil
}

func (r Registration) claims(vendor, product uint16) bool {
	for _, vp := range r.VidPids {
		if vp.Vendor == vendor && vp.Product == product {
			return true
		}
	}
	return false
}
