// Package audio handles microphone discovery, selection, and PCM recording.
package audio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	// ErrNoInputDevice indicates no capture device matched the request.
	ErrNoInputDevice = errors.New("no audio input device found")
	// ErrDeviceUnavailable indicates a matched device that cannot record right now.
	ErrDeviceUnavailable = errors.New("audio input device is unavailable")
	// ErrBackendUnavailable indicates the audio server or library could not be reached.
	ErrBackendUnavailable = errors.New("audio backend is unavailable")
)

// Device describes one input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

func (d Device) usable() bool { return d.Available && !d.Muted }

func (d Device) problem() string {
	if d.Muted {
		return "muted"
	}
	return "unavailable"
}

// Selection is the device to record from. Warning explains a fallback.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// deviceList resolves audio.input style terms: "" and "default" name the
// backend default; anything else matches an ID exactly, then a substring of
// the ID or description, case-insensitively.
type deviceList []Device

func (l deviceList) resolve(term string) (Device, bool) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || term == "default" {
		for _, d := range l {
			if d.Default {
				return d, true
			}
		}
		return Device{}, false
	}
	for _, d := range l {
		if strings.ToLower(d.ID) == term {
			return d, true
		}
	}
	for _, d := range l {
		if deviceMatches(d, term) {
			return d, true
		}
	}
	return Device{}, false
}

// closest names the device whose ID is nearest to term, for error hints.
func (l deviceList) closest(term string) string {
	best, bestDist := "", -1
	for _, d := range l {
		dist := levenshtein.ComputeDistance(strings.ToLower(term), strings.ToLower(d.ID))
		if bestDist < 0 || dist < bestDist {
			best, bestDist = d.ID, dist
		}
	}
	return best
}

// selectDeviceFromList applies audio.input then audio.fallback. A fallback
// is only consulted when the input resolves but cannot record.
func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	list := deviceList(devices)
	if len(list) == 0 {
		return Selection{}, ErrNoInputDevice
	}

	primary, ok := list.resolve(input)
	if !ok {
		if isNamed(input) {
			return Selection{}, fmt.Errorf("%w: audio.input %q did not match any device (closest: %q)",
				ErrNoInputDevice, strings.TrimSpace(input), list.closest(input))
		}
		return Selection{}, fmt.Errorf("%w: default source is not set", ErrNoInputDevice)
	}
	if primary.usable() {
		return Selection{Device: primary}, nil
	}

	alternate, ok := list.resolve(fallback)
	switch {
	case !ok && isNamed(fallback):
		return Selection{}, fmt.Errorf("%w: %q is %s and fallback %q not found",
			ErrDeviceUnavailable, primary.ID, primary.problem(), fallback)
	case !ok:
		return Selection{}, fmt.Errorf("%w: %q is %s and no usable fallback",
			ErrDeviceUnavailable, primary.ID, primary.problem())
	case !alternate.usable():
		return Selection{}, fmt.Errorf("%w: fallback %q is %s",
			ErrDeviceUnavailable, alternate.ID, alternate.problem())
	}

	return Selection{
		Device:   alternate,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, primary.problem(), alternate.ID),
		Fallback: alternate.ID != primary.ID,
	}, nil
}

func isNamed(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	return term != "" && term != "default"
}

// deviceMatches reports whether term (lowercase) is part of the device ID or
// description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}
