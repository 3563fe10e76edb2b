package entities

import (
	"fmt"
	"time"
)

// DeviceKind is the compute target a speech model runs on
type DeviceKind string

const (
	DeviceCPU         DeviceKind = "cpu"
	DeviceAccelerator DeviceKind = "cuda"
)

// Device is the compute target chosen at load time
type Device struct {
	Kind  DeviceKind `json:"kind"`
	Index int        `json:"index"`
}

// IsAccelerator reports whether inference runs on an accelerator
func (d Device) IsAccelerator() bool {
	return d.Kind == DeviceAccelerator
}

func (d Device) String() string {
	if d.IsAccelerator() {
		return fmt.Sprintf("%s:%d", d.Kind, d.Index)
	}
	return string(d.Kind)
}

// ModelStatus is the load outcome of a speech model
type ModelStatus string

const (
	ModelStatusLoaded ModelStatus = "loaded"
	ModelStatusFailed ModelStatus = "failed"
)

// TranscriptionModel describes the process-wide speech model handle.
// It is created once at startup and never mutated afterwards.
type TranscriptionModel struct {
	Identifier string      `json:"identifier"`
	Engine     string      `json:"engine"`
	Device     Device      `json:"device"`
	Status     ModelStatus `json:"status"`
	LoadedAt   time.Time   `json:"loaded_at"`
}

// AudioFile is a request-scoped temporary copy of an uploaded clip
type AudioFile struct {
	Path       string
	Filename   string
	Size       int64
	Format     string
	SampleRate int
	Channels   int
	Duration   time.Duration
}
