// Package camera abstracts the video source the check-in scanner reads
// QR codes from.  A Device hands out at most one Stream at a time; the
// stream owns every track it opened and releases them on Close.
package camera

import (
	"context"
	"errors"
	"image"
)

// Facing selects which camera to open.
type Facing int

const (
	FacingRear Facing = iota
	FacingFront
)

func (f Facing) String() string {
	if f == FacingFront {
		return "front"
	}
	return "rear"
}

var (
	// ErrBusy is returned by Acquire while another stream is open.
	ErrBusy = errors.New("camera: device busy")
	// ErrNoDevice is returned when there is nothing to capture from.
	ErrNoDevice = errors.New("camera: no device")
)

// Device opens exclusive streams.
type Device interface {
	Acquire(ctx context.Context, facing Facing) (Stream, error)
}

// Stream is an open capture session.  Frames is closed after Close.
// Close is idempotent and stops every track of the stream.
type Stream interface {
	Frames() <-chan image.Image
	Close() error
}
