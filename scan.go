package serial

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ArduinoManufacturer is the manufacturer substring that identifies a board.
const ArduinoManufacturer = "Arduino"

// ErrNotFound is returned by Scan when no port matches.
var ErrNotFound = errors.New("serial: no matching port found")

// ScanError reports that the host port list could not be read.
type ScanError struct {
	Err error
}

func (e *ScanError) Error() string {
	return "serial: list ports: " + e.Err.Error()
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// PortDescriptor describes one serial port visible on the host.
type PortDescriptor struct {
	Name         string // device path, e.g. /dev/ttyACM0
	Manufacturer string
	PnPID        string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
}

// Lister enumerates the serial ports on the host.
type Lister interface {
	ListPorts() ([]PortDescriptor, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func() ([]PortDescriptor, error)

func (f ListerFunc) ListPorts() ([]PortDescriptor, error) {
	return f()
}

// Scan lists the ports and returns the first one whose manufacturer contains
// match (case-sensitive). Every port is logged, including those after the match.
func Scan(l Lister, match string, logger *zerolog.Logger) (PortDescriptor, error) {
	log := zerolog.Nop()
	if logger != nil {
		log = *logger
	}

	ports, err := l.ListPorts()
	if err != nil {
		return PortDescriptor{}, &ScanError{Err: err}
	}

	var (
		selected PortDescriptor
		found    bool
	)
	for _, p := range ports {
		log.Info().
			Str("port", p.Name).
			Str("pnp_id", p.PnPID).
			Str("manufacturer", p.Manufacturer).
			Msg("serial port")

		if !found && strings.Contains(p.Manufacturer, match) {
			selected = p
			found = true
		}
	}

	if !found {
		return PortDescriptor{}, fmt.Errorf("%w: manufacturer %q among %d ports", ErrNotFound, match, len(ports))
	}
	return selected, nil
}
