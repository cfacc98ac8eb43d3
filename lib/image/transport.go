package image

import (
	"errors"
	"fmt"
)

// Transport selects how the installed system fetches its target image.
type Transport string

const (
	TransportRegistry          Transport = "registry"
	TransportContainersStorage Transport = "containers-storage"
	TransportOCI               Transport = "oci"
	TransportDir               Transport = "dir"
)

// ErrUnknownTransport is returned for transports bootc does not accept.
var ErrUnknownTransport = errors.New("unknown target transport")

// ParseTransport validates a transport name.
func ParseTransport(s string) (Transport, error) {
	switch Transport(s) {
	case TransportRegistry, TransportContainersStorage, TransportOCI, TransportDir:
		return Transport(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTransport, s)
}

func (t Transport) String() string {
	return string(t)
}
