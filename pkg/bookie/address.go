package bookie

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

var ErrInvalidAddress = errors.New("invalid bookie address")

// Address identifies a bookie by host and port. It is comparable and is used
// directly as a map key.
type Address struct {
	Host string
	Port int
}

// ParseAddress parses the "host:port" form used in the isolation group document.
func ParseAddress(s string) (Address, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w %q: %v", ErrInvalidAddress, s, err)
	}
	if host == "" {
		return Address{}, fmt.Errorf("%w %q: empty host", ErrInvalidAddress, s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return Address{}, fmt.Errorf("%w %q: bad port", ErrInvalidAddress, s)
	}
	return Address{Host: host, Port: port}, nil
}

func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText lets Address be a JSON object key.
func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
