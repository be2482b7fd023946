package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openrobots-dev/rosnode/xerr"
)

// ParseIPv4 parses a decimal dotted-quad string into a little-endian
// dword, rejecting out-of-range octets and malformed separators.
func ParseIPv4(s string) (uint32, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, xerr.Parse.Errorf("malformed IPv4 literal %q", s)
	}

	var octets [4]byte
	for i, p := range parts {
		if p == "" {
			return 0, xerr.Parse.Errorf("malformed IPv4 literal %q", s)
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 255 {
			return 0, xerr.Parse.Errorf("octet %q out of range in %q", p, s)
		}
		octets[i] = byte(v)
	}

	return uint32(octets[0]) | uint32(octets[1])<<8 | uint32(octets[2])<<16 | uint32(octets[3])<<24, nil
}

// FormatIPv4 renders a little-endian dword as a dotted-quad string.
func FormatIPv4(dword uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d",
		byte(dword), byte(dword>>8), byte(dword>>16), byte(dword>>24))
}

// Address is an IPv4 + port pair.
type Address struct {
	IP   string
	Port uint16
}

// String renders the address as host:port.
func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.IP, a.Port)
}

// IsZero reports whether the address was never assigned.
func (a Address) IsZero() bool {
	return a.IP == "" && a.Port == 0
}
