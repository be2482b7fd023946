package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrobots-dev/rosnode/wire"
)

func TestAddressString(t *testing.T) {
	tests := []struct {
		name string
		addr wire.Address
		want string
	}{
		{name: "master default", addr: wire.Address{IP: "192.168.56.101", Port: 11311}, want: "192.168.56.101:11311"},
		{name: "zero port", addr: wire.Address{IP: "127.0.0.1"}, want: "127.0.0.1:0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.addr.String())
		})
	}
}

func TestAddressIsZero(t *testing.T) {
	require.True(t, wire.Address{}.IsZero())
	require.False(t, wire.Address{IP: "127.0.0.1"}.IsZero())
	require.False(t, wire.Address{Port: 11311}.IsZero())
}
