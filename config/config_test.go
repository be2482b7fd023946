package config_test

import (
	"testing"

	"github.com/spf13/viper"

	"github.com/openrobots-dev/rosnode/config"
)

func TestDefaultValidates(t *testing.T) {
	if err := config.Default().Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoadNilViperIsDefault(t *testing.T) {
	cfg, err := config.Load(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != config.Default() {
		t.Fatalf("expected default config")
	}
}

func TestLoadOverridesDefault(t *testing.T) {
	v := viper.New()
	v.Set("node_name", "/mynode")
	v.Set("tcpros_listen_port", 55555)

	cfg, err := config.Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NodeName != "/mynode" {
		t.Fatalf("expected overridden node name, got %q", cfg.NodeName)
	}
	if cfg.TCPROSListenPort != 55555 {
		t.Fatalf("expected overridden tcpros port, got %d", cfg.TCPROSListenPort)
	}
	if cfg.MasterIP != config.DefaultMasterIP {
		t.Fatalf("expected default master ip to survive, got %q", cfg.MasterIP)
	}
}

func TestValidateRejectsMissingNodeName(t *testing.T) {
	cfg := config.Default()
	cfg.NodeName = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation failure for empty node name")
	}
}

func TestMasterAddress(t *testing.T) {
	cfg := config.Default()
	addr := cfg.MasterAddress()
	if addr.String() != "192.168.56.101:11311" {
		t.Fatalf("unexpected address %s", addr.String())
	}
}
