// Package config defines the node's validated configuration struct,
// loadable from YAML/env/flags via viper and validated with
// go-playground/validator, falling back to the original firmware's
// compiled-in defaults when a field is left unset.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/openrobots-dev/rosnode/wire"
	"github.com/openrobots-dev/rosnode/xerr"
)

// Defaults mirror the original uROSnode firmware's urosconf.h.
const (
	DefaultNodeName = "/turtlesim"

	DefaultMasterIP   = "192.168.56.101"
	DefaultMasterPort = 11311

	DefaultXMLRPCListenIP   = "192.168.56.1"
	DefaultXMLRPCListenPort = 33333
	DefaultXMLRPCBacklog    = 8
	DefaultXMLRPCPoolSize   = 2

	DefaultTCPROSListenPort = 44444
	DefaultTCPROSBacklog    = 8
	DefaultTCPROSServerPool = 2
	DefaultTCPROSClientPool = 2

	DefaultRPCReadBufLen     = 128
	DefaultStreamerFixedLen  = 4000
	DefaultXMLRPCRecvTimeout = 300 * time.Millisecond
	DefaultXMLRPCSendTimeout = 300 * time.Millisecond
	DefaultTCPROSSendTimeout = 300 * time.Millisecond

	DefaultMetricsListenIP   = "127.0.0.1"
	DefaultMetricsListenPort = 9100
)

// NodeConfig is the complete, validated node configuration: node name,
// listener addresses, Master address, pool sizes, timeouts and backlogs.
// All fields are overridable at init, per the external interfaces
// contract.
type NodeConfig struct {
	NodeName string `mapstructure:"node_name" validate:"required"`

	MasterIP   string `mapstructure:"master_ip" validate:"required,ip4_addr"`
	MasterPort uint16 `mapstructure:"master_port" validate:"required"`

	XMLRPCListenIP   string        `mapstructure:"xmlrpc_listen_ip" validate:"required,ip4_addr"`
	XMLRPCListenPort uint16        `mapstructure:"xmlrpc_listen_port" validate:"required"`
	XMLRPCBacklog    int           `mapstructure:"xmlrpc_backlog" validate:"gt=0"`
	XMLRPCPoolSize   int           `mapstructure:"xmlrpc_pool_size" validate:"gt=0"`
	XMLRPCRecvTimeout time.Duration `mapstructure:"xmlrpc_recv_timeout" validate:"gt=0"`
	XMLRPCSendTimeout time.Duration `mapstructure:"xmlrpc_send_timeout" validate:"gt=0"`

	TCPROSListenIP   string        `mapstructure:"tcpros_listen_ip" validate:"required,ip4_addr"`
	TCPROSListenPort uint16        `mapstructure:"tcpros_listen_port" validate:"required"`
	TCPROSBacklog    int           `mapstructure:"tcpros_backlog" validate:"gt=0"`
	TCPROSServerPool int           `mapstructure:"tcpros_server_pool" validate:"gt=0"`
	TCPROSClientPool int           `mapstructure:"tcpros_client_pool" validate:"gt=0"`
	TCPROSSendTimeout time.Duration `mapstructure:"tcpros_send_timeout" validate:"gt=0"`

	RPCReadBufLen    int  `mapstructure:"rpc_read_buf_len" validate:"gt=0"`
	StreamerFixedLen int  `mapstructure:"streamer_fixed_len" validate:"gt=0"`
	EnableRosout     bool `mapstructure:"enable_rosout"`

	EnableMetrics     bool   `mapstructure:"enable_metrics"`
	MetricsListenIP   string `mapstructure:"metrics_listen_ip" validate:"required,ip4_addr"`
	MetricsListenPort uint16 `mapstructure:"metrics_listen_port" validate:"required"`
}

// Default returns the configuration mirroring the original firmware's
// compiled-in constants.
func Default() NodeConfig {
	return NodeConfig{
		NodeName: DefaultNodeName,

		MasterIP:   DefaultMasterIP,
		MasterPort: DefaultMasterPort,

		XMLRPCListenIP:    DefaultXMLRPCListenIP,
		XMLRPCListenPort:  DefaultXMLRPCListenPort,
		XMLRPCBacklog:     DefaultXMLRPCBacklog,
		XMLRPCPoolSize:    DefaultXMLRPCPoolSize,
		XMLRPCRecvTimeout: DefaultXMLRPCRecvTimeout,
		XMLRPCSendTimeout: DefaultXMLRPCSendTimeout,

		TCPROSListenIP:    DefaultXMLRPCListenIP,
		TCPROSListenPort:  DefaultTCPROSListenPort,
		TCPROSBacklog:     DefaultTCPROSBacklog,
		TCPROSServerPool:  DefaultTCPROSServerPool,
		TCPROSClientPool:  DefaultTCPROSClientPool,
		TCPROSSendTimeout: DefaultTCPROSSendTimeout,

		RPCReadBufLen:    DefaultRPCReadBufLen,
		StreamerFixedLen: DefaultStreamerFixedLen,

		MetricsListenIP:   DefaultMetricsListenIP,
		MetricsListenPort: DefaultMetricsListenPort,
	}
}

var validate = validator.New()

// Validate checks every required/range constraint on the config.
func (c NodeConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return xerr.BadParam.Error(err)
	}
	return nil
}

// MasterAddress returns the configured Master as a wire.Address.
func (c NodeConfig) MasterAddress() wire.Address {
	return wire.Address{IP: c.MasterIP, Port: c.MasterPort}
}

// XMLRPCAddress returns the configured XMLRPC listener as a wire.Address.
func (c NodeConfig) XMLRPCAddress() wire.Address {
	return wire.Address{IP: c.XMLRPCListenIP, Port: c.XMLRPCListenPort}
}

// TCPROSAddress returns the configured TCPROS listener as a wire.Address.
func (c NodeConfig) TCPROSAddress() wire.Address {
	return wire.Address{IP: c.TCPROSListenIP, Port: c.TCPROSListenPort}
}

// MetricsAddress returns the configured Prometheus listener as a
// wire.Address, meaningful only when EnableMetrics is set.
func (c NodeConfig) MetricsAddress() wire.Address {
	return wire.Address{IP: c.MetricsListenIP, Port: c.MetricsListenPort}
}

// Load reads a NodeConfig from the given viper instance, applying
// Default()'s values for any key the instance does not set, then
// validates the result. A nil v loads Default() unchanged.
func Load(v *viper.Viper) (NodeConfig, error) {
	cfg := Default()
	if v == nil {
		return cfg, cfg.Validate()
	}

	v.SetDefault("node_name", cfg.NodeName)
	v.SetDefault("master_ip", cfg.MasterIP)
	v.SetDefault("master_port", cfg.MasterPort)
	v.SetDefault("xmlrpc_listen_ip", cfg.XMLRPCListenIP)
	v.SetDefault("xmlrpc_listen_port", cfg.XMLRPCListenPort)
	v.SetDefault("xmlrpc_backlog", cfg.XMLRPCBacklog)
	v.SetDefault("xmlrpc_pool_size", cfg.XMLRPCPoolSize)
	v.SetDefault("xmlrpc_recv_timeout", cfg.XMLRPCRecvTimeout)
	v.SetDefault("xmlrpc_send_timeout", cfg.XMLRPCSendTimeout)
	v.SetDefault("tcpros_listen_ip", cfg.TCPROSListenIP)
	v.SetDefault("tcpros_listen_port", cfg.TCPROSListenPort)
	v.SetDefault("tcpros_backlog", cfg.TCPROSBacklog)
	v.SetDefault("tcpros_server_pool", cfg.TCPROSServerPool)
	v.SetDefault("tcpros_client_pool", cfg.TCPROSClientPool)
	v.SetDefault("tcpros_send_timeout", cfg.TCPROSSendTimeout)
	v.SetDefault("rpc_read_buf_len", cfg.RPCReadBufLen)
	v.SetDefault("streamer_fixed_len", cfg.StreamerFixedLen)
	v.SetDefault("enable_rosout", cfg.EnableRosout)
	v.SetDefault("enable_metrics", cfg.EnableMetrics)
	v.SetDefault("metrics_listen_ip", cfg.MetricsListenIP)
	v.SetDefault("metrics_listen_port", cfg.MetricsListenPort)

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, xerr.BadParam.Error(err)
	}

	return cfg, cfg.Validate()
}
