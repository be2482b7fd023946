package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/openrobots-dev/rosnode/config"
	"github.com/openrobots-dev/rosnode/logger"
	"github.com/openrobots-dev/rosnode/node"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the node and block until shutdown",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("node-name", "", "node name (overrides config)")
	serveCmd.Flags().String("master-ip", "", "Master IP address (overrides config)")
	serveCmd.Flags().Uint16("master-port", 0, "Master port (overrides config)")
	serveCmd.Flags().Bool("enable-metrics", false, "expose Prometheus metrics")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	if name, _ := cmd.Flags().GetString("node-name"); name != "" {
		cfg.NodeName = name
	}
	if ip, _ := cmd.Flags().GetString("master-ip"); ip != "" {
		cfg.MasterIP = ip
	}
	if port, _ := cmd.Flags().GetUint16("master-port"); port != 0 {
		cfg.MasterPort = port
	}
	if enable, _ := cmd.Flags().GetBool("enable-metrics"); enable {
		cfg.EnableMetrics = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel, _ := cmd.Flags().GetString("log-level")
	log := logger.New(cfg.NodeName, logger.ParseLevel(logLevel), cmd.OutOrStderr())

	n := node.New(cfg, log, node.Callbacks{
		ErrPrintf: func(format string, args ...interface{}) { log.Warn(fmt.Sprintf(format, args...)) },
	})

	config.OnChange(v, func(reloaded config.NodeConfig) {
		log.WithFields(logger.Fields{"node_name": reloaded.NodeName}).Info("config reloaded")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := n.Start(ctx); err != nil {
		return err
	}
	log.WithFields(logger.Fields{
		"xmlrpc": n.XMLRPCAddr().String(),
		"tcpros": n.TCPROSAddr().String(),
	}).Info("node running")

	if cfg.EnableMetrics {
		metricsAddr := cfg.MetricsAddress().String()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(n.Gatherer(), promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server: ", err)
			}
		}()
		defer metricsSrv.Close()
		log.WithFields(logger.Fields{"metrics": metricsAddr}).Info("metrics endpoint exposed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received signal ", sig, ", draining")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	return n.Stop(stopCtx)
}
