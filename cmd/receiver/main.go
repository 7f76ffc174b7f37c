// Command receiver is the CLI entry point for the RUDP receiver: it
// parses flags, wires up logging/metrics, and runs the receiver core
// until interrupted.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rudp/internal/config"
	"rudp/internal/logger"
	"rudp/internal/metrics"
	"rudp/internal/receiver"
)

func main() {
	host := flag.String("host", "", "Host/IP to bind (empty = all interfaces)")
	port := flag.Int("port", config.DefaultPort, "UDP port to bind")
	baseDir := flag.String("dir", ".", "Directory to write received files into")
	timeout := flag.Duration("timeout", config.DefaultTimeout, "Connection idle timeout / reaper interval")
	debug := flag.Bool("debug", false, "Enable debug logging")
	sack := flag.Bool("sack", false, "Enable selective acknowledgements")
	metricsAddr := flag.String("metrics-addr", "", "Optional address to serve Prometheus metrics on, e.g. :9100")
	flag.Parse()

	if err := config.ValidateHost(*host); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := config.ValidatePort(strconv.Itoa(*port)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := logger.INFO
	if *debug {
		level = logger.DEBUG
	}
	log := logger.NewLogger(level, os.Stdout, "receiver")

	recvMetrics := metrics.NewReceiverMetrics()

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(metrics.NewReceiverCollector(recvMetrics))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error("metrics server stopped: %v", err)
			}
		}()
		log.Info("serving metrics on %s/metrics", *metricsAddr)
	}

	r := receiver.New(
		receiver.WithBaseDir(*baseDir),
		receiver.WithTimeout(*timeout),
		receiver.WithSack(*sack),
		receiver.WithMetrics(recvMetrics),
		receiver.WithLogger(log),
	)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Info("shutting down")
		_ = r.Close()
	}()

	log.Info("listening on %s:%d sack=%t dir=%s", *host, *port, *sack, *baseDir)
	if err := r.ListenAndServe(*host, *port); err != nil {
		log.Fatal("receiver exited: %v", err)
	}
}
