package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/forager/internal/serialmux"
	"github.com/banshee-data/forager/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Replay canned base-board traffic instead of opening the serial port")
	port        = flag.String("port", "/dev/ttyACM0", "Serial port of the base board (ignored in dev mode, empty to run without one)")
	baud        = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	listen      = flag.String("listen", ":8080", "HTTP listen address for status and debug pages (empty to disable)")
	grpcListen  = flag.String("grpc", "localhost:50061", "gRPC telemetry listen address (empty to disable)")
	configPath  = flag.String("config", "", "Tuning configuration JSON (defaults when empty)")
	dbPath      = flag.String("db", "forager.db", "Run journal database (empty to disable)")
	plotDir     = flag.String("plot-dir", "", "Write a path plot PNG here at shutdown (empty to disable)")
	name        = flag.String("name", "forager", "Robot name used in the journal and on status pages")
	queueSize   = flag.Int("queue", 256, "Control loop event queue size")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

//go:embed replay.jsonl
var replayLines string

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	opts := options{
		listen:     *listen,
		grpcListen: *grpcListen,
		configPath: *configPath,
		dbPath:     *dbPath,
		plotDir:    *plotDir,
		name:       *name,
		queue:      *queueSize,
	}

	var mux serialmux.SerialMuxInterface
	if *devMode {
		lines := strings.Split(strings.TrimSpace(replayLines), "\n")
		mux = serialmux.NewReplaySerialMux(lines, 100*time.Millisecond)
	} else if *port == "" {
		log.Print("no serial port given, running without a base board")
		mux = serialmux.NewDisabledSerialMux()
	} else {
		m, err := serialmux.NewRealSerialMux(*port, serialmux.PortOptions{BaudRate: *baud})
		if err != nil {
			log.Fatalf("failed to open base board: %v", err)
		}
		mux = m
	}

	a, err := newApp(opts, mux)
	if err != nil {
		mux.Close()
		log.Fatalf("failed to start: %v", err)
	}
	defer a.close()

	if err := mux.Initialise(); err != nil {
		log.Printf("failed to initialise base board: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("%s starting", version.String())
	if err := a.run(ctx); err != nil {
		log.Printf("stopped with error: %v", err)
		a.close()
		os.Exit(1)
	}
	log.Printf("Graceful shutdown complete")
}
