package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/forager/internal/config"
	"github.com/banshee-data/forager/internal/db"
	"github.com/banshee-data/forager/internal/link"
	"github.com/banshee-data/forager/internal/manipulator"
	"github.com/banshee-data/forager/internal/monitor"
	"github.com/banshee-data/forager/internal/rover"
	"github.com/banshee-data/forager/internal/serialmux"
	"github.com/banshee-data/forager/internal/telemetry"
	"github.com/banshee-data/forager/internal/timeutil"
)

// trailInterval throttles journal pose rows.
const trailInterval = 500 * time.Millisecond

type options struct {
	listen     string
	grpcListen string
	configPath string
	dbPath     string
	plotDir    string
	name       string
	queue      int
}

// app holds every long-lived component of the process.
type app struct {
	opts    options
	serial  serialmux.SerialMuxInterface
	encoder *link.Encoder
	rover   *rover.RoverContext
	loop    *rover.Loop
	tracker *monitor.Tracker

	database  *db.DB
	journal   *db.Journal
	publisher *telemetry.Publisher
	web       *monitor.WebServer
}

func loadParams(path string) (rover.Params, error) {
	if path == "" {
		return rover.DefaultParams(), nil
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		return rover.Params{}, err
	}
	return rover.ParamsFromTuning(cfg), nil
}

func newApp(opts options, serial serialmux.SerialMuxInterface) (*app, error) {
	params, err := loadParams(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load tuning: %w", err)
	}
	clock := timeutil.RealClock{}

	a := &app{
		opts:    opts,
		serial:  serial,
		encoder: link.NewEncoder(serial),
		tracker: monitor.NewTracker(0, 0),
	}

	outputs := rover.TeeOutputs{a.encoder}
	observers := []rover.Observer{a.tracker}

	if opts.dbPath != "" {
		a.database, err = db.OpenDB(opts.dbPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal = db.NewJournal(a.database, opts.name, clock, trailInterval, db.DefaultJournalBuffer)
		outputs = append(outputs, a.journal)
		observers = append(observers, a.journal)
	}
	if opts.grpcListen != "" {
		cfg := telemetry.DefaultConfig()
		cfg.ListenAddr = opts.grpcListen
		a.publisher = telemetry.NewPublisher(cfg)
		observers = append(observers, a.publisher)
	}

	grasp := manipulator.NewPickupController(manipulator.DefaultPickupConfig(), clock)
	dropoff := manipulator.NewDropoffController(manipulator.DefaultDropoffConfig(), clock)
	a.rover = rover.NewContext(params, clock, outputs, grasp, dropoff)
	a.loop = rover.NewLoop(a.rover, opts.queue, observers...)

	if opts.listen != "" {
		a.web = monitor.NewWebServer(monitor.WebServerConfig{
			Address: opts.listen,
			Tracker: a.tracker,
			Stats:   a.stats,
			Name:    opts.name,
		})
		a.serial.AttachAdminRoutes(a.web.Mux())
		if a.database != nil {
			if err := a.database.AttachAdminRoutes(a.web.Mux()); err != nil {
				a.close()
				return nil, err
			}
		}
	}
	return a, nil
}

type serialStats interface {
	Stats() (in, out, dropped uint64)
}

// stats collects component counters for the status page.
func (a *app) stats() map[string]interface{} {
	s := map[string]interface{}{
		"loop":           a.loop.Stats(),
		"write_failures": a.encoder.Failed(),
	}
	if ss, ok := a.serial.(serialStats); ok {
		in, out, dropped := ss.Stats()
		s["serial"] = map[string]uint64{"lines_in": in, "lines_out": out, "dropped": dropped}
	}
	if a.journal != nil {
		s["journal"] = a.journal.Stats()
	}
	if a.publisher != nil {
		s["telemetry"] = a.publisher.Stats()
	}
	return s
}

// run starts every component and blocks until ctx is done or one of them
// fails.
func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.serial.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("serial monitor: %w", err)
		}
		log.Print("serial monitor stopped")
		return nil
	})

	id, lines := a.serial.Subscribe()
	g.Go(func() error {
		defer a.serial.Unsubscribe(id)
		st := link.Forward(ctx, lines, a.loop)
		log.Printf("forwarder stopped: posted=%d dropped=%d malformed=%d unknown=%d",
			st.Posted, st.Dropped, st.Malformed, st.Unknown)
		return nil
	})

	g.Go(func() error { return a.loop.Run(ctx) })

	if a.journal != nil {
		g.Go(func() error { return a.journal.Run(ctx) })
	}
	if a.publisher != nil {
		g.Go(func() error { return a.publisher.ListenAndServe(ctx) })
	}
	if a.web != nil {
		g.Go(func() error { return a.web.Start(ctx) })
	}

	err := g.Wait()
	a.savePlot()
	return err
}

func (a *app) savePlot() {
	if a.opts.plotDir == "" {
		return
	}
	name := fmt.Sprintf("%s-%s.png", a.opts.name, time.Now().Format("20060102-150405"))
	if _, err := monitor.NewPathPlotter(a.tracker, a.opts.name).Save(a.opts.plotDir, name); err != nil {
		log.Printf("failed to save path plot: %v", err)
	}
}

// close releases the serial port and journal. It is safe to call twice.
func (a *app) close() {
	if err := a.serial.Close(); err != nil {
		log.Printf("failed to close serial port: %v", err)
	}
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			log.Printf("failed to close journal: %v", err)
		}
		a.database = nil
	}
}
