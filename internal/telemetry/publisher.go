// Package telemetry streams controller snapshots to remote viewers over
// gRPC and reports the process health through the standard gRPC health
// service.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/forager/internal/monitoring"
	"github.com/banshee-data/forager/internal/rover"
)

var logf = monitoring.Tagged("Telemetry")

// ErrNoSnapshot is returned by Latest before the first tick is observed.
var ErrNoSnapshot = errors.New("no snapshot yet")

// Config holds the telemetry server settings.
type Config struct {
	// ListenAddr is the TCP address Start binds, e.g. "localhost:50061".
	ListenAddr string
	// MaxClients bounds concurrent Watch streams.
	MaxClients int
	// ClientBuffer is the per-client snapshot backlog before drops.
	ClientBuffer int
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:   "localhost:50061",
		MaxClients:   8,
		ClientBuffer: 16,
	}
}

// Publisher fans snapshots out to gRPC Watch clients. It implements
// rover.Observer; Observe never blocks.
type Publisher struct {
	config Config
	server *grpc.Server
	health *health.Server

	latest   atomic.Pointer[structpb.Struct]
	clientMu sync.RWMutex
	clients  map[string]chan *structpb.Struct

	stopping chan struct{}
	stopOnce sync.Once

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

func NewPublisher(cfg Config) *Publisher {
	if cfg.MaxClients < 1 {
		cfg.MaxClients = DefaultConfig().MaxClients
	}
	if cfg.ClientBuffer < 1 {
		cfg.ClientBuffer = DefaultConfig().ClientBuffer
	}
	p := &Publisher{
		config:   cfg,
		server:   grpc.NewServer(),
		health:   health.NewServer(),
		clients:  make(map[string]chan *structpb.Struct),
		stopping: make(chan struct{}),
	}
	p.server.RegisterService(&serviceDesc, p)
	healthpb.RegisterHealthServer(p.server, p.health)
	p.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return p
}

// SnapshotStruct converts a snapshot into its wire form.
func SnapshotStruct(s rover.Snapshot) (*structpb.Struct, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(b, st); err != nil {
		return nil, fmt.Errorf("snapshot to struct: %w", err)
	}
	return st, nil
}

// Observe publishes s to every connected client, dropping it for clients
// whose backlog is full.
func (p *Publisher) Observe(s rover.Snapshot) {
	st, err := SnapshotStruct(s)
	if err != nil {
		if n := p.failed.Add(1); n == 1 {
			logf("failed to encode snapshot: %v", err)
		}
		return
	}
	p.latest.Store(st)
	p.published.Add(1)

	p.clientMu.RLock()
	defer p.clientMu.RUnlock()
	for _, ch := range p.clients {
		select {
		case ch <- st:
		default:
			p.dropped.Add(1)
		}
	}
}

// Latest returns the most recently observed snapshot.
func (p *Publisher) Latest() (*structpb.Struct, error) {
	st := p.latest.Load()
	if st == nil {
		return nil, ErrNoSnapshot
	}
	return st, nil
}

var errTooManyClients = errors.New("too many telemetry clients")

// addClient registers a stream and returns the snapshot it should start
// from, nil before the first tick.
func (p *Publisher) addClient() (string, chan *structpb.Struct, *structpb.Struct, error) {
	p.clientMu.Lock()
	defer p.clientMu.Unlock()
	if len(p.clients) >= p.config.MaxClients {
		return "", nil, nil, errTooManyClients
	}
	id := uuid.NewString()
	ch := make(chan *structpb.Struct, p.config.ClientBuffer)
	p.clients[id] = ch
	logf("client %s connected (total: %d)", id, len(p.clients))
	return id, ch, p.latest.Load(), nil
}

func (p *Publisher) removeClient(id string) {
	p.clientMu.Lock()
	defer p.clientMu.Unlock()
	delete(p.clients, id)
	logf("client %s disconnected (remaining: %d)", id, len(p.clients))
}

// Stats reports publisher counters.
type Stats struct {
	Published uint64
	Dropped   uint64
	Failed    uint64
	Clients   int
}

func (p *Publisher) Stats() Stats {
	p.clientMu.RLock()
	clients := len(p.clients)
	p.clientMu.RUnlock()
	return Stats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
		Clients:   clients,
	}
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (p *Publisher) Serve(ctx context.Context, lis net.Listener) error {
	p.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	p.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	errc := make(chan error, 1)
	go func() {
		logf("gRPC server listening on %s", lis.Addr())
		errc <- p.server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		p.health.Shutdown()
		// Watch streams only end when told to, so release them before
		// waiting on them.
		p.stopOnce.Do(func() { close(p.stopping) })
		p.server.GracefulStop()
		<-errc
		logf("gRPC server stopped")
		return nil
	case err := <-errc:
		p.health.Shutdown()
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("telemetry server: %w", err)
		}
		return nil
	}
}

// ListenAndServe binds the configured address and serves until ctx is done.
func (p *Publisher) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", p.config.ListenAddr, err)
	}
	return p.Serve(ctx, lis)
}
