package telemetry

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/forager/internal/geom"
	"github.com/banshee-data/forager/internal/monitoring"
	"github.com/banshee-data/forager/internal/rover"
)

func init() {
	monitoring.SetLogger(nil)
}

func snapshot(x float64, state string) rover.Snapshot {
	return rover.Snapshot{
		Time:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Mode:     "autonomous",
		State:    state,
		Protocol: "none",
		Pose:     geom.Pose2D{X: x, Y: 0.5, Heading: 0.25},
		Goal:     geom.Pose2D{X: 1},
	}
}

// startServer runs p on an in-memory listener and returns a client
// connection to it.
func startServer(t *testing.T, p *Publisher) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("telemetry server did not stop")
		}
	})
	return conn
}

func TestSnapshotStruct(t *testing.T) {
	st, err := SnapshotStruct(snapshot(0.75, "ROTATE"))
	require.NoError(t, err)

	fields := st.GetFields()
	assert.Equal(t, "ROTATE", fields["state"].GetStringValue())
	assert.Equal(t, "none", fields["protocol"].GetStringValue())
	pose := fields["pose"].GetStructValue().GetFields()
	assert.InDelta(t, 0.75, pose["x"].GetNumberValue(), 1e-12)
	assert.InDelta(t, 0.25, pose["heading"].GetNumberValue(), 1e-12)
}

func TestLatestBeforeAnySnapshot(t *testing.T) {
	p := NewPublisher(DefaultConfig())
	_, err := p.Latest()
	assert.ErrorIs(t, err, ErrNoSnapshot)

	conn := startServer(t, p)
	_, err = Latest(context.Background(), conn)
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestLatestOverGRPC(t *testing.T) {
	p := NewPublisher(DefaultConfig())
	conn := startServer(t, p)

	p.Observe(snapshot(0.1, "SEEK_GOAL"))
	p.Observe(snapshot(0.2, "DRIVE_TO_GOAL"))

	st, err := Latest(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, "DRIVE_TO_GOAL", st.GetFields()["state"].GetStringValue())
	assert.Equal(t, uint64(2), p.Stats().Published)
}

func TestWatchStreamsSnapshots(t *testing.T) {
	p := NewPublisher(DefaultConfig())
	conn := startServer(t, p)
	p.Observe(snapshot(0, "SEEK_GOAL"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []string
	errc := make(chan error, 1)
	go func() {
		errc <- Watch(ctx, conn, func(st *structpb.Struct) bool {
			got = append(got, st.GetFields()["state"].GetStringValue())
			return len(got) < 3
		})
	}()

	// The stream replays the latest snapshot, then follows new ones once the
	// client is registered.
	require.Eventually(t, func() bool { return p.Stats().Clients == 1 }, 5*time.Second, 10*time.Millisecond)
	p.Observe(snapshot(0.1, "ROTATE"))
	p.Observe(snapshot(0.2, "DRIVE_TO_GOAL"))

	require.NoError(t, <-errc)
	assert.Equal(t, []string{"SEEK_GOAL", "ROTATE", "DRIVE_TO_GOAL"}, got)
}

func TestWatchClientLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxClients = 1
	p := NewPublisher(cfg)
	conn := startServer(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan error, 1)
	go func() {
		first <- Watch(ctx, conn, func(*structpb.Struct) bool { return true })
	}()
	require.Eventually(t, func() bool { return p.Stats().Clients == 1 }, 5*time.Second, 10*time.Millisecond)

	err := Watch(context.Background(), conn, func(*structpb.Struct) bool { return true })
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	cancel()
	<-first
}

func TestSlowClientDrops(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClientBuffer = 1
	p := NewPublisher(cfg)
	_, ch, _, err := p.addClient()
	require.NoError(t, err)

	p.Observe(snapshot(0, "SEEK_GOAL"))
	p.Observe(snapshot(0.1, "ROTATE"))
	p.Observe(snapshot(0.2, "ROTATE"))

	assert.Len(t, ch, 1)
	assert.Equal(t, uint64(2), p.Stats().Dropped)
}

func TestHealthService(t *testing.T) {
	p := NewPublisher(DefaultConfig())
	conn := startServer(t, p)

	client := healthpb.NewHealthClient(conn)
	require.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPublisherIsObserver(t *testing.T) {
	var _ rover.Observer = NewPublisher(DefaultConfig())
}
