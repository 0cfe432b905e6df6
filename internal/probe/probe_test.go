package probe

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (f *fakePinger) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakePinger) set(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func startProbe(t *testing.T, pinger Pinger) (*Server, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := New(pinger, Config{Interval: time.Hour, PingTimeout: time.Second}, nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return srv, healthpb.NewHealthClient(conn)
}

func checkStatus(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q) failed: %v", service, err)
	}
	return resp.GetStatus()
}

func TestProbeFollowsStore(t *testing.T) {
	pinger := &fakePinger{}
	srv, client := startProbe(t, pinger)

	if got := checkStatus(t, client, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("before first check: got %v, want NOT_SERVING", got)
	}

	srv.Check(context.Background())
	for _, svc := range []string{"", ServiceName} {
		if got := checkStatus(t, client, svc); got != healthpb.HealthCheckResponse_SERVING {
			t.Errorf("service %q: got %v, want SERVING", svc, got)
		}
	}

	pinger.set(errors.New("database is closed"))
	if got := srv.Check(context.Background()); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Check returned %v, want NOT_SERVING", got)
	}
	if got := checkStatus(t, client, ServiceName); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("after failed ping: got %v, want NOT_SERVING", got)
	}
}

func TestWatchStopsWithContext(t *testing.T) {
	srv, client := startProbe(t, &fakePinger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Watch(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for checkStatus(t, client, "") != healthpb.HealthCheckResponse_SERVING {
		if time.Now().After(deadline) {
			t.Fatal("Watch never published SERVING")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
