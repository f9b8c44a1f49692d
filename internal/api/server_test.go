package api

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"seisqc/internal/backend"
	"seisqc/internal/config"
	"seisqc/internal/domain"
	"seisqc/internal/metric"
	"seisqc/internal/simple"
	"seisqc/internal/store"
	"seisqc/internal/util"
	"seisqc/pkg/seisqc"
)

var (
	day1 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	anmo = domain.SNCL{Network: "IU", Station: "ANMO", Location: "00", Channel: "BHZ"}
)

// localConfig returns a configuration reading from and saving to a fresh
// local archive.
func localConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DataDir = dir
	cfg.Storage.SQLitePath = filepath.Join(dir, "seisqc.db")
	cfg.Services.Availability = config.SourceLocal
	cfg.Services.DataSelect = config.SourceLocal
	cfg.Output.SQLite = true
	cfg.Server.Host = "127.0.0.1"
	return cfg
}

func openBackends(t *testing.T, cfg *config.Config) *backend.Backends {
	t.Helper()
	b, err := backend.Open(cfg, util.Discard())
	if err != nil {
		t.Fatalf("backend.Open: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func seedArchive(t *testing.T, cfg *config.Config) {
	t.Helper()
	samples := make([]float64, 3600)
	for i := range samples {
		samples[i] = float64(i % 7)
	}
	ps := store.NewParquetStore(cfg.Storage.DataDir)
	if err := ps.WriteTraces(context.Background(), anmo, []domain.Trace{{Start: day1, SampleRate: 1, Samples: samples}}); err != nil {
		t.Fatalf("WriteTraces: %v", err)
	}
}

// startServer serves svc on a random port and returns a connected client.
func startServer(t *testing.T, cfg *config.Config, svc SimpleMetricsServer) *seisqc.Client {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := NewServer(cfg, svc, util.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	client, err := seisqc.NewClient(lis.Addr().String())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	return client
}

func TestNewServer(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.GRPCPort = 6000
	s := NewServer(cfg, NewSimpleMetricsService(cfg, &backend.Backends{}, util.Discard()), util.Discard())
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
	if s.Addr() != "127.0.0.1:6000" {
		t.Errorf("Addr = %q, want 127.0.0.1:6000", s.Addr())
	}
}

func TestRunOverGRPC(t *testing.T) {
	cfg := localConfig(t)
	seedArchive(t, cfg)
	b := openBackends(t, cfg)
	client := startServer(t, cfg, NewSimpleMetricsService(cfg, b, util.Discard()))
	ctx := context.Background()

	healthy, err := client.Healthy(ctx)
	if err != nil || !healthy {
		t.Fatalf("Healthy = %v, %v; want true", healthy, err)
	}

	resp, err := client.Run(ctx, seisqc.RunRequest{Start: "2024-03-01", Metrics: []string{"gaps"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Status != "ok" || !resp.Present {
		t.Fatalf("Run status = %q present = %v, want ok and present", resp.Status, resp.Present)
	}
	gaps := metric.Names(domain.FamilyGaps)
	if len(resp.Records) != len(gaps) {
		t.Errorf("got %d records, want %d", len(resp.Records), len(gaps))
	}
	for _, r := range resp.Records {
		if r.SNCLID != anmo.ID() {
			t.Errorf("record %s has snclId %q, want %q", r.MetricName, r.SNCLID, anmo.ID())
		}
		if !r.Start.Equal(day1) {
			t.Errorf("record %s starts %v, want %v", r.MetricName, r.Start, day1)
		}
	}
	if resp.Summary.Days != 1 || resp.Summary.ChannelDays != 1 || resp.Summary.Records != len(gaps) {
		t.Errorf("unexpected summary: %+v", resp.Summary)
	}

	saved, err := b.Metrics.ListMetrics(ctx, "", day1, day1.Add(util.Day))
	if err != nil {
		t.Fatalf("ListMetrics: %v", err)
	}
	if len(saved) != len(gaps) {
		t.Errorf("saved %d records, want %d", len(saved), len(gaps))
	}

	listed, err := client.List(ctx, seisqc.ListRequest{SNCLID: anmo.ID(), Start: "2024-03-01"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed.Records) != len(gaps) {
		t.Errorf("List returned %d records, want %d", len(listed.Records), len(gaps))
	}
	for _, r := range listed.Records {
		if r.SNCLID != anmo.ID() || !r.Start.Equal(day1) {
			t.Errorf("listed record %+v, want %s starting %v", r, anmo.ID(), day1)
		}
	}

	other, err := client.List(ctx, seisqc.ListRequest{Start: "2024-03-02", End: "2024-03-05"})
	if err != nil {
		t.Fatalf("List (later days): %v", err)
	}
	if len(other.Records) != 0 {
		t.Errorf("List (later days) returned %d records, want 0", len(other.Records))
	}
}

func TestListErrorCodes(t *testing.T) {
	cfg := localConfig(t)
	b := openBackends(t, cfg)
	client := startServer(t, cfg, NewSimpleMetricsService(cfg, b, util.Discard()))
	ctx := context.Background()

	for _, tc := range []struct {
		name string
		req  seisqc.ListRequest
	}{
		{"missing start", seisqc.ListRequest{SNCLID: anmo.ID()}},
		{"bad start", seisqc.ListRequest{Start: "March"}},
		{"bad end", seisqc.ListRequest{Start: "2024-03-01", End: "later"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.List(ctx, tc.req)
			if got := status.Code(err); got != codes.InvalidArgument {
				t.Errorf("List code = %v (%v), want InvalidArgument", got, err)
			}
		})
	}

	t.Run("no store", func(t *testing.T) {
		svc := NewSimpleMetricsService(cfg, &backend.Backends{}, util.Discard())
		in, err := seisqc.ListRequest{Start: "2024-03-01"}.Struct()
		if err != nil {
			t.Fatalf("Struct: %v", err)
		}
		_, err = svc.List(ctx, in)
		if got := status.Code(err); got != codes.FailedPrecondition {
			t.Errorf("List code = %v (%v), want FailedPrecondition", got, err)
		}
	})
}

func TestRunErrorCodes(t *testing.T) {
	cfg := localConfig(t)
	b := openBackends(t, cfg)
	client := startServer(t, cfg, NewSimpleMetricsService(cfg, b, util.Discard()))

	tests := []struct {
		name string
		req  seisqc.RunRequest
		want codes.Code
	}{
		{"missing start", seisqc.RunRequest{Metrics: []string{"gaps"}}, codes.InvalidArgument},
		{"unknown metric", seisqc.RunRequest{Start: "2024-03-01", Metrics: []string{"psd_corrected"}}, codes.InvalidArgument},
		{"no metrics", seisqc.RunRequest{Start: "2024-03-01"}, codes.InvalidArgument},
		{"end before start", seisqc.RunRequest{Start: "2024-03-02", End: "2024-03-01", Metrics: []string{"gaps"}}, codes.InvalidArgument},
		// The archive is empty.
		{"no available data", seisqc.RunRequest{Start: "2024-03-01", Metrics: []string{"gaps"}}, codes.NotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.Run(context.Background(), tc.req)
			if got := status.Code(err); got != tc.want {
				t.Errorf("Run code = %v (%v), want %v", got, err, tc.want)
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	cfg := localConfig(t)
	seedArchive(t, cfg)
	svc := NewSimpleMetricsService(cfg, openBackends(t, cfg), util.Discard())

	in, err := seisqc.RunRequest{Start: "2024-03-01", Metrics: []string{"gaps"}}.Struct()
	if err != nil {
		t.Fatalf("Struct: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.Run(ctx, in)
	if got := status.Code(err); got != codes.Canceled {
		t.Errorf("Run code = %v (%v), want Canceled", got, err)
	}
}

func TestToResponseAbsent(t *testing.T) {
	resp := toResponse(nil, simple.Summary{Status: simple.StatusNoMetrics})
	if resp.Present || resp.Records != nil {
		t.Errorf("absent result converted to present=%v records=%v", resp.Present, resp.Records)
	}

	resp = toResponse(&domain.ResultSet{}, simple.Summary{Status: simple.StatusOK})
	if !resp.Present || len(resp.Records) != 0 {
		t.Errorf("empty result converted to present=%v records=%d", resp.Present, len(resp.Records))
	}
}
