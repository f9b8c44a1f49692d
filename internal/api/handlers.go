package api

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"seisqc/internal/backend"
	"seisqc/internal/config"
	"seisqc/internal/domain"
	"seisqc/internal/metric"
	"seisqc/internal/simple"
	"seisqc/internal/util"
	"seisqc/pkg/seisqc"
)

// SimpleMetricsService runs simple metric requests against the configured
// backends. Each request overrides the run section of the configuration.
type SimpleMetricsService struct {
	cfg      *config.Config
	backends *backend.Backends
	log      *slog.Logger
}

var _ SimpleMetricsServer = (*SimpleMetricsService)(nil)

// NewSimpleMetricsService creates a SimpleMetricsService. Results are saved
// to b.Metrics when cfg.Output.SQLite is set.
func NewSimpleMetricsService(cfg *config.Config, b *backend.Backends, log *slog.Logger) *SimpleMetricsService {
	return &SimpleMetricsService{cfg: cfg, backends: b, log: log}
}

// Run decodes a seisqc.RunRequest, computes it and encodes the
// seisqc.RunResponse.
func (s *SimpleMetricsService) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := seisqc.DecodeRunRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	cfg := *s.cfg
	cfg.Run.Start = req.Start
	cfg.Run.End = req.End
	cfg.Run.Metrics = req.Metrics
	rc, err := cfg.BuildRunContext(metric.Catalog(), s.backends.Version)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	runner := simple.NewRunner(rc, s.backends.Collaborators, s.log)
	rs, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoAvailableData) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		if st := status.FromContextError(err); st.Code() != codes.Unknown {
			return nil, st.Err()
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	if rs.Len() > 0 && s.cfg.Output.SQLite && s.backends.Metrics != nil {
		if err := s.backends.Metrics.SaveMetrics(ctx, rs.Records); err != nil {
			s.log.Error("saving metrics failed", "records", rs.Len(), "err", err)
			return nil, status.Error(codes.Internal, "saving metrics: "+err.Error())
		}
	}

	resp := toResponse(rs, runner.Summary())
	out, err := resp.Struct()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// List decodes a seisqc.ListRequest and returns the matching records saved
// by earlier runs.
func (s *SimpleMetricsService) List(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.backends.Metrics == nil {
		return nil, status.Error(codes.FailedPrecondition, "no result store configured (storage.sqlite_path)")
	}
	req, err := seisqc.DecodeListRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Start == "" {
		return nil, status.Error(codes.InvalidArgument, "start is empty")
	}
	start, err := util.ParseTime(req.Start)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "start: "+err.Error())
	}
	end := start.Add(util.Day)
	if req.End != "" {
		if end, err = util.ParseTime(req.End); err != nil {
			return nil, status.Error(codes.InvalidArgument, "end: "+err.Error())
		}
	}

	recs, err := s.backends.Metrics.ListMetrics(ctx, req.SNCLID, start, end)
	if err != nil {
		if st := status.FromContextError(err); st.Code() != codes.Unknown {
			return nil, st.Err()
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	resp := seisqc.ListResponse{Records: toRecords(recs)}
	out, err := resp.Struct()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toRecords(recs []domain.MetricRecord) []seisqc.Record {
	out := make([]seisqc.Record, len(recs))
	for i, r := range recs {
		out[i] = seisqc.Record{
			MetricName: r.MetricName,
			SNCLID:     r.SNCLID,
			Start:      r.Start,
			End:        r.End,
			Value:      r.Value,
		}
	}
	return out
}

func toResponse(rs *domain.ResultSet, sum simple.Summary) seisqc.RunResponse {
	resp := seisqc.RunResponse{
		Status:  string(sum.Status),
		Present: rs != nil,
		Summary: seisqc.Summary{
			Days:            sum.Days,
			DaysSkipped:     sum.DaysSkipped,
			ChannelDays:     sum.ChannelDays,
			Frames:          sum.Frames,
			Records:         sum.Records,
			ChannelsSkipped: sum.ChannelsSkipped,
			Ineligible:      sum.Ineligible,
			MetricFailures:  sum.MetricFailures,
		},
	}
	if rs != nil {
		resp.Records = toRecords(rs.Records)
	}
	return resp
}
