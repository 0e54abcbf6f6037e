package rpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xetra/internal/domain"
	"xetra/internal/util"
)

const (
	serviceName   = "xetra.Daily"
	runMethodName = "/" + serviceName + "/Run"
)

// RunRequest asks for the summaries of one business date. An empty date
// means the server's configured default.
type RunRequest struct {
	Date string `json:"date,omitempty"`
}

// RunResponse carries the summaries of the requested date.
type RunResponse struct {
	Date string    `json:"date"`
	Rows []Summary `json:"rows"`
}

// Summary is a daily summary row. Decimals travel as strings with two
// places; ChangePrevPct is nil when there is no previous close.
type Summary struct {
	ISIN          string  `json:"isin"`
	Date          string  `json:"date"`
	OpeningPrice  string  `json:"opening_price"`
	ClosingPrice  string  `json:"closing_price"`
	MinPrice      string  `json:"minimum_price"`
	MaxPrice      string  `json:"maximum_price"`
	TradedVolume  int64   `json:"daily_traded_volume"`
	ChangePrevPct *string `json:"change_prev_closing_pct"`
}

func toSummary(r domain.SummaryRow) Summary {
	s := Summary{
		ISIN:         r.ISIN,
		Date:         r.Date,
		OpeningPrice: r.OpeningPrice.StringFixed(2),
		ClosingPrice: r.ClosingPrice.StringFixed(2),
		MinPrice:     r.MinPrice.StringFixed(2),
		MaxPrice:     r.MaxPrice.StringFixed(2),
		TradedVolume: r.TradedVolume,
	}
	if r.ChangePrevPct.Valid {
		v := r.ChangePrevPct.Decimal.StringFixed(2)
		s.ChangePrevPct = &v
	}
	return s
}

// Runner runs the pipeline for a business date.
type Runner interface {
	Run(ctx context.Context, date string) ([]domain.SummaryRow, error)
}

// DailyServer is the server side of xetra.Daily.
type DailyServer interface {
	Run(ctx context.Context, req *RunRequest) (*RunResponse, error)
}

// Server implements DailyServer on top of a pipeline Runner.
type Server struct {
	runner     Runner
	dateFormat string
	log        *slog.Logger
}

// NewServer creates a Server. Request dates are normalised to dateFormat.
func NewServer(runner Runner, dateFormat string, log *slog.Logger) *Server {
	return &Server{runner: runner, dateFormat: dateFormat, log: log}
}

// RegisterGRPC registers the server on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// Run runs the pipeline for req.Date. Unlike the HTTP endpoint it rejects
// dates it cannot read instead of falling back to the default.
func (s *Server) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	date := ""
	if req.Date != "" {
		d, ok := util.NormalizeDate(req.Date, s.dateFormat)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unrecognised date %q", req.Date)
		}
		date = d
	}

	rows, err := s.runner.Run(ctx, date)
	if err != nil {
		var dfe *util.DateFormatError
		if errors.As(err, &dfe) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		s.log.Error("xetra job failed", "date", date, "error", err)
		return nil, status.Error(codes.Internal, err.Error())
	}

	resp := &RunResponse{Date: date, Rows: make([]Summary, 0, len(rows))}
	for _, r := range rows {
		resp.Rows = append(resp.Rows, toSummary(r))
	}
	if resp.Date == "" && len(rows) > 0 {
		resp.Date = rows[0].Date
	}
	s.log.Info("rpc run finished", "date", resp.Date, "rows", len(rows))
	return resp, nil
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(RunRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DailyServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: runMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DailyServer).Run(ctx, req.(*RunRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DailyServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "xetra/daily",
}
