package simd

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/GoSim-25-26J-441/natsim/pkg/config"
	"github.com/GoSim-25-26J-441/natsim/pkg/logger"
	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "natsim.v1.SimulationService"

// SimulationServiceServer is the gRPC surface of the daemon. Messages are
// google.protobuf.Struct values carrying the same JSON shapes as the HTTP API.
type SimulationServiceServer interface {
	CreateRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRunSummaries(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamRunEvents(*structpb.Struct, grpc.ServerStream) error
}

func unaryHandler(method string, call func(SimulationServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SimulationServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SimulationServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// SimulationServiceDesc describes the service for grpc.Server.RegisterService
var SimulationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateRun", SimulationServiceServer.CreateRun),
		unaryHandler("StartRun", SimulationServiceServer.StartRun),
		unaryHandler("StopRun", SimulationServiceServer.StopRun),
		unaryHandler("GetRun", SimulationServiceServer.GetRun),
		unaryHandler("ListRuns", SimulationServiceServer.ListRuns),
		unaryHandler("GetRunSummaries", SimulationServiceServer.GetRunSummaries),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "StreamRunEvents",
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(structpb.Struct)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(SimulationServiceServer).StreamRunEvents(in, stream)
			},
			ServerStreams: true,
		},
	},
	Metadata: "natsim/v1/simulation.proto",
}

// RegisterSimulationService registers srv on s
func RegisterSimulationService(s grpc.ServiceRegistrar, srv SimulationServiceServer) {
	s.RegisterService(&SimulationServiceDesc, srv)
}

// SimulationGRPCServer implements SimulationServiceServer using a RunStore backend.
type SimulationGRPCServer struct {
	store    *RunStore
	Executor *RunExecutor
}

// NewSimulationGRPCServer creates a new SimulationGRPCServer with the provided RunStore and RunExecutor.
func NewSimulationGRPCServer(store *RunStore, executor *RunExecutor) *SimulationGRPCServer {
	return &SimulationGRPCServer{
		store:    store,
		Executor: executor,
	}
}

type runIDRequest struct {
	RunID      string `json:"run_id"`
	IntervalMs int64  `json:"interval_ms,omitempty"`
}

type createRunRequest struct {
	RunID string           `json:"run_id,omitempty"`
	Input *models.RunInput `json:"input"`
}

type listRunsRequest struct {
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
	Status models.RunStatus `json:"status,omitempty"`
}

type runResponse struct {
	Run models.Run `json:"run"`
}

type pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

type listRunsResponse struct {
	Runs       []models.Run `json:"runs"`
	Pagination pagination   `json:"pagination"`
}

type summariesResponse struct {
	RunID     string                   `json:"run_id"`
	Status    models.RunStatus         `json:"status"`
	Summaries []models.ScenarioSummary `json:"summaries"`
}

func (s *SimulationGRPCServer) CreateRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req createRunRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.Input == nil {
		return nil, status.Error(codes.InvalidArgument, "input is required")
	}

	rec, err := s.store.Create(req.RunID, *req.Input)
	if err != nil {
		return nil, grpcError(err)
	}

	logger.Info("run created", "run_id", rec.Run.ID)
	return toStruct(runResponse{Run: rec.Run})
}

func (s *SimulationGRPCServer) StartRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRunID(in)
	if err != nil {
		return nil, err
	}

	updated, err := s.Executor.Start(req.RunID)
	if err != nil {
		return nil, grpcError(err)
	}

	logger.Info("run started (executor)", "run_id", req.RunID)
	return toStruct(runResponse{Run: updated.Run})
}

func (s *SimulationGRPCServer) StopRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRunID(in)
	if err != nil {
		return nil, err
	}

	updated, err := s.Executor.Stop(req.RunID)
	if err != nil {
		return nil, grpcError(err)
	}
	logger.Info("run cancelled", "run_id", req.RunID)
	return toStruct(runResponse{Run: updated.Run})
}

func (s *SimulationGRPCServer) GetRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRunID(in)
	if err != nil {
		return nil, err
	}

	rec, ok := s.store.Get(req.RunID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	return toStruct(runResponse{Run: rec.Run})
}

func (s *SimulationGRPCServer) ListRuns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req listRunsRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return toStruct(buildListResponse(s.store, req))
}

func (s *SimulationGRPCServer) GetRunSummaries(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decodeRunID(in)
	if err != nil {
		return nil, err
	}

	rec, ok := s.store.Get(req.RunID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	return toStruct(summariesResponse{RunID: rec.Run.ID, Status: rec.Run.Status, Summaries: rec.Summaries})
}

func (s *SimulationGRPCServer) StreamRunEvents(in *structpb.Struct, stream grpc.ServerStream) error {
	req, err := decodeRunID(in)
	if err != nil {
		return err
	}

	interval := time.Duration(req.IntervalMs) * time.Millisecond
	err = s.store.Watch(stream.Context(), req.RunID, interval, func(ev RunEvent) error {
		msg, err := toStruct(ev)
		if err != nil {
			return err
		}
		return stream.SendMsg(msg)
	})
	if err != nil {
		return grpcError(err)
	}
	return nil
}

func buildListResponse(store *RunStore, req listRunsRequest) listRunsResponse {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	recs := store.List(limit, offset, req.Status)
	runs := make([]models.Run, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, rec.Run)
	}
	return listRunsResponse{
		Runs: runs,
		Pagination: pagination{
			Limit:  limit,
			Offset: offset,
			Count:  len(runs),
		},
	}
}

func decodeRunID(in *structpb.Struct) (runIDRequest, error) {
	var req runIDRequest
	if err := fromStruct(in, &req); err != nil {
		return req, status.Error(codes.InvalidArgument, err.Error())
	}
	if req.RunID == "" {
		return req, status.Error(codes.InvalidArgument, ErrRunIDMissing.Error())
	}
	return req, nil
}

// grpcError maps daemon errors onto status codes
func grpcError(err error) error {
	var cfgErr *config.ConfigurationError
	switch {
	case errors.As(err, &cfgErr),
		errors.Is(err, ErrInvalidRunID),
		errors.Is(err, ErrRunIDMissing):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrRunExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrRunNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrRunTerminal):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, err.Error())
}

// toStruct converts v to a Struct through its JSON form, so +Inf latencies
// travel as null values.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// fromStruct decodes a Struct into v. Numbers arrive as doubles, so seeds
// above 2^53 lose precision.
func fromStruct(in *structpb.Struct, v any) error {
	b, err := json.Marshal(in.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
