package simd

import (
	"context"
	"errors"
	"io"

	"github.com/GoSim-25-26J-441/natsim/pkg/models"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// SimulationClient calls the daemon's gRPC service with typed values
type SimulationClient struct {
	cc grpc.ClientConnInterface
}

func NewSimulationClient(cc grpc.ClientConnInterface) *SimulationClient {
	return &SimulationClient{cc: cc}
}

func (c *SimulationClient) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return err
	}
	return fromStruct(out, resp)
}

func (c *SimulationClient) runCall(ctx context.Context, method, runID string) (*models.Run, error) {
	var resp runResponse
	if err := c.invoke(ctx, method, runIDRequest{RunID: runID}, &resp); err != nil {
		return nil, err
	}
	return &resp.Run, nil
}

// CreateRun registers a run. An empty runID lets the daemon pick one.
func (c *SimulationClient) CreateRun(ctx context.Context, runID string, input models.RunInput) (*models.Run, error) {
	var resp runResponse
	if err := c.invoke(ctx, "CreateRun", createRunRequest{RunID: runID, Input: &input}, &resp); err != nil {
		return nil, err
	}
	return &resp.Run, nil
}

func (c *SimulationClient) StartRun(ctx context.Context, runID string) (*models.Run, error) {
	return c.runCall(ctx, "StartRun", runID)
}

func (c *SimulationClient) StopRun(ctx context.Context, runID string) (*models.Run, error) {
	return c.runCall(ctx, "StopRun", runID)
}

func (c *SimulationClient) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	return c.runCall(ctx, "GetRun", runID)
}

// ListRuns returns runs oldest first; an empty status matches all
func (c *SimulationClient) ListRuns(ctx context.Context, limit, offset int, status models.RunStatus) ([]models.Run, error) {
	var resp listRunsResponse
	req := listRunsRequest{Limit: limit, Offset: offset, Status: status}
	if err := c.invoke(ctx, "ListRuns", req, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

func (c *SimulationClient) GetRunSummaries(ctx context.Context, runID string) ([]models.ScenarioSummary, error) {
	var resp summariesResponse
	if err := c.invoke(ctx, "GetRunSummaries", runIDRequest{RunID: runID}, &resp); err != nil {
		return nil, err
	}
	return resp.Summaries, nil
}

// StreamRunEvents calls fn for each event until the run completes, fn
// returns an error, or ctx is done.
func (c *SimulationClient) StreamRunEvents(ctx context.Context, runID string, intervalMs int64, fn func(RunEvent) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.cc.NewStream(ctx, &SimulationServiceDesc.Streams[0], "/"+ServiceName+"/StreamRunEvents")
	if err != nil {
		return err
	}
	in, err := toStruct(runIDRequest{RunID: runID, IntervalMs: intervalMs})
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var ev RunEvent
		if err := fromStruct(out, &ev); err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
