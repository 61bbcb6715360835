package calibd

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/logger"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/models"
)

// CalibrationGRPCServer implements CalibrationServiceServer using a RunStore backend.
type CalibrationGRPCServer struct {
	store    *RunStore
	Executor *RunExecutor
}

// NewCalibrationGRPCServer creates a CalibrationGRPCServer with the provided RunStore and RunExecutor.
func NewCalibrationGRPCServer(store *RunStore, executor *RunExecutor) *CalibrationGRPCServer {
	return &CalibrationGRPCServer{
		store:    store,
		Executor: executor,
	}
}

type runIDRequest struct {
	RunID string `json:"run_id"`
}

type listRunsRequest struct {
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
	Status models.RunStatus `json:"status"`
}

func toStatus(err error) error {
	return status.Error(grpcCode(err), err.Error())
}

func reply(v any) (*structpb.Struct, error) {
	out, err := ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *CalibrationGRPCServer) CreateRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RunRequest
	if err := FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	run, err := s.Executor.Submit(&req)
	if err != nil {
		return nil, toStatus(err)
	}
	logger.Info("run created", "run_id", run.ID)
	return reply(map[string]any{"run": run})
}

func (s *CalibrationGRPCServer) GetRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req runIDRequest
	if err := FromStruct(in, &req); err != nil || req.RunID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}
	run, ok := s.store.Get(req.RunID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	return reply(map[string]any{"run": run})
}

func (s *CalibrationGRPCServer) StopRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req runIDRequest
	if err := FromStruct(in, &req); err != nil || req.RunID == "" {
		return nil, status.Error(codes.InvalidArgument, "run_id is required")
	}
	run, err := s.Executor.Stop(req.RunID)
	if err != nil {
		return nil, toStatus(err)
	}
	logger.Info("run cancelled", "run_id", req.RunID)
	return reply(map[string]any{"run": run})
}

func (s *CalibrationGRPCServer) ListRuns(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req listRunsRequest
	if err := FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return reply(map[string]any{"runs": s.store.List(req.Limit, req.Offset, req.Status)})
}

func (s *CalibrationGRPCServer) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req EvaluateRequest
	if err := FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := Evaluate(&req, s.Executor.Schemes())
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(resp)
}
