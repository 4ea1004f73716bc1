package searchd

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/shell-search/pkg/logger"
)

// SearchServiceName is the fully qualified gRPC service name. Messages are
// google.protobuf.Struct values carrying the same JSON documents as the HTTP API.
const SearchServiceName = "shellsearch.v1.SearchService"

// SearchServiceServer is the server side of SearchService.
type SearchServiceServer interface {
	CreateRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLeaderboard(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(SearchServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SearchServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + SearchServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(SearchServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// SearchServiceDesc describes SearchService for grpc.Server registration.
var SearchServiceDesc = grpc.ServiceDesc{
	ServiceName: SearchServiceName,
	HandlerType: (*SearchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateRun", SearchServiceServer.CreateRun),
		unaryHandler("GetRun", SearchServiceServer.GetRun),
		unaryHandler("StopRun", SearchServiceServer.StopRun),
		unaryHandler("GetLeaderboard", SearchServiceServer.GetLeaderboard),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shellsearch/v1/search.proto",
}

// RegisterSearchService registers srv on s.
func RegisterSearchService(s grpc.ServiceRegistrar, srv SearchServiceServer) {
	s.RegisterService(&SearchServiceDesc, srv)
}

// SearchGRPCServer implements SearchServiceServer using a RunStore backend.
type SearchGRPCServer struct {
	store    *RunStore
	Executor *RunExecutor
	// AllowPrivateCallbacks skips callback URL address checks.
	AllowPrivateCallbacks bool
}

func NewSearchGRPCServer(store *RunStore, executor *RunExecutor) *SearchGRPCServer {
	return &SearchGRPCServer{
		store:    store,
		Executor: executor,
	}
}

func (s *SearchGRPCServer) CreateRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	var parsed createRunRequest
	if err := fromStruct(req, &parsed); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if parsed.ConfigYAML == "" && len(parsed.Config) > 0 && string(parsed.Config) != "null" {
		parsed.ConfigYAML = string(parsed.Config)
	}

	input, err := prepareInput(parsed, s.AllowPrivateCallbacks)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	rec, err := s.store.Create(parsed.RunID, input)
	if err != nil {
		if errors.Is(err, ErrInvalidRunID) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.AlreadyExists, err.Error())
	}

	started, err := s.Executor.Start(rec.ID)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	logger.Info("run created", "run_id", rec.ID)
	return toStruct(map[string]any{"run": runSummary(started)})
}

func (s *SearchGRPCServer) GetRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID, err := requireRunID(req)
	if err != nil {
		return nil, err
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	return toStruct(map[string]any{"run": runSummary(rec)})
}

func (s *SearchGRPCServer) StopRun(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID, err := requireRunID(req)
	if err != nil {
		return nil, err
	}

	updated, err := s.Executor.Stop(runID)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return nil, status.Error(codes.NotFound, err.Error())
		}
		if errors.Is(err, ErrRunTerminal) {
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	logger.Info("run cancelled", "run_id", runID)
	return toStruct(map[string]any{"run": runSummary(updated)})
}

func (s *SearchGRPCServer) GetLeaderboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	runID, err := requireRunID(req)
	if err != nil {
		return nil, err
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	if rec.Result == nil {
		return nil, status.Error(codes.FailedPrecondition, "leaderboard not available")
	}
	return toStruct(map[string]any{"leaderboard": rec.Result})
}

func requireRunID(req *structpb.Struct) (string, error) {
	if req == nil {
		return "", status.Error(codes.InvalidArgument, "run_id is required")
	}
	runID := req.GetFields()["run_id"].GetStringValue()
	if runID == "" {
		return "", status.Error(codes.InvalidArgument, "run_id is required")
	}
	return runID, nil
}

// toStruct round-trips v through JSON so that struct tags apply.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, v any) error {
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// SearchClient calls SearchService over a client connection.
type SearchClient struct {
	cc grpc.ClientConnInterface
}

func NewSearchClient(cc grpc.ClientConnInterface) *SearchClient {
	return &SearchClient{cc: cc}
}

func (c *SearchClient) call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+SearchServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SearchClient) CreateRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "CreateRun", in, opts...)
}

func (c *SearchClient) GetRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "GetRun", in, opts...)
}

func (c *SearchClient) StopRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "StopRun", in, opts...)
}

func (c *SearchClient) GetLeaderboard(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "GetLeaderboard", in, opts...)
}
