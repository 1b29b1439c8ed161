package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/mediclaim/internal/async"
	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/ingest"
)

// AnalysisServiceName is the fully-qualified gRPC service name.
const AnalysisServiceName = "mediclaim.v1.AnalysisService"

const (
	methodAnalyze        = "/" + AnalysisServiceName + "/Analyze"
	methodSearchPackages = "/" + AnalysisServiceName + "/SearchPackages"
	metadataRequestID    = "x-request-id"
)

// AnalysisServiceServer is the server API. Messages are google.protobuf.Struct:
//
//	Analyze        {document: base64, mime_type?, name?}  -> {request_id, keywords, candidates, result}
//	SearchPackages {keywords: [string], limit?}           -> {count, packages}
type AnalysisServiceServer interface {
	Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchPackages(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// AnalysisServiceDesc describes the service for grpc.Server.RegisterService.
var AnalysisServiceDesc = grpc.ServiceDesc{
	ServiceName: AnalysisServiceName,
	HandlerType: (*AnalysisServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Analyze", Handler: analyzeHandler},
		{MethodName: "SearchPackages", Handler: searchPackagesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mediclaim/v1/analysis.proto",
}

func RegisterAnalysisServiceServer(s grpc.ServiceRegistrar, srv AnalysisServiceServer) {
	s.RegisterService(&AnalysisServiceDesc, srv)
}

func analyzeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalysisServiceServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodAnalyze}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalysisServiceServer).Analyze(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func searchPackagesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalysisServiceServer).SearchPackages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSearchPackages}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalysisServiceServer).SearchPackages(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// AnalysisServiceClient is the client API for AnalysisService.
type AnalysisServiceClient interface {
	Analyze(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SearchPackages(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type analysisServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAnalysisServiceClient(cc grpc.ClientConnInterface) AnalysisServiceClient {
	return &analysisServiceClient{cc: cc}
}

func (c *analysisServiceClient) Analyze(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodAnalyze, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *analysisServiceClient) SearchPackages(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodSearchPackages, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// AnalysisService implements AnalysisServiceServer over the worker pool and retriever.
type AnalysisService struct {
	deps   Deps
	logger *zap.Logger
}

func NewAnalysisService(deps Deps) (*AnalysisService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &AnalysisService{deps: deps, logger: common.OrNop(deps.Logger)}, nil
}

// NewGRPCServer returns a grpc.Server with the analysis and health services registered.
func NewGRPCServer(svc *AnalysisService, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(unaryRequestID(svc.logger))}, opts...)
	s := grpc.NewServer(opts...)
	RegisterAnalysisServiceServer(s, svc)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(AnalysisServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

func (s *AnalysisService) Analyze(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	encoded := strings.TrimSpace(fields["document"].GetStringValue())
	name := fields["name"].GetStringValue()

	v := common.NewValidator()
	v.Field("document", encoded, common.Required)
	v.Field("name", name, common.MaxLength(255))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("document must be base64: %v", err)
	}

	doc, err := ingest.NewDocument(name, fields["mime_type"].GetStringValue(), data)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}

	a, err := s.deps.Queue.Submit(ctx, doc)
	if err != nil {
		s.logger.Warn("grpc.analyze.failed", zap.String("req_id", common.RequestIDFromContext(ctx)), zap.Error(err))
		return nil, analysisStatus(err)
	}

	out, err := toStruct(a)
	if err != nil {
		return nil, common.InternalErrorf("encode analysis: %v", err)
	}
	return out, nil
}

func (s *AnalysisService) SearchPackages(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	v := common.NewValidator()

	var keywords []string
	for i, val := range fields["keywords"].GetListValue().GetValues() {
		if kw, ok := val.GetKind().(*structpb.Value_StringValue); ok {
			v.Field(fmt.Sprintf("keywords[%d]", i), kw.StringValue, common.MaxLength(200))
			keywords = append(keywords, kw.StringValue)
		}
	}
	limit := 0
	if val, ok := fields["limit"]; ok {
		n := val.GetNumberValue()
		if n < 0 || n != float64(int(n)) {
			v.Add("limit", n, "must be a non-negative integer")
		}
		limit = int(n)
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}

	packages := s.deps.Searcher.Search(keywords, limit)
	out, err := toStruct(map[string]any{"count": len(packages), "packages": packages})
	if err != nil {
		return nil, common.InternalErrorf("encode packages: %v", err)
	}
	return out, nil
}

// analysisStatus appends the failing paths and raw model text to the status message.
func analysisStatus(err error) error {
	if errors.Is(err, async.ErrQueueClosed) {
		return status.Error(codes.Unavailable, err.Error())
	}
	st := status.Convert(common.GRPCStatus(err))
	fields, raw := errorFields(err)
	if len(fields) == 0 && raw == "" {
		return st.Err()
	}
	msg := st.Message()
	if len(fields) > 0 {
		msg += " [fields: " + strings.Join(fields, ", ") + "]"
	}
	if raw != "" {
		msg += " [raw: " + raw + "]"
	}
	return status.Error(st.Code(), msg)
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func unaryRequestID(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(metadataRequestID); len(vals) > 0 {
				id = strings.TrimSpace(vals[0])
			}
		}
		if id == "" {
			id = uuid.New().String()
		}
		ctx = common.WithRequestID(ctx, id)
		_ = grpc.SetHeader(ctx, metadata.Pairs(metadataRequestID, id))

		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc.call",
			zap.String("req_id", id),
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return resp, err
	}
}

// MaxRecvMsgSize sizes the gRPC receive limit for base64 documents of up to maxUpload bytes.
func MaxRecvMsgSize(maxUpload int64) grpc.ServerOption {
	return grpc.MaxRecvMsgSize(int(maxUpload*4/3) + (1 << 20))
}

var _ AnalysisServiceServer = (*AnalysisService)(nil)
