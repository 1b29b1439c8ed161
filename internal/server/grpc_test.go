package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/mediclaim/internal/async"
	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/llm"
)

func dialTestGRPC(t *testing.T, q *fakeQueue) *grpc.ClientConn {
	t.Helper()
	svc, err := NewAnalysisService(testDeps(t, q))
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func analyzeRequest(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return req
}

func TestGRPCAnalyze(t *testing.T) {
	q := &fakeQueue{}
	client := NewAnalysisServiceClient(dialTestGRPC(t, q))

	ctx := metadata.AppendToOutgoingContext(testCtx(t), metadataRequestID, "grpc-req-1")
	var header metadata.MD
	out, err := client.Analyze(ctx, analyzeRequest(t, map[string]any{
		"document":  base64.StdEncoding.EncodeToString(pdfBytes),
		"mime_type": "application/pdf",
		"name":      "summary.pdf",
	}), grpc.Header(&header))
	require.NoError(t, err)

	assert.Equal(t, []string{"grpc-req-1"}, header.Get(metadataRequestID))
	m := out.AsMap()
	assert.Equal(t, "grpc-req-1", m["request_id"])
	rec := m["result"].(map[string]any)["package_recommendation"].(map[string]any)
	assert.Equal(t, "P001", rec["primary_package"].(map[string]any)["package_code"])

	docs := q.submitted()
	require.Len(t, docs, 1)
	assert.Equal(t, "summary.pdf", docs[0].Name)
	assert.Equal(t, pdfBytes, docs[0].Data)
}

func TestGRPCAnalyze_Errors(t *testing.T) {
	verrs := common.ValidationErrors{{Field: "package_recommendation.add_on_packages[0].package_code", Message: "is not a candidate"}}
	validDoc := map[string]any{"document": base64.StdEncoding.EncodeToString(pdfBytes), "name": "summary.pdf"}

	tests := []struct {
		name     string
		req      map[string]any
		queueErr error
		want     codes.Code
		contains string
	}{
		{"missing document", map[string]any{}, nil, codes.InvalidArgument, "'document'"},
		{"not base64", map[string]any{"document": "%%%"}, nil, codes.InvalidArgument, "base64"},
		{"unsupported media", map[string]any{"document": base64.StdEncoding.EncodeToString([]byte("hello")), "name": "notes.txt"}, nil, codes.InvalidArgument, "unsupported"},
		{"declared type not accepted", map[string]any{"document": base64.StdEncoding.EncodeToString(pdfBytes), "name": "scan.png", "mime_type": "image/gif"}, nil, codes.InvalidArgument, "unsupported"},
		{"validation", validDoc, fmt.Errorf("reason stage: %w", verrs), codes.FailedPrecondition, "add_on_packages[0].package_code"},
		{"malformed", validDoc, &llm.MalformedOutputError{Stage: "reason", Raw: "```oops", Err: errors.New("eof")}, codes.FailedPrecondition, "```oops"},
		{"generation", validDoc, fmt.Errorf("%w: quota", common.ErrGeneration), codes.Unavailable, "quota"},
		{"queue closed", validDoc, async.ErrQueueClosed, codes.Unavailable, "shutting down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueue{err: tt.queueErr}
			client := NewAnalysisServiceClient(dialTestGRPC(t, q))

			_, err := client.Analyze(testCtx(t), analyzeRequest(t, tt.req))
			require.Error(t, err)
			st := status.Convert(err)
			assert.Equal(t, tt.want, st.Code())
			assert.Contains(t, st.Message(), tt.contains)
		})
	}
}

func TestGRPCSearchPackages(t *testing.T) {
	client := NewAnalysisServiceClient(dialTestGRPC(t, &fakeQueue{}))

	out, err := client.SearchPackages(testCtx(t), analyzeRequest(t, map[string]any{
		"keywords": []any{"appendic", "knee"},
		"limit":    5,
	}))
	require.NoError(t, err)

	m := out.AsMap()
	assert.EqualValues(t, 2, m["count"])
	pkgs := m["packages"].([]any)
	assert.Equal(t, "P002", pkgs[0].(map[string]any)["package_code"])
	assert.Equal(t, "K001", pkgs[1].(map[string]any)["package_code"])

	_, err = client.SearchPackages(testCtx(t), analyzeRequest(t, map[string]any{"limit": -1}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCHealth(t *testing.T) {
	hc := healthpb.NewHealthClient(dialTestGRPC(t, &fakeQueue{}))

	resp, err := hc.Check(testCtx(t), &healthpb.HealthCheckRequest{Service: AnalysisServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
