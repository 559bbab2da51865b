//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package envoy exposes the sentinel as an Envoy external authorization service, so
// partner traffic proxied through Envoy is checked against the restriction registry and
// scanned for planted decoys before it reaches upstream services.
package envoy

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	"google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/manetu/datasentinel/internal/logging"
	"github.com/manetu/datasentinel/pkg/core"
	"github.com/manetu/datasentinel/pkg/core/payload"
	"github.com/manetu/datasentinel/pkg/decisionpoint"
)

var logger = logging.GetLogger("sentinel.decisionpoint")

const agent string = "envoy"

// Request headers read from the proxied call.
const (
	APIKeyHeader  = "x-api-key"
	PartnerHeader = "x-partner-id"
	UserHeader    = "x-user-id"
)

// Response headers added to allowed calls.
const (
	RiskHeader      = "x-sentinel-risk"
	DeceptionHeader = "x-sentinel-deception"

	resultHeader  = "x-ext-authz-check-result"
	resultAllowed = "allowed"
	resultDenied  = "denied"
)

// ExtAuthzServer implements the ext_authz v3 gRPC check request API.
type ExtAuthzServer struct {
	grpcServer *grpc.Server
	s          core.Sentinel
	apiKey     string

	// For test only
	grpcPort chan int
}

// NewExtAuthzServer returns an unstarted server; use [CreateServer] to listen.
func NewExtAuthzServer(s core.Sentinel, apiKey string) *ExtAuthzServer {
	return &ExtAuthzServer{
		grpcPort: make(chan int, 1),
		s:        s,
		apiKey:   apiKey,
	}
}

func logRequest(result string, request *authv3.CheckRequest) {
	httpAttrs := request.GetAttributes().GetRequest().GetHttp()
	logger.Tracef(agent, "logRequest", "[gRPCv3][%s]: %s%s", result, httpAttrs.GetHost(), httpAttrs.GetPath())
}

func header(key, value string) *corev3.HeaderValueOption {
	return &corev3.HeaderValueOption{
		Header: &corev3.HeaderValue{Key: key, Value: value},
	}
}

func (s *ExtAuthzServer) allow(request *authv3.CheckRequest, partnerID string) (*authv3.CheckResponse, error) {
	logRequest(resultAllowed, request)

	snap := s.s.RiskScore(partnerID)
	traits := make([]interface{}, 0)
	for _, t := range snap.Traits.Strings() {
		traits = append(traits, t)
	}
	meta, err := structpb.NewStruct(map[string]interface{}{
		"score":     snap.Score,
		"traits":    traits,
		"deception": snap.DeceptionActive,
	})
	if err != nil {
		return nil, err
	}

	return &authv3.CheckResponse{
		HttpResponse: &authv3.CheckResponse_OkResponse{
			OkResponse: &authv3.OkHttpResponse{
				Headers: []*corev3.HeaderValueOption{
					header(resultHeader, resultAllowed),
					header(RiskHeader, strconv.Itoa(snap.Score)),
					header(DeceptionHeader, strconv.FormatBool(snap.DeceptionActive)),
				},
			},
		},
		DynamicMetadata: meta,
		Status:          &status.Status{Code: int32(codes.OK)},
	}, nil
}

func (s *ExtAuthzServer) deny(request *authv3.CheckRequest, code codes.Code, httpCode typev3.StatusCode, reason string) *authv3.CheckResponse {
	logRequest(resultDenied, request)
	return &authv3.CheckResponse{
		HttpResponse: &authv3.CheckResponse_DeniedResponse{
			DeniedResponse: &authv3.DeniedHttpResponse{
				Status:  &typev3.HttpStatus{Code: httpCode},
				Body:    reason,
				Headers: []*corev3.HeaderValueOption{header(resultHeader, resultDenied)},
			},
		},
		Status: &status.Status{Code: int32(code), Message: reason},
	}
}

// bodyPayload scans JSON bodies structurally and anything else as a single string.
func bodyPayload(body string) payload.Node {
	if node, err := payload.Parse([]byte(body)); err == nil {
		return node
	}
	return payload.StringLeaf(body)
}

// Check implements gRPC v3 check request.  Calls without the shared secret or a partner
// id are rejected; calls naming a user the partner is restricted for are denied.  Any
// request body is scanned for decoys and scored against the partner, attributed to the
// named user, before the decision.
func (s *ExtAuthzServer) Check(ctx context.Context, request *authv3.CheckRequest) (*authv3.CheckResponse, error) {
	httpAttrs := request.GetAttributes().GetRequest().GetHttp()
	headers := httpAttrs.GetHeaders()

	if subtle.ConstantTimeCompare([]byte(headers[APIKeyHeader]), []byte(s.apiKey)) != 1 {
		return s.deny(request, codes.Unauthenticated, typev3.StatusCode_Unauthorized, "invalid or missing api key"), nil
	}

	partnerID := headers[PartnerHeader]
	if partnerID == "" {
		return s.deny(request, codes.InvalidArgument, typev3.StatusCode_BadRequest, PartnerHeader+" is required"), nil
	}

	userID := headers[UserHeader]
	if body := httpAttrs.GetBody(); body != "" {
		hit, err := s.s.DetectTrapUsage(ctx, partnerID, userID, bodyPayload(body))
		if err != nil {
			logger.Warnf(agent, "check", "decoy scan for %s incomplete: %v", partnerID, err)
		}
		if hit {
			logger.Warnf(agent, "check", "partner %s sent a planted decoy through the proxy", partnerID)
		}
	}

	if userID != "" && slices.Contains(s.s.RestrictedPartners(userID), partnerID) {
		return s.deny(request, codes.PermissionDenied, typev3.StatusCode_Forbidden, "Access permanently revoked due to misuse"), nil
	}

	return s.allow(request, partnerID)
}

func (s *ExtAuthzServer) startGRPC(address string, wg *sync.WaitGroup) {
	logger.Infof(agent, "start", "Starting Envoy External Authorization gRPC server on %s", address)
	defer func() {
		wg.Done()
		logger.SysInfof("Stopped gRPC server")
	}()

	listener, err := net.Listen("tcp", address)
	if err != nil {
		logger.Errorf(agent, "net.listen", "Failed to start gRPC server: %v", err)
		return
	}

	s.grpcServer = grpc.NewServer()
	authv3.RegisterAuthorizationServer(s.grpcServer, s)

	// Store the port for test only. Must be after grpcServer is set to avoid race condition.
	s.grpcPort <- listener.Addr().(*net.TCPAddr).Port

	logger.SysInfof("Starting gRPC server at %s", listener.Addr())
	if err := s.grpcServer.Serve(listener); err != nil {
		logger.Errorf(agent, "grpc.start", "Failed to serve gRPC server: %v", err)
		return
	}
}

func (s *ExtAuthzServer) run(grpcAddr string) {
	var wg sync.WaitGroup
	wg.Add(1)
	go s.startGRPC(grpcAddr, &wg)
	wg.Wait()
}

// CreateServer creates and starts a new Envoy External Authorization server.
func CreateServer(s core.Sentinel, port int, apiKey string) (decisionpoint.Server, error) {
	srv := NewExtAuthzServer(s, apiKey)
	go srv.run(fmt.Sprintf(":%d", port))
	return srv, nil
}

// Stop gracefully stops the ExtAuthzServer by stopping the underlying gRPC server.
func (s *ExtAuthzServer) Stop(ctx context.Context) error {
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	logger.SysInfof("GRPC server stopped")

	return nil
}
