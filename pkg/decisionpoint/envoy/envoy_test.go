//
//  Copyright © Manetu Inc. All rights reserved.
//

package envoy

import (
	"context"
	"fmt"
	"testing"
	"time"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/manetu/datasentinel/internal/core/test"
	"github.com/manetu/datasentinel/pkg/core"
	"github.com/manetu/datasentinel/pkg/core/model"
)

const testKey = "envoy-secret"

func setupTestSentinel(t *testing.T) core.Sentinel {
	s, _, err := test.NewTestSentinel(1024)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func checkRequest(headers map[string]string, body string) *authv3.CheckRequest {
	return &authv3.CheckRequest{
		Attributes: &authv3.AttributeContext{
			Request: &authv3.AttributeContext_Request{
				Http: &authv3.AttributeContext_HttpRequest{
					Host:    "records.internal",
					Path:    "/users/user1",
					Method:  "POST",
					Headers: headers,
					Body:    body,
				},
			},
		},
	}
}

func headerValue(headers []*corev3.HeaderValueOption, key string) string {
	for _, h := range headers {
		if h.GetHeader().GetKey() == key {
			return h.GetHeader().GetValue()
		}
	}
	return ""
}

func TestCheck_Allow(t *testing.T) {
	s := setupTestSentinel(t)
	srv := NewExtAuthzServer(s, testKey)

	resp, err := srv.Check(context.Background(), checkRequest(map[string]string{
		APIKeyHeader:  testKey,
		PartnerHeader: "p1",
		UserHeader:    "user1",
	}, ""))
	require.NoError(t, err)

	assert.Equal(t, int32(codes.OK), resp.GetStatus().GetCode())
	ok := resp.GetOkResponse()
	require.NotNil(t, ok)
	assert.Equal(t, resultAllowed, headerValue(ok.GetHeaders(), resultHeader))
	assert.Equal(t, "0", headerValue(ok.GetHeaders(), RiskHeader))
	assert.Equal(t, "false", headerValue(ok.GetHeaders(), DeceptionHeader))

	meta := resp.GetDynamicMetadata().AsMap()
	assert.EqualValues(t, 0, meta["score"])
	assert.Equal(t, false, meta["deception"])
	assert.Equal(t, []interface{}{}, meta["traits"])
}

func TestCheck_Unauthenticated(t *testing.T) {
	s := setupTestSentinel(t)
	srv := NewExtAuthzServer(s, testKey)

	for _, key := range []string{"", "wrong"} {
		resp, err := srv.Check(context.Background(), checkRequest(map[string]string{
			APIKeyHeader:  key,
			PartnerHeader: "p1",
		}, ""))
		require.NoError(t, err)
		assert.Equal(t, int32(codes.Unauthenticated), resp.GetStatus().GetCode())
		assert.Equal(t, typev3.StatusCode_Unauthorized, resp.GetDeniedResponse().GetStatus().GetCode())
	}
}

func TestCheck_MissingPartner(t *testing.T) {
	s := setupTestSentinel(t)
	srv := NewExtAuthzServer(s, testKey)

	resp, err := srv.Check(context.Background(), checkRequest(map[string]string{APIKeyHeader: testKey}, ""))
	require.NoError(t, err)
	assert.Equal(t, int32(codes.InvalidArgument), resp.GetStatus().GetCode())
}

func TestCheck_Restricted(t *testing.T) {
	s := setupTestSentinel(t)
	srv := NewExtAuthzServer(s, testKey)

	require.NoError(t, s.RestrictAccess("p1", "user1", model.ActionBlock))

	resp, err := srv.Check(context.Background(), checkRequest(map[string]string{
		APIKeyHeader:  testKey,
		PartnerHeader: "p1",
		UserHeader:    "user1",
	}, ""))
	require.NoError(t, err)
	assert.Equal(t, int32(codes.PermissionDenied), resp.GetStatus().GetCode())
	denied := resp.GetDeniedResponse()
	require.NotNil(t, denied)
	assert.Equal(t, typev3.StatusCode_Forbidden, denied.GetStatus().GetCode())
	assert.Equal(t, resultDenied, headerValue(denied.GetHeaders(), resultHeader))

	// other users are unaffected
	resp, err = srv.Check(context.Background(), checkRequest(map[string]string{
		APIKeyHeader:  testKey,
		PartnerHeader: "p1",
		UserHeader:    "user2",
	}, ""))
	require.NoError(t, err)
	assert.Equal(t, int32(codes.OK), resp.GetStatus().GetCode())
}

func TestCheck_DecoyInBody(t *testing.T) {
	s := setupTestSentinel(t)
	srv := NewExtAuthzServer(s, testKey)

	inj, err := s.InjectTrap("contact jane@corp.example", "email")
	require.NoError(t, err)

	resp, err := srv.Check(context.Background(), checkRequest(map[string]string{
		APIKeyHeader:  testKey,
		PartnerHeader: "p5",
	}, `{"email":"`+inj.TrapValue+`"}`))
	require.NoError(t, err)

	ok := resp.GetOkResponse()
	require.NotNil(t, ok)
	assert.Equal(t, "80", headerValue(ok.GetHeaders(), RiskHeader))
	assert.Equal(t, "true", headerValue(ok.GetHeaders(), DeceptionHeader))
	assert.Equal(t, []interface{}{"reckless"}, resp.GetDynamicMetadata().AsMap()["traits"])
}

func TestCheck_DecoyHitsRestrictNamedUser(t *testing.T) {
	s := setupTestSentinel(t)
	srv := NewExtAuthzServer(s, testKey)

	inj, err := s.InjectTrap("ref account 1234567", "id")
	require.NoError(t, err)

	headers := map[string]string{
		APIKeyHeader:  testKey,
		PartnerHeader: "p6",
		UserHeader:    "user2",
	}
	body := `{"lookup":{"ref":"` + inj.TrapValue + `"}}`

	for i := 0; i < 2; i++ {
		resp, err := srv.Check(context.Background(), checkRequest(headers, body))
		require.NoError(t, err)
		assert.Equal(t, int32(codes.OK), resp.GetStatus().GetCode())
	}
	assert.Empty(t, s.RestrictedPartners("user2"))

	// the third hit blocks p6 for the user named in the header
	resp, err := srv.Check(context.Background(), checkRequest(headers, body))
	require.NoError(t, err)
	assert.Equal(t, int32(codes.PermissionDenied), resp.GetStatus().GetCode())
	assert.Equal(t, []string{"p6"}, s.RestrictedPartners("user2"))
	assert.Equal(t, 3, s.RiskScore("p6").TrapHits)

	// a plain-text body is scanned as a single value
	resp, err = srv.Check(context.Background(), checkRequest(map[string]string{
		APIKeyHeader:  testKey,
		PartnerHeader: "p7",
	}, "ref="+inj.TrapValue))
	require.NoError(t, err)
	assert.Equal(t, "80", headerValue(resp.GetOkResponse().GetHeaders(), RiskHeader))
}

func TestEnvoyServer_GRPC(t *testing.T) {
	s := setupTestSentinel(t)
	port := 19000 + time.Now().Nanosecond()%1000

	server, err := CreateServer(s, port, testKey)
	require.NoError(t, err)

	extAuthzServer := server.(*ExtAuthzServer)
	var actualPort int
	select {
	case actualPort = <-extAuthzServer.grpcPort:
	case <-time.After(5 * time.Second):
		t.Fatal("Server failed to start within timeout")
	}

	conn, err := grpc.NewClient(
		fmt.Sprintf("localhost:%d", actualPort),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := authv3.NewAuthorizationClient(conn).Check(ctx, checkRequest(map[string]string{
		APIKeyHeader:  testKey,
		PartnerHeader: "p1",
	}, ""))
	require.NoError(t, err)
	assert.Equal(t, int32(codes.OK), resp.GetStatus().GetCode())

	assert.NoError(t, server.Stop(ctx))
}
