//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package api implements the JSON endpoints of the generic decision point.
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/manetu/datasentinel/internal/logging"
	"github.com/manetu/datasentinel/pkg/core"
	"github.com/manetu/datasentinel/pkg/core/model"
	"github.com/manetu/datasentinel/pkg/core/payload"
)

var logger = logging.GetLogger("sentinel.api")

const agent = "api"

// Server implements the generic decision point API.
type Server struct {
	s core.Sentinel
}

// NewServer creates a new API server instance over the given sentinel.
func NewServer(s core.Sentinel) Server {
	return Server{s: s}
}

// RegisterHandlers wires every route of the API onto e.
func RegisterHandlers(e *echo.Echo, srv Server) {
	e.POST("/partner_request_data", srv.PartnerRequestData)
	e.POST("/bulk_partner_request", srv.BulkPartnerRequest)

	e.POST("/inject_trap", srv.InjectTrap)
	e.POST("/test_trap_value", srv.TestTrapValue)
	e.POST("/risk_score", srv.RiskScore)
	e.GET("/partner_traits/:partner", srv.PartnerTraits)

	e.POST("/generate_policy", srv.GeneratePolicy)
	e.GET("/policy", srv.Policy)
	e.POST("/generate_watermark", srv.GenerateWatermark)
	e.POST("/verify_watermark", srv.VerifyWatermark)
	e.GET("/decode_log", srv.DecodeLog)

	e.GET("/consent/:user", srv.Consent)
	e.POST("/update_consent", srv.UpdateConsent)

	e.POST("/restrict_access", srv.RestrictAccess)
	e.POST("/restrict_partner_access", srv.RestrictPartnerAccess)
	e.POST("/request_restriction", srv.RequestRestriction)
	e.POST("/request_admin_action", srv.RequestAdminAction)

	e.GET("/alerts/admin", srv.AdminAlerts)
	e.GET("/alerts/:user", srv.UserAlerts)
	e.GET("/user_notifications", srv.UserNotifications)
	e.GET("/user_trap_logs/:user", srv.UserTrapLogs)
	e.GET("/user_restricted_partners/:user", srv.UserRestrictedPartners)
	e.GET("/user_access_history/:user", srv.UserAccessHistory)

	e.GET("/admin/trap_logs", srv.AdminTrapLogs)
	e.GET("/admin/restricted_partners_detailed", srv.AdminRestrictedPartners)
	e.GET("/admin/partner_activity_summary", srv.AdminPartnerActivity)
	e.GET("/admin/user_activity_summary", srv.AdminUserActivity)
	e.POST("/admin/reset", srv.AdminReset)

	e.GET("/health", srv.Health)
}

// bind decodes the request body into v.  Binder failures, including an unsupported
// content type, surface as INVALID_REQUEST.
func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return badRequest("malformed JSON body: %v", he.Message)
		}
		return badRequest("malformed JSON body: %v", err)
	}
	return nil
}

// decodeAccessRequest decodes one access request and keeps its complete body for decoy
// scanning.
func decodeAccessRequest(data []byte) (model.AccessRequest, error) {
	var req model.AccessRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, badRequest("malformed access request: %v", err)
	}
	node, err := payload.Parse(data)
	if err != nil {
		return req, badRequest("malformed access request: %v", err)
	}
	req.Payload = node
	return req, nil
}

// PartnerRequestData decides a single access request.
func (srv Server) PartnerRequestData(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	req, err := decodeAccessRequest(data)
	if err != nil {
		return err
	}

	resp, err := srv.s.Decide(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// BulkPartnerRequest decides several access requests keyed by partner.
func (srv Server) BulkPartnerRequest(c echo.Context) error {
	var body BulkRequest
	if err := bind(c, &body); err != nil {
		return err
	}

	reqs := make([]model.AccessRequest, 0, len(body.Requests))
	for _, raw := range body.Requests {
		req, err := decodeAccessRequest(raw)
		if err != nil {
			return err
		}
		reqs = append(reqs, req)
	}

	resp, err := srv.s.DecideBulk(c.Request().Context(), reqs)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// InjectTrap plants a decoy.
func (srv Server) InjectTrap(c echo.Context) error {
	var body InjectTrapRequest
	if err := bind(c, &body); err != nil {
		return err
	}
	out, err := srv.s.InjectTrap(body.Document, body.TrapType)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// TestTrapValue scans a value for decoys.
func (srv Server) TestTrapValue(c echo.Context) error {
	var body TestTrapValueRequest
	if err := bind(c, &body); err != nil {
		return err
	}
	hit, err := srv.s.TestTrapValue(c.Request().Context(), body.PartnerID, body.Value)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TestTrapValueResponse{Detected: hit})
}

func riskOf(snap model.PartnerSnapshot) RiskScoreResponse {
	return RiskScoreResponse{
		PartnerID:       snap.ID,
		Score:           snap.Score,
		Traits:          snap.Traits,
		TrapHits:        snap.TrapHits,
		DeceptionActive: snap.DeceptionActive,
	}
}

// RiskScore returns a partner's score and traits.
func (srv Server) RiskScore(c echo.Context) error {
	var body PartnerRequest
	if err := bind(c, &body); err != nil {
		return err
	}
	if body.PartnerID == "" {
		return badRequest("partnerId is required")
	}
	return c.JSON(http.StatusOK, riskOf(srv.s.RiskScore(body.PartnerID)))
}

// PartnerTraits returns a partner's score and traits by path.
func (srv Server) PartnerTraits(c echo.Context) error {
	return c.JSON(http.StatusOK, riskOf(srv.s.RiskScore(c.Param("partner"))))
}

// GeneratePolicy replaces the active policy.
func (srv Server) GeneratePolicy(c echo.Context) error {
	var body GeneratePolicyRequest
	if err := bind(c, &body); err != nil {
		return err
	}
	p, err := srv.s.GeneratePolicy(body.Purpose, body.DaysValid, body.Region, body.Users)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Policy returns the active policy.
func (srv Server) Policy(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.s.CurrentPolicy())
}

// GenerateWatermark fingerprints content.
func (srv Server) GenerateWatermark(c echo.Context) error {
	var body WatermarkRequest
	if err := bind(c, &body); err != nil {
		return err
	}
	if body.Content == "" || body.PartnerID == "" {
		return badRequest("content and partnerId are required")
	}
	return c.JSON(http.StatusOK, WatermarkResponse{Watermark: srv.s.GenerateWatermark(body.Content, body.PartnerID)})
}

// VerifyWatermark traces a leaked watermark back to its partner.
func (srv Server) VerifyWatermark(c echo.Context) error {
	var body VerifyWatermarkRequest
	if err := bind(c, &body); err != nil {
		return err
	}
	w, err := srv.s.VerifyWatermark(body.Watermark)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, VerifyWatermarkResponse{Culprit: w.Partner, Timestamp: w.Timestamp})
}

// DecodeLog lists the watermark trace attempts.
func (srv Server) DecodeLog(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.s.DecodeLog())
}

// Consent returns a user's consent record.
func (srv Server) Consent(c echo.Context) error {
	u, err := srv.s.Consent(c.Param("user"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateConsent patches a user's consent flags.
func (srv Server) UpdateConsent(c echo.Context) error {
	var body UpdateConsentRequest
	if err := bind(c, &body); err != nil {
		return err
	}
	if body.UserID == "" {
		return badRequest("userId is required")
	}
	u, err := srv.s.UpdateConsent(body.UserID, body.Consent)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// RestrictAccess applies an administrative block or expiry.
func (srv Server) RestrictAccess(c echo.Context) error {
	var body RestrictAccessRequest
	if err := bind(c, &body); err != nil {
		return err
	}
	action, err := model.ParseRestrictAction(body.Action)
	if err != nil {
		return badRequest("%v", err)
	}
	if err := srv.s.RestrictAccess(body.PartnerID, body.UserID, action); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: string(action)})
}

// RestrictPartnerAccess blocks a partner for every user.
func (srv Server) RestrictPartnerAccess(c echo.Context) error {
	var body PartnerRequest
	if err := bind(c, &body); err != nil {
		return err
	}
	users, err := srv.s.RestrictPartner(body.PartnerID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, RestrictPartnerResponse{PartnerID: body.PartnerID, Users: users})
}

// RequestRestriction lets a user block a partner.
func (srv Server) RequestRestriction(c echo.Context) error {
	var body PairRequest
	if err := bind(c, &body); err != nil {
		return err
	}
	if err := srv.s.RequestRestriction(body.PartnerID, body.UserID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "restricted"})
}

// RequestAdminAction records a user escalation.
func (srv Server) RequestAdminAction(c echo.Context) error {
	var body EscalationRequest
	if err := bind(c, &body); err != nil {
		return err
	}
	a, err := srv.s.Escalate(body.UserID, body.PartnerID, body.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// AdminAlerts lists every alert.
func (srv Server) AdminAlerts(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.s.Alerts())
}

// UserAlerts lists the alerts naming a user.
func (srv Server) UserAlerts(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.s.AlertsForUser(c.Param("user")))
}

// UserNotifications lists a user's notifications, or all of them without user_id.
func (srv Server) UserNotifications(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.s.Notifications(c.QueryParam("user_id")))
}

// UserTrapLogs lists decoys triggered by partners that accessed the user.
func (srv Server) UserTrapLogs(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.s.TrapLogsForUser(c.Param("user")))
}

// UserRestrictedPartners lists the partners blocked for a user.
func (srv Server) UserRestrictedPartners(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.s.RestrictedPartners(c.Param("user")))
}

// UserAccessHistory lists a user's forensic records.
func (srv Server) UserAccessHistory(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.s.AccessHistory(c.Param("user")))
}

// AdminTrapLogs lists every registered decoy.
func (srv Server) AdminTrapLogs(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.s.TrapTokens())
}

// AdminRestrictedPartners lists restricted partners with their risk posture.
func (srv Server) AdminRestrictedPartners(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.s.RestrictedPartnersDetailed())
}

// AdminPartnerActivity summarizes partner activity.
func (srv Server) AdminPartnerActivity(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.s.PartnerActivity())
}

// AdminUserActivity summarizes user activity.
func (srv Server) AdminUserActivity(c echo.Context) error {
	return c.JSON(http.StatusOK, srv.s.UserActivity())
}

// AdminReset returns every registry to its seeded condition.
func (srv Server) AdminReset(c echo.Context) error {
	srv.s.Reset()
	logger.Warn(agent, "reset", "sentinel state reset")
	return c.JSON(http.StatusOK, StatusResponse{Status: "reset"})
}

// Health reports liveness.
func (srv Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}
