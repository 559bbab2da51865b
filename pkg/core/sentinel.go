//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package core provides the primary interface for the Data Sentinel, a risk-adaptive
// access-decision engine that sits between data partners and user records.
//
// Every access request is scanned for planted decoys, each requested user is run through
// an ordered admission pipeline (restriction, consent, expiry, region, behaviour), and the
// partner's risk score is updated along the way.  Partners whose score crosses the
// deception threshold silently receive synthetic records instead of real ones.
//
// # Quick Start
//
// Create a sentinel seeded from configuration:
//
//	s, err := core.NewSentinel()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
// Decide a request:
//
//	resp, err := s.Decide(ctx, model.AccessRequest{
//	    PartnerID:      "partner-a",
//	    Region:         "IN",
//	    Purpose:        "analytics",
//	    RequestedUsers: []string{"user1"},
//	})
//
// # Configuration
//
// Defaults come from the [config] package and can be overridden with functional options:
//
//	s, err := core.NewSentinel(
//	    options.WithAccessLog(accesslog.NewStdoutFactory()),
//	    options.WithScoreClamp(true),
//	)
//
// See the [options] package for all available configuration options.
package core

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/manetu/datasentinel/internal/core"
	"github.com/manetu/datasentinel/internal/core/consent"
	"github.com/manetu/datasentinel/internal/logging"
	"github.com/manetu/datasentinel/pkg/core/accesslog"
	"github.com/manetu/datasentinel/pkg/core/config"
	"github.com/manetu/datasentinel/pkg/core/model"
	"github.com/manetu/datasentinel/pkg/core/options"
	"github.com/manetu/datasentinel/pkg/core/payload"
	"github.com/manetu/datasentinel/pkg/core/seed"
)

var logger = logging.GetLogger("sentinel")
var agent = "sentinel"

// Sentinel is the primary interface of the access-decision engine.  Implementations are
// safe for concurrent use by multiple goroutines.
type Sentinel interface {
	// Decide evaluates an access request.  Only validation failures are returned as
	// errors; every other failure is a per-user denial in the response.
	Decide(ctx context.Context, req model.AccessRequest) (*model.AccessResponse, error)

	// DecideBulk evaluates several requests and keys the responses by partner.
	DecideBulk(ctx context.Context, reqs []model.AccessRequest) (map[string]*model.AccessResponse, error)

	// InjectTrap plants a decoy of the given type into document.
	InjectTrap(document, trapType string) (*model.TrapInjection, error)

	// TestTrapValue checks value for registered decoys on behalf of partnerID.
	TestTrapValue(ctx context.Context, partnerID, value string) (bool, error)

	// DetectTrapUsage scans a payload for registered decoys on behalf of partnerID and
	// attributes a hit to userID.
	DetectTrapUsage(ctx context.Context, partnerID, userID string, node payload.Node) (bool, error)

	// RiskScore returns the partner's current risk posture.
	RiskScore(partnerID string) model.PartnerSnapshot

	// GenerateWatermark fingerprints content for partnerID and records the issuance.
	GenerateWatermark(content, partnerID string) string

	// VerifyWatermark traces a leaked watermark to the partner it was issued to.
	VerifyWatermark(leaked string) (model.WatermarkIssue, error)

	// DecodeLog lists every watermark trace attempt.
	DecodeLog() []model.WatermarkDecode

	// CurrentPolicy and GeneratePolicy read and replace the active data-sharing policy.
	CurrentPolicy() model.Policy
	GeneratePolicy(purpose string, daysValid int, region string, users []string) (model.Policy, error)

	// Consent and UpdateConsent read and patch a user's capability matrix.
	Consent(userID string) (model.User, error)
	UpdateConsent(userID string, patch model.Consent) (model.User, error)

	// RestrictAccess, RestrictPartner and RequestRestriction block partners.  Blocks are
	// permanent.
	RestrictAccess(partnerID, userID string, action model.RestrictAction) error
	RestrictPartner(partnerID string) ([]string, error)
	RequestRestriction(partnerID, userID string) error

	// Escalate records a user's request for administrator attention.
	Escalate(userID, partnerID, reason string) (model.Alert, error)

	Alerts() []model.Alert
	AlertsForUser(userID string) []model.Alert
	Notifications(userID string) []model.Notification
	AccessHistory(userID string) []model.AccessRecord
	TrapTokens() []model.TrapToken
	TrapLogsForUser(userID string) []model.TrapToken
	RestrictedPartners(userID string) []string
	RestrictedPartnersDetailed() []model.RestrictedPartner
	PartnerActivity() map[string]model.PartnerActivity
	UserActivity() map[string]model.UserActivity

	// Reset returns every registry to its seeded condition.
	Reset()

	// Close releases the access-log stream.
	Close()
}

// SentinelImpl is the default implementation of [Sentinel].  It can be embedded by
// applications that need to wrap individual operations.
//
// Use [NewSentinel] to create a properly initialized instance.
type SentinelImpl struct {
	*core.Engine
}

// NewSentinel loads configuration, derives the default engine options from it, applies
// engineOptions on top and builds the engine.
//
// Returns an error if configuration loading fails, the users file cannot be read or the
// access log cannot be opened.
func NewSentinel(engineOptions ...options.EngineOptionsFunc) (Sentinel, error) {
	err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "error loading config")
	}

	opts, err := defaultOptions()
	if err != nil {
		return nil, err
	}
	for _, o := range engineOptions {
		o(opts)
	}

	engine, err := core.NewEngine(opts)
	if err != nil {
		return nil, err
	}

	return &SentinelImpl{Engine: engine}, nil
}

func defaultOptions() (*options.EngineOptions, error) {
	v := config.VConfig

	users := consent.DefaultUsers()
	if path := v.GetString(config.UsersFile); path != "" {
		loaded, err := seed.Load(path)
		if err != nil {
			return nil, errors.Wrapf(err, "loading users from %s", path)
		}
		logger.SysInfof("loaded %d users from %s", len(loaded), path)
		users = loaded
	}

	opts := &options.EngineOptions{
		AccessLogFactory: accesslog.NewIoWriterFactoryWithOptions(os.Stdout, accesslog.Options{
			PrettyPrint: v.GetBool(config.AccessLogPretty),
		}),
		Users:         users,
		ScoreClamp:    v.GetBool(config.RiskClamp),
		RiskWindow:    v.GetDuration(config.RiskWindow),
		AuditMetadata: config.GetAuditEnv(),
	}

	options.WithDeceptionLatency(
		v.GetDuration(config.DeceptionLatencyMin),
		v.GetDuration(config.DeceptionLatencyMax))(opts)

	opts.Policy = consent.GeneratePolicy(
		v.GetString(config.PolicyPurpose),
		v.GetInt(config.PolicyDays),
		v.GetString(config.PolicyRegion),
		time.Now())

	logger.Debugf(agent, "defaultOptions", "window=%s clamp=%t latency=[%s,%s] region=%s",
		opts.RiskWindow, opts.ScoreClamp, opts.LatencyMin, opts.LatencyMax, opts.Policy.GeoRestriction)
	return opts, nil
}
