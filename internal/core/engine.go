//
//  Copyright © Manetu Inc. All rights reserved.
//

package core

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/manetu/datasentinel/internal/core/deception"
	"github.com/manetu/datasentinel/internal/core/notify"
	"github.com/manetu/datasentinel/internal/logging"
	"github.com/manetu/datasentinel/internal/metrics"
	"github.com/manetu/datasentinel/pkg/common"
	"github.com/manetu/datasentinel/pkg/core/accesslog"
	"github.com/manetu/datasentinel/pkg/core/model"
	"github.com/manetu/datasentinel/pkg/core/options"
	"github.com/manetu/datasentinel/pkg/core/payload"
)

var logger = logging.GetLogger("sentinel")

const agent = "sentinel"

// Engine orchestrates trap detection, the per-user admission pipeline, deception, and the
// notification and forensic side effects of every access request.
type Engine struct {
	state     *State
	audit     accesslog.Stream
	deception *deception.Controller
	notifier  *notify.Dispatcher
	now       func() time.Time
}

// NewEngine builds the registries and collaborators from fully resolved options.
func NewEngine(opts *options.EngineOptions) (*Engine, error) {
	if opts.AccessLogFactory == nil {
		opts.AccessLogFactory = accesslog.NewNullFactory()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	stream, err := opts.AccessLogFactory.NewStream()
	if err != nil {
		return nil, errors.Wrap(err, "opening access log")
	}

	state := NewState(StateConfig{
		Users:         opts.Users,
		Policy:        opts.Policy,
		Stream:        stream,
		AuditMetadata: opts.AuditMetadata,
		Clock:         opts.Clock,
		RiskWindow:    opts.RiskWindow,
		ScoreClamp:    opts.ScoreClamp,
	})

	return &Engine{
		state: state,
		audit: stream,
		deception: deception.New(state.Ledger, opts.Generator, state.Journal,
			deception.WithLatency(opts.LatencyMin, opts.LatencyMax),
			deception.WithClock(opts.Clock)),
		notifier: notify.New(state.Ledger, state.Restrictions, state.Journal, opts.Clock),
		now:      opts.Clock,
	}, nil
}

// State exposes the registries.
func (e *Engine) State() *State {
	return e.state
}

// Reset returns every registry to its seeded condition.
func (e *Engine) Reset() {
	e.state.Reset()
}

// Close releases the access-log stream.
func (e *Engine) Close() {
	if e.audit != nil {
		e.audit.Close()
	}
}

func validate(req *model.AccessRequest) error {
	switch {
	case req.PartnerID == "":
		return common.NewError(common.InvalidRequest, "partnerId is required")
	case len(req.RequestedUsers) == 0:
		return common.NewError(common.InvalidRequest, "requestedUsers must not be empty")
	case req.Region == "":
		return common.NewError(common.InvalidRequest, "region is required")
	}
	return nil
}

// requestPayload returns the node to scan for decoys.  Without a raw payload, the named
// request fields are scanned.
func requestPayload(req *model.AccessRequest) payload.Node {
	if req.Payload != nil {
		return req.Payload
	}
	users := make(payload.MappingNode, len(req.RequestedUsers))
	for i, u := range req.RequestedUsers {
		users[strconv.Itoa(i)] = payload.StringLeaf(u)
	}
	return payload.MappingNode{
		"partnerId":      payload.StringLeaf(req.PartnerID),
		"region":         payload.StringLeaf(req.Region),
		"purpose":        payload.StringLeaf(req.Purpose),
		"requestedUsers": users,
	}
}

func dedupe(users []string) []string {
	seen := make(map[string]bool, len(users))
	out := make([]string, 0, len(users))
	for _, u := range users {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// Decide evaluates an access request.  Validation failures are returned before any state
// is touched; every other failure degrades to a denial for the affected user.  Users are
// evaluated concurrently, and side effects committed for a user stand even if ctx ends
// before the remaining users are decided.
func (e *Engine) Decide(ctx context.Context, req model.AccessRequest) (*model.AccessResponse, error) {
	logger.Debug(agent, "decide", "Enter")
	defer logger.Debug(agent, "decide", "Exit")

	if err := validate(&req); err != nil {
		return nil, err
	}

	resp := &model.AccessResponse{
		PartnerID: req.PartnerID,
		Decisions: make(map[string]model.AccessDecision),
		Data:      make(map[string]map[string]string),
	}

	users := dedupe(req.RequestedUsers)

	// a single-user request attributes the trap hit to that user
	var suspect string
	if len(users) == 1 {
		suspect = users[0]
	}
	hit, err := e.state.Traps.DetectUsageFor(ctx, req.PartnerID, suspect, requestPayload(&req))
	if err != nil {
		logger.Warnf(agent, "decide", "trap penalty for %s not applied: %v", req.PartnerID, err)
	}
	if hit {
		resp.TrapTriggered = true
		e.state.Journal.AppendAlert(model.Alert{
			Type:    model.AlertTrapTriggered,
			Partner: req.PartnerID,
			User:    suspect,
			Risk:    e.state.Ledger.Score(req.PartnerID),
			Message: "Partner " + req.PartnerID + " submitted a planted decoy value",
		})
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(user string, d model.AccessDecision, data map[string]string) {
		mu.Lock()
		defer mu.Unlock()
		resp.Decisions[user] = d
		if data != nil {
			resp.Data[user] = data
		}
	}

	deceive := e.deception.IsActive(req.PartnerID)
	policy := e.state.Policy.Current()

	for _, user := range users {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			// a permanent restriction outranks deception
			if deceive && !e.state.Restrictions.IsRestricted(req.PartnerID, user) {
				d, data := e.serveSynthetic(ctx, &req, user, policy)
				record(user, d, data)
				return
			}
			d, data := e.evaluate(ctx, &req, user, policy)
			record(user, d, data)
		}(user)
	}
	wg.Wait()

	return resp, nil
}

func (e *Engine) serveSynthetic(ctx context.Context, req *model.AccessRequest, user string, policy model.Policy) (model.AccessDecision, map[string]string) {
	data, err := e.deception.Serve(ctx, req.PartnerID, user)
	if err != nil {
		logger.Debugf(agent, "deceive", "synthetic delivery to %s for %s aborted: %v", req.PartnerID, user, err)
		d := model.Denied(reasonUnavailable)
		e.deny(req, user, d)
		return d, nil
	}
	metrics.DecisionsTotal.WithLabelValues(string(model.StatusGranted), string(model.SourceSynthetic)).Inc()
	return model.Granted(policy.ExpiryDate), data
}

// DecideBulk evaluates several requests and keys the responses by partner.  Requests for
// the same partner are merged.  Any invalid request rejects the whole batch before
// evaluation starts.
func (e *Engine) DecideBulk(ctx context.Context, reqs []model.AccessRequest) (map[string]*model.AccessResponse, error) {
	if len(reqs) == 0 {
		return nil, common.NewError(common.InvalidRequest, "requests must not be empty")
	}
	for i := range reqs {
		if err := validate(&reqs[i]); err != nil {
			return nil, errors.Wrapf(err, "request %d", i)
		}
	}

	out := make(map[string]*model.AccessResponse)
	for _, req := range reqs {
		resp, err := e.Decide(ctx, req)
		if err != nil {
			return nil, err
		}
		prev, ok := out[req.PartnerID]
		if !ok {
			out[req.PartnerID] = resp
			continue
		}
		for u, d := range resp.Decisions {
			prev.Decisions[u] = d
		}
		for u, d := range resp.Data {
			prev.Data[u] = d
		}
		prev.TrapTriggered = prev.TrapTriggered || resp.TrapTriggered
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
