//
//  Copyright © Manetu Inc. All rights reserved.
//

package decide

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/manetu/datasentinel/cmd/sentinel/common"
	"github.com/manetu/datasentinel/pkg/core/model"
	"github.com/manetu/datasentinel/pkg/core/payload"
)

// parseRequests accepts a single access request or an array of them.
func parseRequests(data []byte) ([]model.AccessRequest, error) {
	data = bytes.TrimSpace(data)

	var raws []json.RawMessage
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, err
		}
	} else {
		raws = []json.RawMessage{data}
	}

	reqs := make([]model.AccessRequest, 0, len(raws))
	for i, raw := range raws {
		var req model.AccessRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, errors.Wrapf(err, "request %d", i)
		}
		node, err := payload.Parse(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "request %d", i)
		}
		req.Payload = node
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Execute evaluates one or more access requests, in order, against a fresh in-process
// sentinel and prints each response.  Later requests see the risk left behind by earlier
// ones, so a file of requests can replay a partner's behaviour.
func Execute(ctx context.Context, cmd *cli.Command) error {
	data, err := common.ReadInput(cmd.String("input"))
	if err != nil {
		return err
	}
	reqs, err := parseRequests(data)
	if err != nil {
		return errors.Wrap(err, "failed to parse access requests")
	}

	var accessLog io.Writer = io.Discard
	if cmd.Bool("audit") {
		accessLog = os.Stderr
	}
	s, err := common.NewCliSentinel(cmd, accessLog)
	if err != nil {
		return err
	}
	defer s.Close()

	out := common.Stdout(cmd)
	for _, req := range reqs {
		resp, err := s.Decide(ctx, req)
		if err != nil {
			return err
		}
		common.PrintJSON(out, resp)
	}

	if cmd.Bool("risk") && len(reqs) > 0 {
		common.PrintJSON(out, s.RiskScore(reqs[len(reqs)-1].PartnerID))
	}
	return nil
}
