//
//  Copyright © Manetu Inc. All rights reserved.
//

package decide

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/manetu/datasentinel/pkg/core/config"
	"github.com/manetu/datasentinel/pkg/core/model"
	"github.com/manetu/datasentinel/pkg/core/payload"
)

// buildDecideTestCommand creates a CLI command structure for testing the decide command
func buildDecideTestCommand(out *bytes.Buffer) *cli.Command {
	return &cli.Command{
		Name:   "sentinel",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "users"},
		},
		Commands: []*cli.Command{
			{
				Name: "decide",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}},
					&cli.BoolFlag{Name: "audit"},
					&cli.BoolFlag{Name: "risk"},
				},
				Action: Execute,
			},
		},
	}
}

func TestParseRequests(t *testing.T) {
	reqs, err := parseRequests([]byte(`{"partnerId":"p1","region":"IN","requestedUsers":["user1"],"note":"x"}`))
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "p1", reqs[0].PartnerID)
	assert.Equal(t, payload.StringLeaf("x"), reqs[0].Payload.(payload.MappingNode)["note"])

	reqs, err = parseRequests([]byte(`  [{"partnerId":"p1"},{"partnerId":"p2"}]`))
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "p2", reqs[1].PartnerID)

	_, err = parseRequests([]byte(`[{"partnerId":`))
	assert.Error(t, err)
}

func TestExecute(t *testing.T) {
	t.Setenv(config.ConfigPathEnv, t.TempDir())
	t.Setenv("SENTINEL_DECEPTION_LATENCY_MAX", "0s")
	t.Setenv("SENTINEL_DECEPTION_LATENCY_MIN", "0s")
	config.ResetConfig()

	input := filepath.Join(t.TempDir(), "requests.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
		{"partnerId":"p1","region":"US","requestedUsers":["user1"]},
		{"partnerId":"p1","region":"IN","requestedUsers":["user2"]}
	]`), 0644))

	var out bytes.Buffer
	err := buildDecideTestCommand(&out).Run(context.Background(), []string{"sentinel", "decide", "-i", input, "--risk"})
	require.NoError(t, err)

	dec := json.NewDecoder(&out)

	var first, second model.AccessResponse
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, "Region mismatch", first.Decisions["user1"].Reason)
	assert.Equal(t, model.StatusGranted, second.Decisions["user2"].Status)

	var risk model.PartnerSnapshot
	require.NoError(t, dec.Decode(&risk))
	assert.Equal(t, "p1", risk.ID)
	assert.GreaterOrEqual(t, risk.Score, 20)
}

func TestExecute_BadInput(t *testing.T) {
	t.Setenv(config.ConfigPathEnv, t.TempDir())
	config.ResetConfig()

	var out bytes.Buffer
	err := buildDecideTestCommand(&out).Run(context.Background(), []string{"sentinel", "decide", "-i", "/nonexistent/requests.json"})
	assert.Error(t, err)
}
