//
//  Copyright © Manetu Inc. All rights reserved.
//

package trap

import (
	"context"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/manetu/datasentinel/cmd/sentinel/common"
)

// ExecuteInject plants a decoy into the input document and prints the redacted document
// together with the decoy value.
func ExecuteInject(ctx context.Context, cmd *cli.Command) error {
	doc, err := common.ReadInput(cmd.String("input"))
	if err != nil {
		return err
	}

	s, err := common.NewCliSentinel(cmd, io.Discard)
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := s.InjectTrap(string(doc), cmd.String("type"))
	if err != nil {
		return err
	}
	common.PrintJSON(common.Stdout(cmd), out)
	return nil
}
