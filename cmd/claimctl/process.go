package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	httpapi "github.com/garyjia/claim-reconciler/internal/interfaces/http"
)

func newProcessCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process <claim.json>",
		Short: "Reconcile a claim file in the /process-claim request format and print the verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read claim file: %w", err)
			}

			var req httpapi.ClaimRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("failed to parse claim file: %w", err)
			}
			claim, err := req.ToClaim(uuid.NewString())
			if err != nil {
				return err
			}

			c, err := startContainer(cmd, opts)
			if err != nil {
				return err
			}
			defer closeContainer(c)

			verdict, err := c.Services().Reconciliation.ProcessClaim(cmd.Context(), claim)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), verdict.Payload())
		},
	}
}
