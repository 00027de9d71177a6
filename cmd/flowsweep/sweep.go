package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tcmartin/flowsweep/pkg/sweep"
)

// sweepCmd selects inactive versions of one flow and bulk-deletes them.
func sweepCmd() *cobra.Command {
	var (
		flowID      string
		allInactive bool
		versionIDs  []string
		skipConfirm bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Bulk-delete inactive versions of a flow",
		Long:  "Selects inactive versions of one flow and deletes them in a single request. Deletion is irrevocable.",
		Run: func(cmd *cobra.Command, args []string) {
			if flowID == "" {
				fmt.Println("Error: --flow is required")
				os.Exit(1)
			}
			if !allInactive && len(versionIDs) == 0 {
				fmt.Println("Error: choose versions with --all-inactive or --version")
				os.Exit(1)
			}

			controller := newController()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			if err := controller.Bootstrap(ctx); err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}

			// Page through until the target flow is loaded.
			for {
				state := controller.Snapshot()
				if _, found := state.Row(flowID); found || !state.HasMore {
					break
				}
				if err := controller.LoadMore(ctx); err != nil {
					fmt.Printf("Error: %v\n", err)
					os.Exit(1)
				}
			}
			if _, found := controller.Snapshot().Row(flowID); !found {
				fmt.Printf("Error: flow %s not found\n", flowID)
				os.Exit(1)
			}

			if err := controller.Expand(ctx, flowID); err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}

			if allInactive {
				controller.ToggleAllInactive(flowID, true)
			}
			for _, id := range versionIDs {
				controller.ToggleVersion(id, true)
			}

			state := controller.Snapshot()
			count := state.SelectionCount()
			if count == 0 {
				fmt.Println("Nothing to delete: no inactive versions matched the selection")
				return
			}

			// Confirm deletion
			if !skipConfirm {
				fmt.Printf("Delete %d version(s) of flow %s permanently? (y/N): ", count, flowID)
				var confirm string
				fmt.Scanln(&confirm)
				if strings.ToLower(confirm) != "y" {
					fmt.Println("Deletion cancelled")
					return
				}
			}

			outcome, err := controller.SubmitDelete(ctx)
			if err != nil {
				if errors.Is(err, sweep.ErrEmptySelection) {
					fmt.Println("Nothing to delete")
					return
				}
				// Transport failure: the selection was preserved server-side
				// of this process, but the CLI exits, so just report it.
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}

			if outcome.FailureCount == 0 {
				fmt.Printf("Deleted %d version(s)\n", outcome.SuccessCount)
				return
			}
			fmt.Printf("Deleted %d version(s), %d failed:\n", outcome.SuccessCount, outcome.FailureCount)
			for _, result := range outcome.Results {
				if !result.Success {
					fmt.Printf("  %s: %s\n", result.FlowVersionID, result.ErrorMessage)
				}
			}
		},
	}

	cmd.Flags().StringVar(&flowID, "flow", "", "Flow definition id")
	cmd.Flags().BoolVar(&allInactive, "all-inactive", false, "Select every inactive version of the flow")
	cmd.Flags().StringArrayVar(&versionIDs, "version", nil, "Select a specific version id (repeatable)")
	cmd.Flags().BoolVar(&skipConfirm, "yes", false, "Skip the confirmation prompt")
	return cmd
}
