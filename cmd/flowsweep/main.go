// Package main provides a CLI for sweeping inactive flow versions off the
// host platform.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tcmartin/flowsweep/pkg/platform"
	"github.com/tcmartin/flowsweep/pkg/sweep"
)

var (
	// Global flags
	baseURL    string
	session    string
	configPath string
)

func main() {
	// Root command
	rootCmd := &cobra.Command{
		Use:   "flowsweep",
		Short: "FlowSweep CLI",
		Long:  "Command-line interface for bulk-deleting inactive flow versions on the host platform",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load config if not explicitly provided
			if baseURL == "" || session == "" {
				loadConfig()
			}
		},
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Host platform base URL")
	rootCmd.PersistentFlags().StringVar(&session, "session", "", "Session credential")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	// Flow commands
	flowsCmd := &cobra.Command{
		Use:   "flows",
		Short: "Flow inspection",
	}

	flowsListCmd := &cobra.Command{
		Use:   "list",
		Short: "List flow definitions",
		Run:   listFlows,
	}
	flowsListCmd.Flags().String("search", "", "Substring match on name or label")
	flowsListCmd.Flags().String("type", "", "Exact-match process type")
	flowsListCmd.Flags().String("status", "", "Filter by status: active or inactive")
	flowsListCmd.Flags().Bool("all", false, "Keep loading pages until the host reports no more")

	flowsVersionsCmd := &cobra.Command{
		Use:   "versions [flow-id]",
		Short: "List the versions of one flow definition",
		Args:  cobra.ExactArgs(1),
		Run:   listVersions,
	}

	flowsCmd.AddCommand(flowsListCmd, flowsVersionsCmd)

	// Add commands to root
	rootCmd.AddCommand(loginCmd, flowsCmd, sweepCmd(), serveCmd())

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// newController builds a controller against the configured host.
func newController() *sweep.Controller {
	if baseURL == "" {
		fmt.Println("Error: Base URL is required (flag --base-url or `flowsweep login`)")
		os.Exit(1)
	}
	client := platform.NewClient(baseURL)
	return sweep.NewController(client, client, session, nil)
}

// listFlows lists flow definitions, one page at a time.
func listFlows(cmd *cobra.Command, args []string) {
	controller := newController()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := controller.Bootstrap(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	all, _ := cmd.Flags().GetBool("all")
	for all && controller.Snapshot().HasMore {
		if err := controller.LoadMore(ctx); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}

	search, _ := cmd.Flags().GetString("search")
	processType, _ := cmd.Flags().GetString("type")
	status, _ := cmd.Flags().GetString("status")
	controller.SetFilters(sweep.Filters{
		Search:      search,
		ProcessType: processType,
		Status:      status,
	})

	state := controller.Snapshot()
	rows := state.FilteredFlows()
	if len(rows) == 0 {
		fmt.Println("No flows found")
		return
	}

	fmt.Println("ID\t\tName\t\tType\t\tActive\t\tVersions")
	fmt.Println("--\t\t----\t\t----\t\t------\t\t--------")
	for _, row := range rows {
		active := "no"
		if row.Flow.IsActive {
			active = "yes"
		}
		fmt.Printf("%s\t%s\t%s\t%s\t\t%s\n",
			row.Flow.ID,
			row.Flow.DeveloperName,
			platform.ProcessTypeLabel(row.Flow.ProcessType),
			active,
			row.VersionLabel(),
		)
	}
	fmt.Printf("\nLoaded %d of %d", len(state.Flows), state.TotalLoaded)
	if state.HasMore {
		fmt.Print(" (more available, rerun with --all)")
	}
	fmt.Println()
}

// listVersions lists every version of one flow definition.
func listVersions(cmd *cobra.Command, args []string) {
	if baseURL == "" {
		fmt.Println("Error: Base URL is required (flag --base-url or `flowsweep login`)")
		os.Exit(1)
	}
	flowID := args[0]

	client := platform.NewClient(baseURL)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	versions, err := client.FlowVersions(ctx, flowID, "")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if len(versions) == 0 {
		fmt.Println("No versions found")
		return
	}

	fmt.Println("ID\t\tVersion\t\tActive\t\tAPI\t\tLast Modified")
	fmt.Println("--\t\t-------\t\t------\t\t---\t\t-------------")
	for _, v := range versions {
		active := ""
		if v.IsActive {
			active = "*"
		}
		fmt.Printf("%s\tv%d\t\t%s\t\t%s\t\t%s\n",
			v.ID,
			v.VersionNumber,
			active,
			v.APIVersion,
			v.LastModifiedDate,
		)
	}
}
