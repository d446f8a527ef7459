package cli

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resolvemap/internal/app"
)

type scanOptions struct {
	ContainerKey string
	Refresh      bool
	Entries      bool
}

func newScanCommand() *cobra.Command {
	opts := scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan [root...]",
		Short: "Scan package roots and summarize their resolve maps",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.ContainerKey, "container-key", "", "Key to anchor a single root below")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "Rescan even if the map is cached")
	cmd.Flags().BoolVar(&opts.Entries, "entries", false, "Print every key and URI")
	_ = viper.BindPFlag("container_key", cmd.Flags().Lookup("container-key"))
	_ = viper.BindPFlag("entries", cmd.Flags().Lookup("entries"))
	return cmd
}

func runScan(ctx context.Context, cmd *cobra.Command, opts scanOptions, args []string) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	roots := args
	if len(roots) == 0 {
		roots = viper.GetStringSlice("roots")
	}
	containerKey := resolveString(cmd, opts.ContainerKey, "container_key", "container-key")
	printEntries := resolveBool(cmd, opts.Entries, "entries", "entries")

	var results []app.ScanResult
	switch {
	case len(roots) == 0:
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one root is required")
	case len(roots) == 1:
		result, err := service.Scan(ctx, app.ScanRequest{Root: roots[0], ContainerKey: containerKey, Refresh: opts.Refresh})
		if err != nil {
			return err
		}
		results = append(results, result)
	default:
		if containerKey != "" {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("--container-key applies to a single root")
		}
		all, err := service.ScanAll(ctx, app.ScanAllRequest{Roots: roots, Refresh: opts.Refresh})
		if err != nil {
			return err
		}
		results = all.Results
	}

	for _, result := range results {
		fmt.Printf("scanned: %s (%s) keys=%d digest=%s\n", result.Root, result.Provider, result.Keys, result.Digest)
		fmt.Printf("  container key: %s\n", result.ContainerKey)
		if result.RuleFile != "" {
			fmt.Printf("  rule file: %s\n", result.RuleFile)
		}
		if printEntries {
			for _, entry := range result.Entries {
				fmt.Printf("  %s -> %s\n", entry.Key, entry.URI)
			}
		}
	}
	return nil
}
