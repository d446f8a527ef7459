package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resolvemap/internal/app"
)

type exportOptions struct {
	Root   string
	Output string
}

func newExportCommand() *cobra.Command {
	opts := exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the resolve map of a package as a snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Root, "root", "", "Package root path or URI")
	cmd.Flags().StringVar(&opts.Output, "output", "package.rmap", "Snapshot output path")
	_ = viper.BindPFlag("root", cmd.Flags().Lookup("root"))
	_ = viper.BindPFlag("export_output", cmd.Flags().Lookup("output"))
	return cmd
}

func runExport(ctx context.Context, cmd *cobra.Command, opts exportOptions) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	result, err := service.Export(ctx, app.ExportRequest{
		Root:   resolveString(cmd, opts.Root, "root", "root"),
		Output: resolveString(cmd, opts.Output, "export_output", "output"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("wrote snapshot: %s (%s, %s) keys=%d\n", result.Output, result.Format, result.Compression, result.Keys)
	return nil
}

type inspectOptions struct {
	Snapshot string
	Keys     bool
}

func newInspectCommand() *cobra.Command {
	opts := inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect an exported snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "package.rmap", "Snapshot path")
	cmd.Flags().BoolVar(&opts.Keys, "keys", false, "Print every key")
	_ = viper.BindPFlag("snapshot", cmd.Flags().Lookup("snapshot"))
	return cmd
}

func runInspect(cmd *cobra.Command, opts inspectOptions) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	result, err := service.Inspect(app.InspectRequest{
		Path: resolveString(cmd, opts.Snapshot, "snapshot", "snapshot"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("root: %s\n", result.Root)
	fmt.Printf("provider: %s\n", result.Provider)
	fmt.Printf("digest: %s\n", result.Digest)
	if result.CreatedAt != "" {
		fmt.Printf("created: %s\n", result.CreatedAt)
	}
	fmt.Printf("entries: %d\n", result.Entries)
	if result.RuleFile != "" {
		fmt.Printf("rule file: %s\n", result.RuleFile)
	}
	if opts.Keys {
		for _, key := range result.Keys {
			fmt.Printf("- %s\n", key)
		}
	}
	return nil
}
