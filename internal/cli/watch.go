package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resolvemap/internal/adapters"
	"resolvemap/internal/app"
)

type watchOptions struct {
	Roots      []string
	Rebuild    bool
	DebounceMs int
}

func newWatchCommand() *cobra.Command {
	opts := watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch package roots and rescan them when they change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.Roots, "root", nil, "Package root path(s)")
	cmd.Flags().BoolVar(&opts.Rebuild, "rebuild", true, "Rescan changed packages immediately")
	cmd.Flags().IntVar(&opts.DebounceMs, "debounce-ms", 200, "Quiet period before a change is handled")
	_ = viper.BindPFlag("roots", cmd.Flags().Lookup("root"))
	_ = viper.BindPFlag("rebuild", cmd.Flags().Lookup("rebuild"))
	_ = viper.BindPFlag("watch_debounce_ms", cmd.Flags().Lookup("debounce-ms"))
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts watchOptions) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	debounce := resolveInt(cmd, opts.DebounceMs, "watch_debounce_ms", "debounce-ms")
	service.Watcher = adapters.PackageWatcherAdapter{Debounce: time.Duration(debounce) * time.Millisecond}
	roots := resolveStrings(cmd, opts.Roots, "roots", "root")
	for _, root := range roots {
		if _, err := service.LoadResolveMap(ctx, root); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Printf("watching %d package(s)\n", len(roots))
	return service.Watch(ctx, app.WatchRequest{
		Roots:   roots,
		Rebuild: resolveBool(cmd, opts.Rebuild, "rebuild", "rebuild"),
		OnReload: func(event app.WatchEvent) {
			if event.Err != nil {
				fmt.Printf("reload failed: %s: %v\n", event.Root, event.Err)
				return
			}
			fmt.Printf("reloaded: %s keys=%d digest=%s\n", event.Root, event.Keys, event.Digest)
		},
	})
}
