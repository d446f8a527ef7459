package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resolvemap/internal/app"
)

type resolveOptions struct {
	Root        string
	Key         string
	URIFallback bool
}

func newResolveCommand() *cobra.Command {
	opts := resolveOptions{}
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a key to its URI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResolve(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Root, "root", "", "Package root path or URI")
	cmd.Flags().StringVar(&opts.Key, "key", "", "Key to resolve")
	cmd.Flags().BoolVar(&opts.URIFallback, "uri-fallback", false, "Treat an unregistered key as a URI")
	_ = viper.BindPFlag("root", cmd.Flags().Lookup("root"))
	_ = viper.BindPFlag("uri_fallback", cmd.Flags().Lookup("uri-fallback"))
	return cmd
}

func runResolve(ctx context.Context, cmd *cobra.Command, opts resolveOptions) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	result, err := service.Resolve(ctx, app.ResolveRequest{
		Root:        resolveString(cmd, opts.Root, "root", "root"),
		Key:         opts.Key,
		URIFallback: resolveBool(cmd, opts.URIFallback, "uri_fallback", "uri-fallback"),
	})
	if err != nil {
		return err
	}
	switch {
	case !result.Found:
		fmt.Printf("unresolved: %s\n", result.Key)
	case result.FromFallback:
		fmt.Printf("%s (uri fallback)\n", result.URI)
	default:
		fmt.Println(result.URI)
	}
	return nil
}

type reverseOptions struct {
	Root string
	URI  string
}

func newReverseCommand() *cobra.Command {
	opts := reverseOptions{}
	cmd := &cobra.Command{
		Use:   "reverse",
		Short: "List the keys that resolve to a URI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReverse(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Root, "root", "", "Package root path or URI")
	cmd.Flags().StringVar(&opts.URI, "uri", "", "URI to look up")
	_ = viper.BindPFlag("root", cmd.Flags().Lookup("root"))
	return cmd
}

func runReverse(ctx context.Context, cmd *cobra.Command, opts reverseOptions) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	result, err := service.Reverse(ctx, app.ReverseRequest{
		Root: resolveString(cmd, opts.Root, "root", "root"),
		URI:  opts.URI,
	})
	if err != nil {
		return err
	}
	fmt.Printf("keys for %s: %d\n", result.URI, len(result.Keys))
	for _, key := range result.Keys {
		fmt.Printf("- %s\n", key)
	}
	return nil
}

type searchOptions struct {
	Root    string
	Project string
	Query   string
}

func newSearchCommand() *cobra.Command {
	opts := searchOptions{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the keys of a package",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Root, "root", "", "Package root path or URI")
	cmd.Flags().StringVar(&opts.Project, "project", "", "Project namespace, e.g. /city")
	cmd.Flags().StringVar(&opts.Query, "query", "", "Search query")
	_ = viper.BindPFlag("root", cmd.Flags().Lookup("root"))
	_ = viper.BindPFlag("project", cmd.Flags().Lookup("project"))
	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, opts searchOptions) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	result, err := service.Search(ctx, app.SearchRequest{
		Root:    resolveString(cmd, opts.Root, "root", "root"),
		Project: resolveString(cmd, opts.Project, "project", "project"),
		Query:   opts.Query,
	})
	if err != nil {
		return err
	}
	if len(result.Keys) > 0 {
		fmt.Println(strings.Join(result.Keys, "\n"))
	}
	return nil
}

type anchorOptions struct {
	Mode   string
	Anchor string
	Key    string
}

func newAnchorCommand() *cobra.Command {
	opts := anchorOptions{}
	cmd := &cobra.Command{
		Use:   "anchor",
		Short: "Anchor a key against another key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnchor(opts)
		},
	}
	cmd.Flags().StringVar(&opts.Mode, "mode", string(app.AnchorRelative), "Anchoring mode (relative, embedded, replace)")
	cmd.Flags().StringVar(&opts.Anchor, "anchor", "", "Anchor key")
	cmd.Flags().StringVar(&opts.Key, "key", "", "Key to anchor")
	return cmd
}

func runAnchor(opts anchorOptions) error {
	service, err := newAppService()
	if err != nil {
		return err
	}
	result, err := service.Anchor(app.AnchorRequest{
		Mode:   app.AnchorMode(strings.ToLower(strings.TrimSpace(opts.Mode))),
		Anchor: opts.Anchor,
		Key:    opts.Key,
	})
	if err != nil {
		return err
	}
	fmt.Println(result.Key)
	return nil
}
