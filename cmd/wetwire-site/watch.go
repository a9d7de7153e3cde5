package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-site-go"
	"github.com/lex00/wetwire-site-go/internal/awsapi"
	"github.com/lex00/wetwire-site-go/internal/publish"
)

// newWatchCmd creates the "watch" subcommand for re-publishing on file changes.
func newWatchCmd() *cobra.Command {
	var (
		debounce time.Duration
		opts     publishOptions
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-publish the assets on file changes",
		Long: `Watch monitors the asset directory and syncs it to the deployed bucket
whenever a file is written, created, removed or renamed.

Rapid changes are debounced into one sync. The stack must already exist.

Examples:
    wetwire-site watch
    wetwire-site watch --debounce 2s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			return a.runWatch(a.context(cmd), debounce, opts)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")
	addPublishFlags(cmd, &opts)

	return cmd
}

func (a *app) runWatch(ctx context.Context, debounce time.Duration, opts publishOptions) error {
	c, err := a.clients(ctx)
	if err != nil {
		return err
	}
	outputs, err := a.stack(c).Outputs(ctx)
	if err != nil {
		return fmt.Errorf("reading stack outputs (deploy first?): %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := addDirRecursive(watcher, a.cfg.AssetDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", a.cfg.AssetDir, err)
	}
	fmt.Fprintf(a.out, "Watching: %s\n", a.cfg.AssetDir)

	a.syncOnce(ctx, c, outputs, opts)

	var debounceTimer *time.Timer
	syncChan := make(chan struct{}, 1)

	fmt.Fprintln(a.out, "Watching for changes... (Ctrl+C to stop)")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addDirRecursive(watcher, event.Name); err != nil {
						a.log.Warn().Err(err).Str("dir", event.Name).Msg("cannot watch new directory")
					}
				}
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounce, func() {
				select {
				case syncChan <- struct{}{}:
				default:
				}
			})

		case <-syncChan:
			fmt.Fprintf(a.out, "\n[%s] Change detected, syncing...\n", time.Now().Format("15:04:05"))
			a.syncOnce(ctx, c, outputs, opts)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.log.Error().Err(err).Msg("watch error")

		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			fmt.Fprintln(a.out, "\nStopping watch...")
			return nil
		}
	}
}

// syncOnce publishes and reports; a failed sync keeps the watch running.
func (a *app) syncOnce(ctx context.Context, c *awsapi.Clients, outputs wetwire.SiteOutputs, opts publishOptions) {
	result, err := a.publishAssets(ctx, c, outputs, opts)
	if err != nil {
		a.log.Error().Err(err).Msg("sync failed")
		return
	}
	fmt.Fprintln(a.out, publish.Summary(result))
}

// relevant reports whether event can change the published set. Chmod and
// editor swap files are ignored.
func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	return !strings.HasSuffix(base, "~") && !strings.HasSuffix(base, ".swp")
}

// addDirRecursive adds a directory and all subdirectories to the watcher.
func addDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		// Skip hidden directories
		if strings.HasPrefix(d.Name(), ".") && path != dir {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
