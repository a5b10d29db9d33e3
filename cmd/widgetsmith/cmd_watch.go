package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"widgetsmith/internal/audit"
	"widgetsmith/internal/logging"
	"widgetsmith/internal/provider"
	"widgetsmith/internal/store"
)

var watchLevel string

var watchCmd = &cobra.Command{
	Use:   "watch <widget-file.js>",
	Short: "Re-audit a widget file whenever it changes",
	Long: `watch observes a widget file and runs an incremental audit on every save.
Unchanged lines keep their prior concerns; only edited lines are re-examined.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("cannot watch %s: %w", args[0], err)
		}

		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		artifacts, err := store.NewArtifactStore(cwd)
		if err != nil {
			return err
		}
		defer artifacts.Close()

		records, err := audit.NewStore(cwd)
		if err != nil {
			return err
		}
		defer records.Close()

		collaborator, err := provider.New(effectiveModel())
		if err != nil {
			return err
		}
		engine := audit.NewEngine(records, collaborator)

		// The external artifact keeps one synthetic ID across the whole
		// watch session so successive audits share a history.
		artifact, err := artifacts.LoadExternal(path)
		if err != nil {
			return err
		}

		runOnce := func() {
			code, err := os.ReadFile(path)
			if err != nil {
				fmt.Println(styleErr.Render("✗ ") + err.Error())
				return
			}
			artifact.Code = string(code)

			result, err := engine.Run(cmd.Context(), audit.RunRequest{
				Artifact: artifact,
				Level:    watchLevel,
				Reuse:    true,
			})
			if err != nil {
				fmt.Println(styleErr.Render("✗ ") + err.Error())
				return
			}
			if result.ReusedVerbatim {
				fmt.Println(styleDim.Render(time.Now().Format("15:04:05") + " unchanged"))
				return
			}
			fmt.Printf("%s %s: %d concern(s), %d fresh (%d line(s) changed)\n",
				styleDim.Render(time.Now().Format("15:04:05")),
				styleTitle.Render(filepath.Base(path)),
				len(result.Record.Concerns), result.FreshConcerns, len(result.ChangedLines))
			for _, c := range result.Record.Concerns {
				fmt.Println(styleDim.Render("  " + c.ID + ": " + c.Summary))
			}
		}

		fmt.Println(styleTitle.Render("watching ") + path)
		runOnce()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()

		// Watch the directory: editors replace files on save, which drops
		// a watch registered on the file itself.
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			return err
		}

		var debounce *time.Timer
		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Name != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				logging.WatchDebug("fs event: %s", event)
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(300*time.Millisecond, runOnce)
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Println(styleErr.Render("watch error: ") + err.Error())
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchLevel, "level", audit.LevelFast, "audit depth: fast or full")
}
