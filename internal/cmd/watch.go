package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/moabualruz/ricecoder-sub010/internal/plan"
)

func newWatchCmd() *cobra.Command {
	opts := &runOptions{}
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run a plan, then run it again whenever the plan or project changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := newRunEnv(cmd, opts)
			if err != nil {
				return err
			}
			defer env.close()

			f, err := plan.Load(opts.planPath)
			if err != nil {
				return err
			}
			return watchLoop(ctx, cmd, env, f, debounce)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", plan.DefaultDebounce, "quiet period before re-running")
	return cmd
}

func watchLoop(ctx context.Context, cmd *cobra.Command, env *runEnv, f *plan.File, debounce time.Duration) error {
	out := cmd.OutOrStdout()
	runOnce := func() {
		report, err := env.execute(ctx, cmd, f)
		if err != nil {
			fmt.Fprintln(out, failStyle.Render("run failed: "+err.Error()))
			return
		}
		if err := env.print(out, report); err != nil {
			env.logger.Error("print report", "error", err.Error())
		}
	}

	runOnce()

	w, err := plan.NewWatcher(f.Path, f.Project.Root,
		plan.WithDebounce(debounce),
		plan.WithWatcherLogger(env.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to watch: %w", err)
	}
	changes := make(chan []string)
	go w.Run(ctx, changes)

	fmt.Fprintln(out, mutedStyle.Render("watching for changes; press Ctrl+C to stop"))
	for batch := range changes {
		if w.PlanChanged(batch) {
			reloaded, err := plan.Load(f.Path)
			if err != nil {
				fmt.Fprintln(out, failStyle.Render("plan reload failed: "+err.Error()))
				continue
			}
			f = reloaded
			env.logger.Info("plan reloaded", "path", f.Path)
		}
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%d change(s) detected, re-running", len(batch))))
		runOnce()
	}
	return nil
}
