package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shadowpipe/internal/executor"
	"shadowpipe/pkg/domain"
)

// replayCmd 按捕获顺序将流量回放到目标服务
func replayCmd() *cobra.Command {
	var (
		inPath string
		target string
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "按原始顺序回放捕获流量",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			capture, err := a.runner.LoadCapture(inPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			httpExec := executor.New(time.Duration(a.cfg.Fuzz.CallTimeoutMS)*time.Millisecond, a.log)
			summary, err := a.runner.ReplayTraffic(ctx, capture, func(ctx context.Context, req *domain.TrafficRequest) (int, error) {
				status, _, err := httpExec.Do(ctx, target, req)
				return status, err
			})
			if err != nil {
				return err
			}

			for _, entry := range summary.Entries {
				if entry.Success {
					color.Green("  ok   %-40s %d", entry.Endpoint, entry.StatusCode)
				} else {
					color.Red("  fail %-40s %s", entry.Endpoint, entry.Err)
				}
			}
			color.Cyan("replayed %d requests: %d ok, %d failed", summary.Total, summary.Succeeded, summary.Failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inPath, "file", "f", "", "捕获文件路径")
	cmd.Flags().StringVar(&target, "target", "", "回放目标地址")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}
