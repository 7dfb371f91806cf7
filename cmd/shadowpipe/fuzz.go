package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shadowpipe/internal/campaign"
	"shadowpipe/internal/executor"
	"shadowpipe/pkg/domain"
)

// fuzzCmd 基于捕获文件执行模糊测试战役
func fuzzCmd() *cobra.Command {
	var (
		inPath    string
		outPath   string
		target    string
		strategy  string
		mutations int
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "fuzz",
		Short: "基于捕获流量执行模糊测试战役",
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

			camp, err := a.runner.GenerateFuzzingCampaign(capture, target, domain.FuzzingConfig{
				Strategy:            domain.FuzzStrategy(strategy),
				MutationsPerRequest: mutations,
			})
			if err != nil {
				return err
			}

			// 中断信号触发取消：保留已完成结果并标记 Partial
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var exec campaign.ExecuteFunc
			if !dryRun {
				httpExec := executor.New(time.Duration(a.cfg.Fuzz.CallTimeoutMS)*time.Millisecond, a.log)
				exec = func(ctx context.Context, original, mutated domain.TrafficRequest) (campaign.CallResult, error) {
					status, body, err := httpExec.Do(ctx, target, &mutated)
					if err != nil {
						return campaign.CallResult{}, err
					}
					return campaign.CallResult{StatusCode: status, Body: body}, nil
				}
			}

			if err := a.runner.RunFuzzingCampaign(ctx, camp, capture, exec); err != nil {
				return err
			}

			data, err := json.MarshalIndent(camp, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return err
			}

			color.Cyan("campaign %s (%s)", camp.CampaignID, camp.Config.Strategy)
			color.White("  mutations:  %d total, %d ok, %d failed", camp.TotalMutations, camp.SuccessfulMutations, camp.FailedMutations)
			if camp.Partial {
				color.Yellow("  partial results (cancelled before completion)")
			}
			if len(camp.Vulnerabilities) > 0 {
				color.Red("  vulnerabilities: %d", len(camp.Vulnerabilities))
				for _, v := range camp.Vulnerabilities {
					color.Red("    [%s] %s (%s)", v.Type, v.Endpoint, v.Evidence)
				}
			} else {
				color.Green("  no vulnerability signals")
			}
			color.Green("campaign written → %s", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inPath, "file", "f", "", "捕获文件路径")
	cmd.Flags().StringVarP(&outPath, "out", "o", "campaign.json", "战役结果输出路径")
	cmd.Flags().StringVar(&target, "target", "", "被测目标地址")
	cmd.Flags().StringVar(&strategy, "strategy", "intelligent", "变异策略：random / intelligent / coverage_guided / ai_powered")
	cmd.Flags().IntVarP(&mutations, "mutations", "n", 5, "每个请求的变异数")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "只生成变异不执行")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
