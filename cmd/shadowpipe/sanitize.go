package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// sanitizeCmd 对已有捕获文件做（再次）脱敏
func sanitizeCmd() *cobra.Command {
	var (
		inPath  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "sanitize",
		Short: "对捕获文件执行隐私脱敏",
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
			clean := a.runner.SanitizeCapture(capture)
			if err := a.runner.SaveCapture(clean, outPath); err != nil {
				return err
			}
			color.Green("sanitized %d requests → %s", len(clean.Requests), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inPath, "file", "f", "", "捕获文件路径")
	cmd.Flags().StringVarP(&outPath, "out", "o", "capture.sanitized.json", "输出路径")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
