package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shadowpipe/internal/testgen"
)

// generateCmd 从捕获文件生成测试定义
func generateCmd() *cobra.Command {
	var (
		inPath  string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "从捕获流量生成测试用例定义",
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
			result := a.runner.GenerateTests(capture)

			data, err := testgen.ExportJSON(result)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return err
			}

			negatives := 0
			for _, t := range result.Tests {
				negatives += len(t.NegativeTests)
			}
			color.Green("generated %d tests (%d negative variants) → %s", len(result.Tests), negatives, outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inPath, "file", "f", "", "捕获文件路径")
	cmd.Flags().StringVarP(&outPath, "out", "o", "tests.json", "测试定义输出路径")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
