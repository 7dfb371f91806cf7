package main

import (
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// analyzeCmd 输出捕获流量的统计分析
func analyzeCmd() *cobra.Command {
	var inPath string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "分析捕获文件的流量构成",
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
			analysis := a.runner.AnalyzeCapture(capture)

			color.Cyan("capture %s (%s)", capture.CaptureID, capture.SourceURL)
			color.White("  total requests:   %d", analysis.TotalRequests)
			color.White("  unique endpoints: %d", analysis.UniqueEndpoints)

			color.Yellow("methods:")
			for _, m := range sortedKeys(analysis.Methods) {
				color.White("  %-8s %d", m, analysis.Methods[m])
			}

			color.Yellow("status codes:")
			codes := make([]int, 0, len(analysis.StatusCodes))
			for code := range analysis.StatusCodes {
				codes = append(codes, code)
			}
			sort.Ints(codes)
			for _, code := range codes {
				line := color.New(color.FgWhite)
				if code >= 500 {
					line = color.New(color.FgRed)
				} else if code >= 400 {
					line = color.New(color.FgYellow)
				}
				line.Printf("  %d      %d\n", code, analysis.StatusCodes[code])
			}

			color.Yellow("services:")
			for _, svc := range sortedKeys2(analysis.Services) {
				color.White("  %s", svc)
				for _, ep := range analysis.Services[svc] {
					color.White("    %s", ep)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inPath, "file", "f", "", "捕获文件路径")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// sortedKeys 返回排序后的计数表键
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sortedKeys2 返回排序后的分组表键
func sortedKeys2(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
