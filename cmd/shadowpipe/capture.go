package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shadowpipe/internal/middleware"
)

// captureCmd 以反向代理方式旁路捕获真实流量
func captureCmd() *cobra.Command {
	var (
		listen   string
		target   string
		duration time.Duration
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "以反向代理旁路捕获目标服务流量",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			upstream, err := url.Parse(target)
			if err != nil {
				return fmt.Errorf("parse target url: %w", err)
			}

			proxy := httputil.NewSingleHostReverseProxy(upstream)
			shadow := middleware.NewCapture(a.runner.Interceptor(), a.runner.Filter(), a.log)
			server := &http.Server{Addr: listen, Handler: shadow.Wrap(proxy)}

			// 捕获窗口对应一个实时会话，物化的交互按到达顺序归入其中
			a.runner.StartLiveSession("capture", map[string]string{"target": target})

			if err := a.runner.Interceptor().StartRecording(); err != nil {
				return err
			}

			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.log.Err(err, "代理服务异常退出")
				}
			}()
			color.Cyan("shadow proxy listening on %s → %s", listen, target)

			// 到时或收到中断信号即停止录制
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			select {
			case <-time.After(duration):
			case <-sigCh:
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)

			capture, err := a.runner.HarvestCapture(context.Background(), target)
			if err != nil {
				return err
			}
			if err := a.runner.EndLiveSession(); err != nil {
				a.log.Warn("结束实时会话失败", "error", err)
			}
			if err := a.runner.SaveCapture(capture, outPath); err != nil {
				return err
			}
			color.Green("captured %d requests → %s", len(capture.Requests), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8888", "代理监听地址")
	cmd.Flags().StringVar(&target, "target", "", "被捕获的上游服务地址")
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Minute, "录制时长")
	cmd.Flags().StringVarP(&outPath, "out", "o", "capture.json", "捕获文件输出路径")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}
