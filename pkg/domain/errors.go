package domain

import "errors"

// 捕获相关错误
var (
	ErrCaptureNotFound = errors.New("capture not found")
	ErrInvalidCapture  = errors.New("invalid capture schema")
)

// 录制相关错误
var ErrRecordingActive = errors.New("recording already active")

// 会话相关错误
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session already ended")
)

// 模糊测试相关错误
var (
	ErrCampaignNotReady        = errors.New("campaign not in ready state")
	ErrCoverageNotInstrumented = errors.New("coverage signal not instrumented")
)
