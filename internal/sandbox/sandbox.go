/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package sandbox defines the execution-environment capability surface the
// Keeper depends on, plus a local exec-backed implementation.
// sandbox 包定义 Keeper 依赖的执行环境能力接口，以及一个基于本地 exec 的实现。
//
// The Keeper never owns processes directly; it holds a Sandbox handle and
// receives opaque ProcessHandle values from it.
// Keeper 从不直接拥有进程；它只持有 Sandbox 句柄，并从中接收不透明的 ProcessHandle 值。
package sandbox

import (
	"context"
	"errors"
	"time"
)

// Common errors for sandbox operations
// 沙箱操作的常见错误
var (
	// ErrPortWaitTimeout indicates the port did not become reachable in time
	// ErrPortWaitTimeout 表示端口未在规定时间内变为可达
	ErrPortWaitTimeout = errors.New("timed out waiting for port")

	// ErrStartFailed indicates the sandbox rejected the start call
	// ErrStartFailed 表示沙箱拒绝了启动调用
	ErrStartFailed = errors.New("process failed to start")

	// ErrLogsUnavailable indicates buffered logs cannot be fetched for a process
	// ErrLogsUnavailable 表示无法获取进程的缓冲日志
	ErrLogsUnavailable = errors.New("process logs unavailable")
)

// ProcessStatus represents the lifecycle status of a sandbox process
// ProcessStatus 表示沙箱进程的生命周期状态
type ProcessStatus string

const (
	// StatusStarting indicates the process is starting
	// StatusStarting 表示进程正在启动
	StatusStarting ProcessStatus = "starting"

	// StatusRunning indicates the process is running
	// StatusRunning 表示进程正在运行
	StatusRunning ProcessStatus = "running"

	// StatusExited indicates the process exited normally
	// StatusExited 表示进程正常退出
	StatusExited ProcessStatus = "exited"

	// StatusFailed indicates the process exited with an error
	// StatusFailed 表示进程异常退出
	StatusFailed ProcessStatus = "failed"
)

// IsAlive reports whether the status counts as a live process
// IsAlive 报告该状态是否算作存活进程
func (s ProcessStatus) IsAlive() bool {
	return s == StatusStarting || s == StatusRunning
}

// StartOptions contains options for starting a process
// StartOptions 包含启动进程的选项
type StartOptions struct {
	// Env is the environment variable mapping passed to the process.
	// Nil or empty means no explicit overrides.
	// Env 是传递给进程的环境变量映射。nil 或空表示无显式覆盖。
	Env map[string]string

	// WorkDir is the working directory for the process (optional)
	// WorkDir 是进程的工作目录（可选）
	WorkDir string
}

// WaitOptions contains options for waiting on port readiness
// WaitOptions 包含等待端口就绪的选项
type WaitOptions struct {
	// Mode is the probe mode; only "tcp" is supported
	// Mode 是探测模式；目前仅支持 "tcp"
	Mode string

	// Timeout bounds the wait
	// Timeout 限制等待时长
	Timeout time.Duration
}

// ProcessLogs holds the buffered output of a process
// ProcessLogs 保存进程的缓冲输出
type ProcessLogs struct {
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// ProcessHandle represents one process inside the sandbox. The Keeper never
// constructs these values; it only receives and inspects them.
// ProcessHandle 表示沙箱内的一个进程。Keeper 从不构造这些值，只接收并检查它们。
type ProcessHandle interface {
	// ID returns the unique identifier of the process
	// ID 返回进程的唯一标识符
	ID() string

	// Command returns the command string the process was started with
	// Command 返回进程启动时的命令字符串
	Command() string

	// Status returns the current lifecycle status
	// Status 返回当前生命周期状态
	Status() ProcessStatus

	// WaitForPort blocks until the given TCP port accepts connections or the
	// timeout elapses, in which case the error wraps ErrPortWaitTimeout.
	// WaitForPort 阻塞直到给定 TCP 端口接受连接或超时，超时错误包装 ErrPortWaitTimeout。
	WaitForPort(ctx context.Context, port int, opts WaitOptions) error

	// Logs fetches the buffered stdout/stderr of the process (may fail)
	// Logs 获取进程的缓冲标准输出/标准错误（可能失败）
	Logs(ctx context.Context) (ProcessLogs, error)

	// Kill terminates the process (may fail; callers decide how to react)
	// Kill 终止进程（可能失败；由调用方决定如何处理）
	Kill(ctx context.Context) error
}

// Sandbox is the external managed execution environment hosting processes
// Sandbox 是承载进程的外部托管执行环境
type Sandbox interface {
	// ListProcesses enumerates the processes known to the sandbox (may fail;
	// callers must degrade to "no processes" rather than aborting)
	// ListProcesses 枚举沙箱已知的进程（可能失败；调用方必须降级为"无进程"而不是中止）
	ListProcesses(ctx context.Context) ([]ProcessHandle, error)

	// StartProcess starts a new process from a command string (may fail;
	// failure propagates to the caller)
	// StartProcess 从命令字符串启动一个新进程（可能失败；失败向调用方传播）
	StartProcess(ctx context.Context, command string, opts StartOptions) (ProcessHandle, error)
}

// IsPortWaitTimeout reports whether err is a port readiness timeout
// IsPortWaitTimeout 报告 err 是否为端口就绪超时
func IsPortWaitTimeout(err error) bool {
	return errors.Is(err, ErrPortWaitTimeout)
}
