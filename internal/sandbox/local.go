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

package sandbox

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Default values for the local sandbox
// 本地沙箱的默认值
const (
	// DefaultKillGraceTimeout is how long Kill waits after SIGTERM before SIGKILL
	// DefaultKillGraceTimeout 是 Kill 在发送 SIGTERM 后等待多久再发送 SIGKILL
	DefaultKillGraceTimeout = 10 * time.Second

	// portPollInterval is the interval between TCP dial attempts
	// portPollInterval 是两次 TCP 拨号尝试之间的间隔
	portPollInterval = 500 * time.Millisecond

	// portDialTimeout is the timeout for a single TCP dial attempt
	// portDialTimeout 是单次 TCP 拨号尝试的超时时间
	portDialTimeout = 1 * time.Second
)

// LocalSandbox runs processes on the local machine via the shell. Started
// processes get per-process stdout/stderr capture files; processes started
// out-of-band are discovered through ps and get synthetic handles without
// captured logs.
// LocalSandbox 通过 shell 在本机运行进程。自己启动的进程有独立的标准输出/标准错误
// 捕获文件；外部启动的进程通过 ps 发现，其合成句柄没有捕获的日志。
type LocalSandbox struct {
	// workDir is the default working directory for started processes
	// workDir 是启动进程的默认工作目录
	workDir string

	// logDir is where per-process output capture files live
	// logDir 是每个进程的输出捕获文件所在目录
	logDir string

	// tracked stores processes started by this sandbox, by id
	// tracked 按 id 存储由此沙箱启动的进程
	tracked map[string]*localProcess

	// seq generates process ids
	// seq 生成进程 id
	seq int

	// killGrace is the SIGTERM-to-SIGKILL grace period
	// killGrace 是 SIGTERM 到 SIGKILL 的宽限期
	killGrace time.Duration

	// mu protects sandbox state
	// mu 保护沙箱状态
	mu sync.Mutex
}

// NewLocalSandbox creates a new LocalSandbox instance
// NewLocalSandbox 创建一个新的 LocalSandbox 实例
func NewLocalSandbox(workDir, logDir string) *LocalSandbox {
	return &LocalSandbox{
		workDir:   workDir,
		logDir:    logDir,
		tracked:   make(map[string]*localProcess),
		killGrace: DefaultKillGraceTimeout,
	}
}

// SetKillGraceTimeout sets the SIGTERM-to-SIGKILL grace period
// SetKillGraceTimeout 设置 SIGTERM 到 SIGKILL 的宽限期
func (s *LocalSandbox) SetKillGraceTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killGrace = d
}

// StartProcess starts a command through the shell with output capture
// StartProcess 通过 shell 启动命令并捕获输出
func (s *LocalSandbox) StartProcess(ctx context.Context, command string, opts StartOptions) (ProcessHandle, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("%w: empty command", ErrStartFailed)
	}

	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("proc-%d", s.seq)
	killGrace := s.killGrace
	s.mu.Unlock()

	// Create output capture files / 创建输出捕获文件
	if err := os.MkdirAll(s.logDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create log directory: %v", ErrStartFailed, err)
	}
	stdoutPath := filepath.Join(s.logDir, fmt.Sprintf("%s.out", id))
	stderrPath := filepath.Join(s.logDir, fmt.Sprintf("%s.err", id))

	stdoutFile, err := os.Create(stdoutPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create stdout file: %v", ErrStartFailed, err)
	}
	stderrFile, err := os.Create(stderrPath)
	if err != nil {
		stdoutFile.Close()
		return nil, fmt.Errorf("%w: failed to create stderr file: %v", ErrStartFailed, err)
	}

	cmd := exec.Command("/bin/bash", "-c", command)
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile

	// Set process group so the process is independent of the Keeper
	// 设置进程组，使进程独立于 Keeper
	// This ensures a Keeper restart won't take the gateway down with it
	// 这确保 Keeper 重启不会把网关一起带下去
	setProcGroupAttr(cmd)

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = s.workDir
	}
	cmd.Dir = workDir

	// Build environment: inherit, then apply explicit overrides
	// 构建环境：先继承，再应用显式覆盖
	cmd.Env = os.Environ()
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	if err := cmd.Start(); err != nil {
		stdoutFile.Close()
		stderrFile.Close()
		return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	proc := &localProcess{
		id:         id,
		command:    command,
		pid:        cmd.Process.Pid,
		status:     StatusRunning,
		stdoutPath: stdoutPath,
		stderrPath: stderrPath,
		killGrace:  killGrace,
	}

	s.mu.Lock()
	s.tracked[id] = proc
	s.mu.Unlock()

	// Reap the process and record its terminal status
	// 回收进程并记录其终态
	go func() {
		err := cmd.Wait()
		stdoutFile.Close()
		stderrFile.Close()

		proc.mu.Lock()
		if err != nil {
			proc.status = StatusFailed
		} else {
			proc.status = StatusExited
		}
		proc.mu.Unlock()
	}()

	fmt.Printf("[LocalSandbox] Started process %s (PID: %d): %s / 启动进程 %s（PID：%d）\n",
		id, proc.pid, command, id, proc.pid)

	return proc, nil
}

// ListProcesses returns tracked processes plus processes discovered via ps
// ListProcesses 返回已跟踪的进程以及通过 ps 发现的进程
func (s *LocalSandbox) ListProcesses(ctx context.Context) ([]ProcessHandle, error) {
	var handles []ProcessHandle

	s.mu.Lock()
	trackedPIDs := make(map[int]bool, len(s.tracked))
	for _, proc := range s.tracked {
		handles = append(handles, proc)
		trackedPIDs[proc.pid] = true
	}
	killGrace := s.killGrace
	s.mu.Unlock()

	// Discover processes started out-of-band
	// 发现外部启动的进程
	external, err := scanSystemProcesses(ctx, killGrace)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	for _, proc := range external {
		if trackedPIDs[proc.pid] || proc.pid == os.Getpid() {
			continue
		}
		handles = append(handles, proc)
	}

	return handles, nil
}

// scanSystemProcesses lists system processes via ps
// scanSystemProcesses 通过 ps 列出系统进程
func scanSystemProcesses(ctx context.Context, killGrace time.Duration) ([]*discoveredProcess, error) {
	cmd := exec.CommandContext(ctx, "ps", "-eo", "pid=,args=")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var procs []*discoveredProcess
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.SplitN(line, " ", 2)
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil || pid <= 0 {
			continue
		}

		procs = append(procs, &discoveredProcess{
			pid:       pid,
			command:   strings.TrimSpace(fields[1]),
			killGrace: killGrace,
		})
	}

	return procs, nil
}

// localProcess is a process started by the LocalSandbox
// localProcess 是由 LocalSandbox 启动的进程
type localProcess struct {
	id         string
	command    string
	pid        int
	status     ProcessStatus
	stdoutPath string
	stderrPath string
	killGrace  time.Duration
	mu         sync.RWMutex
}

// ID returns the process identifier
// ID 返回进程标识符
func (p *localProcess) ID() string { return p.id }

// Command returns the command string
// Command 返回命令字符串
func (p *localProcess) Command() string { return p.command }

// Status returns the current process status
// Status 返回当前进程状态
func (p *localProcess) Status() ProcessStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// WaitForPort waits until the TCP port accepts connections or times out
// WaitForPort 等待 TCP 端口接受连接或超时
func (p *localProcess) WaitForPort(ctx context.Context, port int, opts WaitOptions) error {
	return waitTCPPort(ctx, port, opts.Timeout)
}

// Logs reads the buffered stdout/stderr capture files
// Logs 读取缓冲的标准输出/标准错误捕获文件
func (p *localProcess) Logs(ctx context.Context) (ProcessLogs, error) {
	stdout, err := os.ReadFile(p.stdoutPath)
	if err != nil {
		return ProcessLogs{}, fmt.Errorf("%w: %v", ErrLogsUnavailable, err)
	}
	stderr, err := os.ReadFile(p.stderrPath)
	if err != nil {
		return ProcessLogs{}, fmt.Errorf("%w: %v", ErrLogsUnavailable, err)
	}
	return ProcessLogs{Stdout: string(stdout), Stderr: string(stderr)}, nil
}

// Kill terminates the process: SIGTERM, bounded wait, then SIGKILL
// Kill 终止进程：先 SIGTERM，有限等待，然后 SIGKILL
func (p *localProcess) Kill(ctx context.Context) error {
	err := killWithGrace(ctx, p.pid, p.killGrace)

	p.mu.Lock()
	if p.status.IsAlive() {
		p.status = StatusExited
	}
	p.mu.Unlock()

	return err
}

// discoveredProcess is a synthetic handle for a process found via ps.
// Its logs were never captured, so Logs always fails.
// discoveredProcess 是通过 ps 发现的进程的合成句柄。其日志从未被捕获，因此 Logs 总是失败。
type discoveredProcess struct {
	pid       int
	command   string
	killGrace time.Duration
}

// ID returns a pid-derived identifier
// ID 返回基于 pid 的标识符
func (p *discoveredProcess) ID() string { return fmt.Sprintf("pid-%d", p.pid) }

// Command returns the command string from ps
// Command 返回来自 ps 的命令字符串
func (p *discoveredProcess) Command() string { return p.command }

// Status checks process liveness via signal 0
// Status 通过信号 0 检查进程存活
func (p *discoveredProcess) Status() ProcessStatus {
	if isProcessAlive(p.pid) {
		return StatusRunning
	}
	return StatusExited
}

// WaitForPort waits until the TCP port accepts connections or times out
// WaitForPort 等待 TCP 端口接受连接或超时
func (p *discoveredProcess) WaitForPort(ctx context.Context, port int, opts WaitOptions) error {
	return waitTCPPort(ctx, port, opts.Timeout)
}

// Logs always fails for discovered processes
// 对于发现的进程，Logs 总是失败
func (p *discoveredProcess) Logs(ctx context.Context) (ProcessLogs, error) {
	return ProcessLogs{}, fmt.Errorf("%w: process %d was not started by this sandbox", ErrLogsUnavailable, p.pid)
}

// Kill terminates the process: SIGTERM, bounded wait, then SIGKILL
// Kill 终止进程：先 SIGTERM，有限等待，然后 SIGKILL
func (p *discoveredProcess) Kill(ctx context.Context) error {
	return killWithGrace(ctx, p.pid, p.killGrace)
}

// Helper functions / 辅助函数

// waitTCPPort polls a local TCP port until it accepts connections or the
// timeout elapses
// waitTCPPort 轮询本地 TCP 端口，直到它接受连接或超时
func waitTCPPort(ctx context.Context, port int, timeout time.Duration) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	deadline := time.Now().Add(timeout)

	for {
		conn, err := net.DialTimeout("tcp", addr, portDialTimeout)
		if err == nil {
			conn.Close()
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: port %d after %v", ErrPortWaitTimeout, port, timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(portPollInterval):
		}
	}
}

// killWithGrace sends SIGTERM, waits for exit, then escalates to SIGKILL
// killWithGrace 发送 SIGTERM，等待退出，然后升级为 SIGKILL
func killWithGrace(ctx context.Context, pid int, grace time.Duration) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	if !isProcessAlive(pid) {
		return nil
	}

	if err := sendSignal(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}

	// Wait for graceful exit / 等待优雅退出
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !isProcessAlive(pid) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	// Force kill / 强制杀死
	if isProcessAlive(pid) {
		if err := sendSignal(pid, syscall.SIGKILL); err != nil {
			return fmt.Errorf("failed to force-kill process %d: %w", pid, err)
		}
		fmt.Printf("[LocalSandbox] Sent SIGKILL to process %d / 向进程 %d 发送 SIGKILL\n", pid, pid)
	}

	return nil
}

// isProcessAlive checks if a process with the given PID is alive
// isProcessAlive 检查给定 PID 的进程是否存活
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so send signal 0 to check
	// 在 Unix 上，FindProcess 总是成功，所以发送信号 0 来检查
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// sendSignal sends a signal to a process
// sendSignal 向进程发送信号
func sendSignal(pid int, sig syscall.Signal) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Signal(sig)
}
