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
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProcessStatus_IsAlive tests liveness classification
// TestProcessStatus_IsAlive 测试存活分类
func TestProcessStatus_IsAlive(t *testing.T) {
	assert.True(t, StatusStarting.IsAlive())
	assert.True(t, StatusRunning.IsAlive())
	assert.False(t, StatusExited.IsAlive())
	assert.False(t, StatusFailed.IsAlive())
}

// TestWaitTCPPort tests TCP readiness polling against a real listener
// TestWaitTCPPort 测试针对真实监听器的 TCP 就绪轮询
func TestWaitTCPPort(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port

	err = waitTCPPort(context.Background(), port, 5*time.Second)
	assert.NoError(t, err)
}

// TestWaitTCPPort_Timeout tests the timeout path on a closed port
// TestWaitTCPPort_Timeout 测试端口关闭时的超时路径
func TestWaitTCPPort_Timeout(t *testing.T) {
	// Grab a free port then release it so nothing listens there
	// 获取一个空闲端口然后释放，使其上没有监听者
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	err = waitTCPPort(context.Background(), port, 1*time.Second)
	require.Error(t, err)
	assert.True(t, IsPortWaitTimeout(err))
	assert.Contains(t, err.Error(), strconv.Itoa(port))
}

// TestWaitTCPPort_ContextCancellation tests that cancellation cuts the wait
// TestWaitTCPPort_ContextCancellation 测试取消会中断等待
func TestWaitTCPPort_ContextCancellation(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err = waitTCPPort(ctx, port, 30*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// TestLocalSandbox_StartProcess tests process startup with output capture
// TestLocalSandbox_StartProcess 测试带输出捕获的进程启动
func TestLocalSandbox_StartProcess(t *testing.T) {
	sb := NewLocalSandbox(t.TempDir(), t.TempDir())

	proc, err := sb.StartProcess(context.Background(), "echo hello-gateway; echo boom >&2", StartOptions{})
	require.NoError(t, err)
	require.NotNil(t, proc)

	assert.NotEmpty(t, proc.ID())
	assert.Contains(t, proc.Command(), "hello-gateway")

	// Wait for the short-lived process to finish / 等待短命进程结束
	require.Eventually(t, func() bool {
		return proc.Status() == StatusExited
	}, 5*time.Second, 50*time.Millisecond)

	logs, err := proc.Logs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello-gateway", strings.TrimSpace(logs.Stdout))
	assert.Equal(t, "boom", strings.TrimSpace(logs.Stderr))
}

// TestLocalSandbox_StartProcess_EmptyCommand tests rejection of empty commands
// TestLocalSandbox_StartProcess_EmptyCommand 测试拒绝空命令
func TestLocalSandbox_StartProcess_EmptyCommand(t *testing.T) {
	sb := NewLocalSandbox(t.TempDir(), t.TempDir())

	_, err := sb.StartProcess(context.Background(), "   ", StartOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStartFailed)
}

// TestLocalSandbox_StartProcess_EnvOverride tests explicit env propagation
// TestLocalSandbox_StartProcess_EnvOverride 测试显式环境变量传递
func TestLocalSandbox_StartProcess_EnvOverride(t *testing.T) {
	sb := NewLocalSandbox(t.TempDir(), t.TempDir())

	proc, err := sb.StartProcess(context.Background(), "echo $CLAWDBOT_GATEWAY_PORT", StartOptions{
		Env: map[string]string{"CLAWDBOT_GATEWAY_PORT": "18789"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return proc.Status() == StatusExited
	}, 5*time.Second, 50*time.Millisecond)

	logs, err := proc.Logs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "18789", strings.TrimSpace(logs.Stdout))
}

// TestLocalSandbox_Kill tests killing a long-running process
// TestLocalSandbox_Kill 测试杀死长时间运行的进程
func TestLocalSandbox_Kill(t *testing.T) {
	sb := NewLocalSandbox(t.TempDir(), t.TempDir())
	sb.SetKillGraceTimeout(2 * time.Second)

	proc, err := sb.StartProcess(context.Background(), "sleep 60", StartOptions{})
	require.NoError(t, err)
	require.True(t, proc.Status().IsAlive())

	err = proc.Kill(context.Background())
	require.NoError(t, err)

	assert.False(t, proc.Status().IsAlive())
}

// TestLocalSandbox_ListProcesses tests that started processes are listed
// TestLocalSandbox_ListProcesses 测试已启动的进程会被列出
func TestLocalSandbox_ListProcesses(t *testing.T) {
	sb := NewLocalSandbox(t.TempDir(), t.TempDir())

	proc, err := sb.StartProcess(context.Background(), "sleep 30", StartOptions{})
	require.NoError(t, err)
	defer proc.Kill(context.Background())

	handles, err := sb.ListProcesses(context.Background())
	require.NoError(t, err)

	var found bool
	for _, h := range handles {
		if h.ID() == proc.ID() {
			found = true
			break
		}
	}
	assert.True(t, found, "started process should appear in listing")
}

// TestDiscoveredProcess_LogsUnavailable tests that ps-discovered processes
// have no retrievable logs
// TestDiscoveredProcess_LogsUnavailable 测试通过 ps 发现的进程没有可获取的日志
func TestDiscoveredProcess_LogsUnavailable(t *testing.T) {
	proc := &discoveredProcess{pid: 1, command: "/sbin/init"}

	_, err := proc.Logs(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLogsUnavailable)
}

// TestKillWithGrace_DeadProcess tests that killing an already-dead pid is a
// no-op
// TestKillWithGrace_DeadProcess 测试杀死已死亡的 pid 是空操作
func TestKillWithGrace_DeadProcess(t *testing.T) {
	// PIDs just below the default pid_max are almost never in use
	// 刚好低于默认 pid_max 的 PID 几乎从不使用
	err := killWithGrace(context.Background(), 4194000, time.Second)
	assert.NoError(t, err)

	err = killWithGrace(context.Background(), -1, time.Second)
	assert.Error(t, err)
}
