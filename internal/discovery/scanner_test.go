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

package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/moltbot/moltbotX/keeper/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProcess is a minimal ProcessHandle for scanner tests
// stubProcess 是用于扫描器测试的最小 ProcessHandle
type stubProcess struct {
	id      string
	command string
	status  sandbox.ProcessStatus
}

func (p *stubProcess) ID() string                     { return p.id }
func (p *stubProcess) Command() string                { return p.command }
func (p *stubProcess) Status() sandbox.ProcessStatus  { return p.status }
func (p *stubProcess) Kill(ctx context.Context) error { return nil }
func (p *stubProcess) WaitForPort(ctx context.Context, port int, opts sandbox.WaitOptions) error {
	return nil
}
func (p *stubProcess) Logs(ctx context.Context) (sandbox.ProcessLogs, error) {
	return sandbox.ProcessLogs{}, nil
}

// stubSandbox is a minimal Sandbox for scanner tests
// stubSandbox 是用于扫描器测试的最小 Sandbox
type stubSandbox struct {
	procs   []sandbox.ProcessHandle
	listErr error
}

func (s *stubSandbox) ListProcesses(ctx context.Context) ([]sandbox.ProcessHandle, error) {
	return s.procs, s.listErr
}

func (s *stubSandbox) StartProcess(ctx context.Context, command string, opts sandbox.StartOptions) (sandbox.ProcessHandle, error) {
	return nil, errors.New("not supported")
}

// TestScanner_FindGatewayProcess tests gateway discovery
// TestScanner_FindGatewayProcess 测试网关发现
func TestScanner_FindGatewayProcess(t *testing.T) {
	scanner := NewScanner(DefaultClassifierRules())

	sb := &stubSandbox{
		procs: []sandbox.ProcessHandle{
			&stubProcess{id: "p1", command: "/usr/bin/sshd -D", status: sandbox.StatusRunning},
			&stubProcess{id: "p2", command: "clawdbot devices list", status: sandbox.StatusRunning},
			&stubProcess{id: "p3", command: "clawdbot gateway", status: sandbox.StatusRunning},
			&stubProcess{id: "p4", command: "clawdbot gateway", status: sandbox.StatusRunning},
		},
	}

	proc := scanner.FindGatewayProcess(context.Background(), sb)
	require.NotNil(t, proc)

	// First qualifying process wins / 第一个符合条件的进程胜出
	assert.Equal(t, "p3", proc.ID())
}

// TestScanner_FindGatewayProcess_SkipsDeadProcesses tests that exited
// processes are never returned
// TestScanner_FindGatewayProcess_SkipsDeadProcesses 测试已退出的进程永不返回
func TestScanner_FindGatewayProcess_SkipsDeadProcesses(t *testing.T) {
	scanner := NewScanner(DefaultClassifierRules())

	sb := &stubSandbox{
		procs: []sandbox.ProcessHandle{
			&stubProcess{id: "dead", command: "clawdbot gateway", status: sandbox.StatusExited},
			&stubProcess{id: "live", command: "clawdbot gateway", status: sandbox.StatusStarting},
		},
	}

	proc := scanner.FindGatewayProcess(context.Background(), sb)
	require.NotNil(t, proc)
	assert.Equal(t, "live", proc.ID())
}

// TestScanner_FindGatewayProcess_NoMatch tests the no-gateway case
// TestScanner_FindGatewayProcess_NoMatch 测试无网关情况
func TestScanner_FindGatewayProcess_NoMatch(t *testing.T) {
	scanner := NewScanner(DefaultClassifierRules())

	sb := &stubSandbox{
		procs: []sandbox.ProcessHandle{
			&stubProcess{id: "p1", command: "clawdbot devices list", status: sandbox.StatusRunning},
			&stubProcess{id: "p2", command: "clawdbot --version", status: sandbox.StatusRunning},
		},
	}

	assert.Nil(t, scanner.FindGatewayProcess(context.Background(), sb))
}

// TestScanner_FindGatewayProcess_ListFailureDegrades tests that a listing
// failure degrades to "no process" instead of panicking or aborting
// TestScanner_FindGatewayProcess_ListFailureDegrades 测试列举失败降级为"无进程"
// 而不是崩溃或中止
func TestScanner_FindGatewayProcess_ListFailureDegrades(t *testing.T) {
	scanner := NewScanner(DefaultClassifierRules())

	sb := &stubSandbox{listErr: errors.New("sandbox unavailable")}
	assert.Nil(t, scanner.FindGatewayProcess(context.Background(), sb))
}
