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

// Package probe provides network readiness probing for gateway processes.
// probe 包提供网关进程的网络就绪探测功能。
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/moltbot/moltbotX/keeper/internal/sandbox"
)

// DefaultReadyTimeout bounds a single readiness probe. Gateway boot can be
// slow (the start script may restore state from backup first), so a short
// timeout would cause false restarts.
// DefaultReadyTimeout 限制单次就绪探测。网关启动可能很慢（启动脚本可能先从备份
// 恢复状态），超时太短会导致错误的重启。
const DefaultReadyTimeout = 120 * time.Second

// Prober waits until a process accepts TCP connections on its port
// Prober 等待进程在其端口上接受 TCP 连接
type Prober struct {
	timeout time.Duration
}

// NewProber creates a Prober with the default timeout
// NewProber 创建一个使用默认超时的 Prober 实例
func NewProber() *Prober {
	return &Prober{timeout: DefaultReadyTimeout}
}

// SetTimeout overrides the probe timeout
// SetTimeout 覆盖探测超时时间
func (p *Prober) SetTimeout(d time.Duration) {
	p.timeout = d
}

// Timeout returns the probe timeout in use
// Timeout 返回使用中的探测超时时间
func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

// WaitReady blocks until the process accepts TCP connections on the port or
// the timeout elapses. On timeout it does not retry; the caller decides the
// remedial action.
// WaitReady 阻塞直到进程在端口上接受 TCP 连接或超时。超时后不自行重试，
// 由调用方决定补救措施。
func (p *Prober) WaitReady(ctx context.Context, proc sandbox.ProcessHandle, port int) error {
	err := proc.WaitForPort(ctx, port, sandbox.WaitOptions{
		Mode:    "tcp",
		Timeout: p.timeout,
	})
	if err != nil {
		return fmt.Errorf("gateway process %s not ready on port %d: %w", proc.ID(), port, err)
	}
	return nil
}

// IsTimeout reports whether a probe error is a readiness timeout
// IsTimeout 报告探测错误是否为就绪超时
func IsTimeout(err error) bool {
	return sandbox.IsPortWaitTimeout(err)
}
