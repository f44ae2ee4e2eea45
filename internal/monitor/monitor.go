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

// Package monitor provides the keep-alive loop for the Keeper daemon.
// monitor 包提供 Keeper 守护进程的保活循环。
//
// This package provides:
// 此包提供：
// - Periodic gateway ensure invocation / 周期性的网关确保调用
// - Consecutive failure detection / 连续失败检测
// - Gateway lifecycle event generation / 网关生命周期事件生成
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moltbot/moltbotX/keeper/internal/sandbox"
)

// DefaultEnsureInterval is the default interval between ensure cycles
// DefaultEnsureInterval 是两次确保周期之间的默认间隔
const DefaultEnsureInterval = 30 * time.Second

// DefaultFailThreshold is the number of consecutive ensure failures before
// the monitor raises a failure event
// DefaultFailThreshold 是监控器发出失败事件前的连续确保失败次数
const DefaultFailThreshold = 3

// EnsureFunc is the startup coordination entry point the monitor drives.
// Each tick invokes it; the implementation deduplicates overlapping calls.
// EnsureFunc 是监控器驱动的启动协调入口。每个周期调用一次；实现会对重叠调用去重。
type EnsureFunc func(ctx context.Context) (sandbox.ProcessHandle, error)

// GatewayEventType represents the type of gateway lifecycle event
// GatewayEventType 表示网关生命周期事件类型
type GatewayEventType string

const (
	// EventReady fires on the first successful ensure
	// EventReady 在首次成功确保时触发
	EventReady GatewayEventType = "ready"

	// EventRecovered fires when an ensure succeeds after failures
	// EventRecovered 在失败后确保成功时触发
	EventRecovered GatewayEventType = "recovered"

	// EventFailed fires when consecutive failures reach the threshold
	// EventFailed 在连续失败达到阈值时触发
	EventFailed GatewayEventType = "failed"
)

// GatewayEvent represents a gateway lifecycle event
// GatewayEvent 表示网关生命周期事件
type GatewayEvent struct {
	Type             GatewayEventType
	ProcessID        string
	ConsecutiveFails int
	Err              error
	Timestamp        time.Time
}

// GatewayEventHandler is called when gateway events occur
// GatewayEventHandler 在网关事件发生时被调用
type GatewayEventHandler func(event *GatewayEvent)

// KeepAliveMonitor periodically re-ensures the gateway and tracks failures
// KeepAliveMonitor 周期性地重新确保网关并跟踪失败
type KeepAliveMonitor struct {
	ensure           EnsureFunc
	interval         time.Duration
	failThreshold    int
	eventHandler     GatewayEventHandler
	consecutiveFails int
	lastProcessID    string
	ctx              context.Context
	cancel           context.CancelFunc
	running          bool
	mu               sync.RWMutex
}

// NewKeepAliveMonitor creates a new KeepAliveMonitor instance
// NewKeepAliveMonitor 创建一个新的 KeepAliveMonitor 实例
func NewKeepAliveMonitor(ensure EnsureFunc) *KeepAliveMonitor {
	return &KeepAliveMonitor{
		ensure:        ensure,
		interval:      DefaultEnsureInterval,
		failThreshold: DefaultFailThreshold,
	}
}

// SetInterval sets the ensure interval
// SetInterval 设置确保间隔
func (m *KeepAliveMonitor) SetInterval(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = interval
}

// SetFailThreshold sets the consecutive failure threshold
// SetFailThreshold 设置连续失败阈值
func (m *KeepAliveMonitor) SetFailThreshold(threshold int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failThreshold = threshold
}

// SetEventHandler sets the event handler callback
// SetEventHandler 设置事件处理回调
func (m *KeepAliveMonitor) SetEventHandler(handler GatewayEventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventHandler = handler
}

// ConsecutiveFails returns the current consecutive failure count
// ConsecutiveFails 返回当前的连续失败计数
func (m *KeepAliveMonitor) ConsecutiveFails() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.consecutiveFails
}

// IsRunning returns whether the monitor loop is active
// IsRunning 返回监控循环是否处于活动状态
func (m *KeepAliveMonitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Start begins the keep-alive loop. The first ensure runs immediately, then
// every interval until Stop or parent context cancellation.
// Start 开始保活循环。第一次确保立即执行，之后每个间隔执行一次，
// 直到 Stop 或父上下文取消。
func (m *KeepAliveMonitor) Start(parent context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("keep-alive monitor is already running")
	}
	m.ctx, m.cancel = context.WithCancel(parent)
	m.running = true
	interval := m.interval
	m.mu.Unlock()

	fmt.Printf("[KeepAliveMonitor] Starting keep-alive loop with interval %v / 启动保活循环，间隔 %v\n",
		interval, interval)

	go m.loop(interval)
	return nil
}

// Stop stops the keep-alive loop
// Stop 停止保活循环
func (m *KeepAliveMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.cancel()
	m.running = false
	fmt.Println("[KeepAliveMonitor] Keep-alive loop stopped / 保活循环已停止")
}

// loop is the monitor goroutine body
// loop 是监控 goroutine 的主体
func (m *KeepAliveMonitor) loop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Immediate first cycle so the gateway comes up without waiting a full
	// interval
	// 立即执行第一个周期，使网关无需等待完整间隔即可启动
	m.runCycle()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.runCycle()
		}
	}
}

// runCycle performs one ensure cycle and updates failure accounting
// runCycle 执行一次确保周期并更新失败计数
func (m *KeepAliveMonitor) runCycle() {
	proc, err := m.ensure(m.ctx)

	m.mu.Lock()
	if err != nil {
		m.consecutiveFails++
		fails := m.consecutiveFails
		threshold := m.failThreshold
		handler := m.eventHandler
		m.mu.Unlock()

		fmt.Printf("[KeepAliveMonitor] Ensure cycle failed (%d/%d): %v / 确保周期失败（%d/%d）：%v\n",
			fails, threshold, err, fails, threshold, err)

		if fails == threshold && handler != nil {
			handler(&GatewayEvent{
				Type:             EventFailed,
				ConsecutiveFails: fails,
				Err:              err,
				Timestamp:        time.Now(),
			})
		}
		return
	}

	prevFails := m.consecutiveFails
	firstSuccess := m.lastProcessID == ""
	m.consecutiveFails = 0
	m.lastProcessID = proc.ID()
	handler := m.eventHandler
	m.mu.Unlock()

	if handler == nil {
		return
	}
	switch {
	case prevFails > 0:
		handler(&GatewayEvent{
			Type:             EventRecovered,
			ProcessID:        proc.ID(),
			ConsecutiveFails: prevFails,
			Timestamp:        time.Now(),
		})
	case firstSuccess:
		handler(&GatewayEvent{
			Type:      EventReady,
			ProcessID: proc.ID(),
			Timestamp: time.Now(),
		})
	}
}
