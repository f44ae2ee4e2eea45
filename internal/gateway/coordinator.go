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

// Package gateway coordinates gateway process startup for the Keeper.
// gateway 包为 Keeper 协调网关进程的启动。
//
// The Coordinator guarantees:
// Coordinator 保证：
// - At most one startup attempt is in flight at any time / 任一时刻最多一个启动尝试在途
// - All concurrent callers share that attempt's result / 所有并发调用方共享该尝试的结果
// - A reachable existing gateway is reused before any restart / 可达的已有网关在任何重启前被复用
// - A stuck gateway is killed and relaunched exactly once per call / 卡住的网关在每次调用中只被杀死并重启一次
package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/moltbot/moltbotX/keeper/internal/config"
	"github.com/moltbot/moltbotX/keeper/internal/discovery"
	"github.com/moltbot/moltbotX/keeper/internal/env"
	"github.com/moltbot/moltbotX/keeper/internal/probe"
	"github.com/moltbot/moltbotX/keeper/internal/sandbox"
	"github.com/moltbot/moltbotX/keeper/internal/storage"
)

// UnknownStartupError is the generic marker used when a failed gateway left
// no stderr or stdout to report
// UnknownStartupError 是网关失败且没有留下任何标准错误/标准输出时使用的通用标记
const UnknownStartupError = "unknown gateway startup error"

// startupAttempt is one in-flight coordination unit. All callers that join
// while it is in flight block on done and read the same proc/err pair.
// startupAttempt 是一个在途的协调单元。在其在途期间加入的所有调用方都阻塞在
// done 上并读取同一对 proc/err。
type startupAttempt struct {
	done chan struct{}
	proc sandbox.ProcessHandle
	err  error
}

// Coordinator ensures exactly one ready gateway process in the sandbox
// Coordinator 确保沙箱内恰好有一个就绪的网关进程
type Coordinator struct {
	// sandbox is the capability handle to the execution environment
	// sandbox 是执行环境的能力句柄
	sandbox sandbox.Sandbox

	// scanner locates existing gateway processes
	// scanner 定位已有的网关进程
	scanner *discovery.Scanner

	// prober verifies network readiness
	// prober 验证网络就绪
	prober *probe.Prober

	// envBuilder supplies the launch environment mapping
	// envBuilder 提供启动环境映射
	envBuilder *env.Builder

	// mounter performs the best-effort storage mount
	// mounter 执行尽力而为的存储挂载
	mounter *storage.Mounter

	// cfg is the keeper configuration
	// cfg 是 Keeper 配置
	cfg *config.Config

	// inflight is the single startup attempt slot; nil when idle. Guarded by
	// mu so the check-and-set in EnsureRunning is race-free.
	// inflight 是单一的启动尝试槽位；空闲时为 nil。由 mu 保护，
	// 使 EnsureRunning 中的检查并置位没有竞态。
	inflight *startupAttempt
	mu       sync.Mutex
}

// NewCoordinator creates a new Coordinator instance
// NewCoordinator 创建一个新的 Coordinator 实例
func NewCoordinator(sb sandbox.Sandbox, cfg *config.Config) *Coordinator {
	return &Coordinator{
		sandbox:    sb,
		scanner:    discovery.NewScanner(cfg.ClassifierRules()),
		prober:     probe.NewProber(),
		envBuilder: env.NewBuilder(),
		mounter:    storage.NewMounter(),
		cfg:        cfg,
	}
}

// Prober exposes the prober, mainly so callers can shorten the readiness
// timeout in tests
// Prober 暴露探测器，主要用于在测试中缩短就绪超时
func (c *Coordinator) Prober() *probe.Prober {
	return c.prober
}

// EnsureRunning returns a ready gateway process handle, starting one if
// needed. Concurrent calls are deduplicated: while an attempt is in flight,
// new callers wait on it and receive its result instead of doing any work.
// EnsureRunning 返回一个就绪的网关进程句柄，需要时启动一个。并发调用会被去重：
// 当一个尝试在途时，新调用方等待它并接收其结果，而不做任何工作。
func (c *Coordinator) EnsureRunning(ctx context.Context) (sandbox.ProcessHandle, error) {
	c.mu.Lock()
	if att := c.inflight; att != nil {
		c.mu.Unlock()
		fmt.Println("[Coordinator] Gateway startup already in flight, joining existing attempt / 网关启动已在途，加入现有尝试")
		<-att.done
		return att.proc, att.err
	}

	// Record the attempt before doing any work so a caller arriving a moment
	// later joins instead of starting a duplicate.
	// 在做任何工作之前先记录尝试，使稍后到达的调用方加入而不是重复启动。
	att := &startupAttempt{done: make(chan struct{})}
	c.inflight = att
	c.mu.Unlock()

	// Clear the slot unconditionally, then publish the result to every
	// waiter. A completed attempt is never reused: the next call re-evaluates
	// from the scanner step.
	// 无条件清除槽位，然后把结果发布给所有等待者。完成的尝试不会被复用：
	// 下一次调用从扫描步骤重新评估。
	defer func() {
		c.mu.Lock()
		c.inflight = nil
		c.mu.Unlock()
		close(att.done)
	}()

	att.proc, att.err = c.runAttempt(ctx)
	return att.proc, att.err
}

// runAttempt is the body of one startup attempt
// runAttempt 是一次启动尝试的主体
func (c *Coordinator) runAttempt(ctx context.Context) (sandbox.ProcessHandle, error) {
	port := c.cfg.Gateway.Port

	// Step 1: best-effort mount of the remote backup storage
	// 步骤 1：尽力而为地挂载远程备份存储
	c.runBestEffort("mount backup storage", func() error {
		return c.mounter.Mount(ctx, c.sandbox, c.cfg)
	})

	// Step 2: reuse an existing gateway when one is reachable
	// 步骤 2：当已有网关可达时复用它
	if existing := c.scanner.FindGatewayProcess(ctx, c.sandbox); existing != nil {
		if err := c.prober.WaitReady(ctx, existing, port); err == nil {
			fmt.Printf("[Coordinator] Reusing ready gateway process %s / 复用就绪的网关进程 %s\n",
				existing.ID(), existing.ID())
			return existing, nil
		} else {
			// The existing process is presumed unusable whether or not the
			// kill itself succeeds; either way a fresh launch follows.
			// 无论杀死本身是否成功，已有进程都被认定不可用；两种情况下都会进行全新启动。
			fmt.Printf("[Coordinator] Existing gateway process %s is not reachable, restarting: %v / 已有网关进程 %s 不可达，重启：%v\n",
				existing.ID(), err, existing.ID(), err)
			c.runBestEffort("kill stale gateway process", func() error {
				return existing.Kill(ctx)
			})
		}
	}

	// Step 3: launch a fresh gateway. A launch failure is terminal for this
	// attempt, no retry.
	// 步骤 3：启动新网关。启动失败对本次尝试是终止性的，不重试。
	opts := sandbox.StartOptions{}
	if vars := c.envBuilder.BuildEnvVars(c.cfg); len(vars) > 0 {
		opts.Env = vars
	}

	fmt.Printf("[Coordinator] Launching gateway: %s / 启动网关：%s\n",
		c.cfg.Gateway.LaunchCommand, c.cfg.Gateway.LaunchCommand)
	proc, err := c.sandbox.StartProcess(ctx, c.cfg.Gateway.LaunchCommand, opts)
	if err != nil {
		fmt.Printf("[Coordinator] Failed to launch gateway process: %v / 启动网关进程失败：%v\n", err, err)
		return nil, fmt.Errorf("failed to launch gateway process: %w", err)
	}

	// Step 4: probe the fresh gateway with the same bounded timeout
	// 步骤 4：用同样的有界超时探测新网关
	if err := c.prober.WaitReady(ctx, proc, port); err != nil {
		return nil, c.buildStartupError(ctx, proc, err)
	}

	// Success: surface the startup output for diagnostic visibility
	// 成功：输出启动日志以便诊断
	c.runBestEffort("fetch gateway startup logs", func() error {
		logs, err := proc.Logs(ctx)
		if err != nil {
			return err
		}
		if out := strings.TrimSpace(logs.Stdout); out != "" {
			fmt.Printf("[Coordinator] Gateway startup output: %s\n", out)
		}
		return nil
	})

	fmt.Printf("[Coordinator] Gateway process %s is ready on port %d / 网关进程 %s 已在端口 %d 就绪\n",
		proc.ID(), port, proc.ID(), port)
	return proc, nil
}

// buildStartupError builds the terminal error for a fresh gateway that never
// became ready: stderr preferred, then stdout, then a generic marker. When
// log retrieval itself fails, the original probe error is surfaced instead.
// buildStartupError 为始终未就绪的新网关构建终止性错误：优先标准错误，其次标准输出，
// 最后是通用标记。当日志获取本身失败时，转而返回原始探测错误。
func (c *Coordinator) buildStartupError(ctx context.Context, proc sandbox.ProcessHandle, probeErr error) error {
	logs, err := proc.Logs(ctx)
	if err != nil {
		fmt.Printf("[Coordinator] Failed to fetch gateway logs after timeout: %v / 超时后获取网关日志失败：%v\n", err, err)
		return fmt.Errorf("gateway did not become ready: %w", probeErr)
	}

	detail := strings.TrimSpace(logs.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(logs.Stdout)
	}
	if detail == "" {
		detail = UnknownStartupError
	}

	return fmt.Errorf("gateway did not become ready on port %d: %s", c.cfg.Gateway.Port, detail)
}

// runBestEffort runs fn and converts any failure into a logged no-op. Used
// at the soft-failure points: storage mount, stale kill, success-path log
// fetch.
// runBestEffort 运行 fn 并把任何失败转化为仅记录日志的空操作。用于软失败点：
// 存储挂载、杀死过期进程、成功路径的日志获取。
func (c *Coordinator) runBestEffort(label string, fn func() error) {
	if err := fn(); err != nil {
		fmt.Printf("[Coordinator] Best-effort step %q failed, continuing: %v / 尽力而为步骤 %q 失败，继续：%v\n",
			label, err, label, err)
	}
}
