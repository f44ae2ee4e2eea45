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

// Package main is the entry point for the Moltbot Keeper service.
// main 包是 Moltbot Keeper 服务的入口点。
//
// Keeper is a daemon process deployed alongside the Moltbot sandbox that:
// Keeper 是与 Moltbot 沙箱一同部署的守护进程，负责：
// - Ensures exactly one gateway process is running and reachable / 确保恰好一个网关进程在运行且可达
// - Deduplicates concurrent startup requests / 对并发启动请求去重
// - Kills and relaunches gateways that stop answering / 杀死并重启停止响应的网关
// - Mounts remote backup storage before startup / 启动前挂载远程备份存储
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/moltbot/moltbotX/keeper/internal/config"
	"github.com/moltbot/moltbotX/keeper/internal/gateway"
	"github.com/moltbot/moltbotX/keeper/internal/logging"
	"github.com/moltbot/moltbotX/keeper/internal/monitor"
	"github.com/moltbot/moltbotX/keeper/internal/sandbox"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version information, set at build time
// 版本信息，在构建时设置
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Keeper represents the main service that integrates all components
// Keeper 表示集成所有组件的主服务
type Keeper struct {
	// config holds the keeper configuration
	// config 保存 Keeper 配置
	config *config.Config

	// ctx is the main context for the keeper
	// ctx 是 Keeper 的主上下文
	ctx context.Context

	// cancel cancels the main context
	// cancel 取消主上下文
	cancel context.CancelFunc

	// logger is the structured logger
	// logger 是结构化日志器
	logger *zap.Logger

	// sandbox is the local process sandbox
	// sandbox 是本地进程沙箱
	sandbox *sandbox.LocalSandbox

	// coordinator deduplicates and drives gateway startup
	// coordinator 对网关启动去重并驱动启动
	coordinator *gateway.Coordinator

	// keepAlive re-ensures the gateway periodically
	// keepAlive 周期性地重新确保网关
	keepAlive *monitor.KeepAliveMonitor

	// wg tracks running goroutines for graceful shutdown
	// wg 跟踪运行中的 goroutine 以实现优雅关闭
	wg sync.WaitGroup

	// running indicates if the keeper is running
	// running 表示 Keeper 是否正在运行
	running bool

	// mu protects the running state
	// mu 保护运行状态
	mu sync.RWMutex
}

// NewKeeper creates a new Keeper instance with all components initialized
// NewKeeper 创建一个初始化所有组件的新 Keeper 实例
func NewKeeper(cfg *config.Config) *Keeper {
	ctx, cancel := context.WithCancel(context.Background())

	// Create local sandbox / 创建本地沙箱
	sb := sandbox.NewLocalSandbox(cfg.Sandbox.WorkDir, cfg.Sandbox.LogDir)

	// Create startup coordinator / 创建启动协调器
	coord := gateway.NewCoordinator(sb, cfg)

	// Create keep-alive monitor driven by the coordinator
	// 创建由协调器驱动的保活监控器
	ka := monitor.NewKeepAliveMonitor(coord.EnsureRunning)
	ka.SetInterval(cfg.Keeper.EnsureInterval)
	ka.SetFailThreshold(cfg.Keeper.FailThreshold)

	return &Keeper{
		config:      cfg,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logging.New(cfg.Log),
		sandbox:     sb,
		coordinator: coord,
		keepAlive:   ka,
	}
}

// Run starts the Keeper service and all its components
// Run 启动 Keeper 服务及其所有组件
func (k *Keeper) Run() error {
	k.mu.Lock()
	if k.running {
		k.mu.Unlock()
		return fmt.Errorf("keeper is already running / Keeper 已在运行")
	}
	k.running = true
	k.mu.Unlock()

	fmt.Println("========================================")
	fmt.Println("  Moltbot Keeper Starting...")
	fmt.Println("  Moltbot Keeper 正在启动...")
	fmt.Println("========================================")
	fmt.Printf("Version: %s, Commit: %s, Build: %s\n", Version, GitCommit, BuildTime)
	fmt.Printf("Gateway Port: %d\n", k.config.Gateway.Port)
	fmt.Printf("Ensure Interval: %v\n", k.config.Keeper.EnsureInterval)
	fmt.Printf("Log Level: %s\n", k.config.Log.Level)

	// Step 1: Wire gateway lifecycle events into the logger
	// 步骤 1：将网关生命周期事件接入日志器
	fmt.Println("[1/3] Wiring gateway event handler... / 接入网关事件处理器...")
	k.keepAlive.SetEventHandler(k.handleGatewayEvent)

	// Step 2: Run the first ensure synchronously so startup failures surface
	// immediately
	// 步骤 2：同步执行第一次确保，使启动失败立即暴露
	fmt.Println("[2/3] Ensuring gateway process... / 确保网关进程...")
	proc, err := k.coordinator.EnsureRunning(k.ctx)
	if err != nil {
		k.logger.Error("initial gateway startup failed", zap.Error(err))
		return fmt.Errorf("failed to start gateway: %w / 启动网关失败：%w", err, err)
	}
	k.logger.Info("gateway ready",
		zap.String("process_id", proc.ID()),
		zap.Int("port", k.config.Gateway.Port))

	// Step 3: Start the keep-alive loop
	// 步骤 3：启动保活循环
	fmt.Println("[3/3] Starting keep-alive monitor... / 启动保活监控器...")
	if err := k.keepAlive.Start(k.ctx); err != nil {
		return fmt.Errorf("failed to start keep-alive monitor: %w / 启动保活监控器失败：%w", err, err)
	}

	fmt.Println("========================================")
	fmt.Println("  Keeper started successfully!")
	fmt.Println("  Keeper 启动成功！")
	fmt.Println("========================================")

	// Wait for context cancellation (shutdown signal)
	// 等待上下文取消（关闭信号）
	<-k.ctx.Done()

	return nil
}

// handleGatewayEvent logs gateway lifecycle events
// handleGatewayEvent 记录网关生命周期事件
func (k *Keeper) handleGatewayEvent(event *monitor.GatewayEvent) {
	switch event.Type {
	case monitor.EventReady:
		k.logger.Info("gateway ready", zap.String("process_id", event.ProcessID))
	case monitor.EventRecovered:
		k.logger.Warn("gateway recovered after failures",
			zap.String("process_id", event.ProcessID),
			zap.Int("consecutive_fails", event.ConsecutiveFails))
	case monitor.EventFailed:
		k.logger.Error("gateway ensure failing repeatedly",
			zap.Int("consecutive_fails", event.ConsecutiveFails),
			zap.Error(event.Err))
	}
}

// Shutdown gracefully stops the Keeper service
// Shutdown 优雅地停止 Keeper 服务
func (k *Keeper) Shutdown() {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return
	}
	k.running = false
	k.mu.Unlock()

	fmt.Println("========================================")
	fmt.Println("  Shutting down Keeper service...")
	fmt.Println("  正在关闭 Keeper 服务...")
	fmt.Println("========================================")

	// Step 1: Stop the keep-alive loop so no new attempts begin
	// 步骤 1：停止保活循环，不再开始新的尝试
	fmt.Println("[1/2] Stopping keep-alive monitor... / 停止保活监控器...")
	k.keepAlive.Stop()

	// Step 2: Cancel the main context. The gateway itself is left running:
	// the Keeper restarting must not take the gateway down with it.
	// 步骤 2：取消主上下文。网关本身继续运行：Keeper 重启不能连带关掉网关。
	fmt.Println("[2/2] Stopping background goroutines... / 停止后台 goroutine...")
	k.cancel()

	// Wait for all goroutines to finish (with timeout)
	// 等待所有 goroutine 完成（带超时）
	done := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		fmt.Println("All goroutines stopped / 所有 goroutine 已停止")
	case <-time.After(10 * time.Second):
		fmt.Println("Timeout waiting for goroutines / 等待 goroutine 超时")
	}

	_ = k.logger.Sync()

	fmt.Println("========================================")
	fmt.Println("  Keeper shutdown complete")
	fmt.Println("  Keeper 关闭完成")
	fmt.Println("========================================")
}

// rootCmd is the root command for the Keeper CLI
// rootCmd 是 Keeper CLI 的根命令
var rootCmd = &cobra.Command{
	Use:   "moltbot-keeper",
	Short: "Moltbot Keeper - Gateway process coordinator for the Moltbot sandbox",
	Long: `Moltbot Keeper is a daemon process deployed alongside the Moltbot sandbox.
Moltbot Keeper 是与 Moltbot 沙箱一同部署的守护进程。

It keeps exactly one gateway process alive and reachable:
它保持恰好一个网关进程存活且可达：
- Reuses a reachable existing gateway / 复用可达的已有网关
- Kills and relaunches unresponsive gateways / 杀死并重启无响应的网关
- Deduplicates concurrent startup requests / 对并发启动请求去重
- Mounts remote backup storage before startup / 启动前挂载远程备份存储`,
	RunE: runKeeper,
}

// versionCmd shows version information
// versionCmd 显示版本信息
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information / 打印版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Moltbot Keeper\n")
		fmt.Printf("  Version:    %s\n", Version)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Go Version: %s\n", runtime.Version())
		fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

// ensureCmd performs a single ensure cycle and exits
// ensureCmd 执行单次确保周期并退出
var ensureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Ensure the gateway is running once and exit / 确保网关运行一次后退出",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		sb := sandbox.NewLocalSandbox(cfg.Sandbox.WorkDir, cfg.Sandbox.LogDir)
		coord := gateway.NewCoordinator(sb, cfg)

		proc, err := coord.EnsureRunning(cmd.Context())
		if err != nil {
			return fmt.Errorf("gateway not ready: %w / 网关未就绪：%w", err, err)
		}

		fmt.Printf("Gateway process %s ready on port %d / 网关进程 %s 已在端口 %d 就绪\n",
			proc.ID(), cfg.Gateway.Port, proc.ID(), cfg.Gateway.Port)
		return nil
	},
}

// configFile is the path to the configuration file
// configFile 是配置文件的路径
var configFile string

func init() {
	// Add flags to root command
	// 向根命令添加标志
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: /etc/moltbot-keeper/config.yaml)")

	// Add subcommands
	// 添加子命令
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(ensureCmd)
}

// loadConfig loads and validates the configuration
// loadConfig 加载并验证配置
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w / 加载配置失败：%w", err, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w / 无效配置：%w", err, err)
	}
	return cfg, nil
}

// runKeeper is the main entry point for the Keeper service
// runKeeper 是 Keeper 服务的主入口点
func runKeeper(cmd *cobra.Command, args []string) error {
	// Load configuration
	// 加载配置
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Create keeper
	// 创建 Keeper
	keeper := NewKeeper(cfg)

	// Setup signal handling for graceful shutdown
	// 设置信号处理以实现优雅关闭
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Run keeper in goroutine
	// 在 goroutine 中运行 Keeper
	errChan := make(chan error, 1)
	go func() {
		errChan <- keeper.Run()
	}()

	// Wait for signal or error
	// 等待信号或错误
	select {
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v / 收到信号：%v\n", sig, sig)
		keeper.Shutdown()
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
