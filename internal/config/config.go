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

// Package config provides configuration management for the Keeper service.
// config 包提供 Keeper 服务的配置管理功能。
//
// Configuration loading priority (highest to lowest):
// 配置加载优先级（从高到低）：
// 1. Environment variables / 环境变量
// 2. Configuration file / 配置文件
// 3. Default values / 默认值
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/moltbot/moltbotX/keeper/internal/discovery"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Default configuration values
// 默认配置值
const (
	DefaultConfigPath     = "/etc/moltbot-keeper/config.yaml"
	DefaultGatewayPort    = 18789
	DefaultLaunchCommand  = "bash " + discovery.DefaultStartScript
	DefaultEnsureInterval = 30 * time.Second
	DefaultFailThreshold  = 3
	DefaultLogLevel       = "info"
	DefaultLogFile        = "/var/log/moltbot-keeper/keeper.log"
	DefaultLogMaxSize     = 100 // MB
	DefaultLogMaxBackups  = 3
	DefaultLogMaxAge      = 7 // days
	DefaultSandboxWorkDir = "/opt/moltbot"
	DefaultSandboxLogDir  = "/var/log/moltbot-keeper/procs"
	DefaultMountPoint     = "/mnt/moltbot-backup"
)

// Config represents the Keeper configuration
// Config 表示 Keeper 配置
type Config struct {
	// Keeper configuration / Keeper 配置
	Keeper KeeperConfig `mapstructure:"keeper" yaml:"keeper"`

	// Gateway configuration / 网关配置
	Gateway GatewayConfig `mapstructure:"gateway" yaml:"gateway"`

	// Storage configuration / 存储配置
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Sandbox configuration / 沙箱配置
	Sandbox SandboxConfig `mapstructure:"sandbox" yaml:"sandbox"`

	// Log configuration / 日志配置
	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// KeeperConfig contains Keeper-specific settings
// KeeperConfig 包含 Keeper 特定设置
type KeeperConfig struct {
	// EnsureInterval is how often the keep-alive monitor re-checks the gateway
	// EnsureInterval 是保活监控器重新检查网关的频率
	EnsureInterval time.Duration `mapstructure:"ensure_interval" yaml:"ensure_interval"`

	// FailThreshold is the number of consecutive ensure failures before alarm
	// FailThreshold 是告警前的连续失败次数
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
}

// GatewayConfig contains gateway process settings
// GatewayConfig 包含网关进程设置
type GatewayConfig struct {
	// Port is the well-known gateway TCP port
	// Port 是众所周知的网关 TCP 端口
	Port int `mapstructure:"port" yaml:"port"`

	// LaunchCommand is the canonical startup command for a fresh gateway
	// LaunchCommand 是启动新网关的规范命令
	LaunchCommand string `mapstructure:"launch_command" yaml:"launch_command"`

	// GatewayCommands/CLICommands override the classifier rule table. The CLI
	// binary name is expected to change upstream, so these must stay
	// configurable rather than hard-coded.
	// GatewayCommands/CLICommands 覆盖分类规则表。CLI 二进制名预计会在上游更改，
	// 因此必须保持可配置而不是硬编码。
	GatewayCommands []string `mapstructure:"gateway_commands" yaml:"gateway_commands"`
	CLICommands     []string `mapstructure:"cli_commands" yaml:"cli_commands"`

	// ExtraEnv is merged into the environment passed to a fresh gateway
	// ExtraEnv 合并到传给新网关的环境中
	ExtraEnv map[string]string `mapstructure:"extra_env" yaml:"extra_env,omitempty"`

	// StateDir is the gateway state directory, exported to the process
	// StateDir 是网关状态目录，导出给进程
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`
}

// StorageConfig contains remote backup storage settings
// StorageConfig 包含远程备份存储设置
type StorageConfig struct {
	// Enabled toggles the best-effort storage mount before startup
	// Enabled 切换启动前的尽力而为存储挂载
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Remote is the rclone-style remote path, e.g. "moltbot-backup:state"
	// Remote 是 rclone 风格的远端路径，例如 "moltbot-backup:state"
	Remote string `mapstructure:"remote" yaml:"remote"`

	// MountPoint is where the remote is mounted inside the sandbox
	// MountPoint 是远端在沙箱内的挂载位置
	MountPoint string `mapstructure:"mount_point" yaml:"mount_point"`
}

// SandboxConfig contains local sandbox settings
// SandboxConfig 包含本地沙箱设置
type SandboxConfig struct {
	// WorkDir is the working directory for started processes
	// WorkDir 是启动进程的工作目录
	WorkDir string `mapstructure:"work_dir" yaml:"work_dir"`

	// LogDir is where per-process output capture files live
	// LogDir 是每个进程的输出捕获文件所在目录
	LogDir string `mapstructure:"log_dir" yaml:"log_dir"`
}

// LogConfig contains logging settings
// LogConfig 包含日志设置
type LogConfig struct {
	// Level is the log level (debug, info, warn, error)
	// Level 是日志级别（debug, info, warn, error）
	Level string `mapstructure:"level" yaml:"level"`

	// File is the log file path; empty means console only
	// File 是日志文件路径；为空表示仅控制台
	File string `mapstructure:"file" yaml:"file"`

	// MaxSize is the maximum size of log file in MB before rotation
	// MaxSize 是日志文件轮转前的最大大小（MB）
	MaxSize int `mapstructure:"max_size" yaml:"max_size"`

	// MaxBackups is the maximum number of old log files to retain
	// MaxBackups 是保留的旧日志文件的最大数量
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`

	// MaxAge is the maximum number of days to retain old log files
	// MaxAge 是保留旧日志文件的最大天数
	MaxAge int `mapstructure:"max_age" yaml:"max_age"`
}

// Load loads configuration from file and environment variables
// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values / 设置默认值
	setDefaults(v)

	// Set config file path / 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Check environment variable / 检查环境变量
		envPath := os.Getenv("KEEPER_CONFIG_PATH")
		if envPath != "" {
			v.SetConfigFile(envPath)
		} else {
			v.SetConfigFile(DefaultConfigPath)
		}
	}

	// Enable environment variable override / 启用环境变量覆盖
	v.SetEnvPrefix("KEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file / 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error if we have defaults
		// 如果有默认值，配置文件未找到不是错误
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			// Check if file exists / 检查文件是否存在
			if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// File doesn't exist, use defaults / 文件不存在，使用默认值
		}
	}

	// Unmarshal config / 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadFromYAML loads configuration from YAML bytes
// LoadFromYAML 从 YAML 字节加载配置
func LoadFromYAML(yamlData []byte) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults first / 首先设置默认值
	setDefaults(v)

	// Read from bytes / 从字节读取
	if err := v.ReadConfig(strings.NewReader(string(yamlData))); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Unmarshal config / 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	rules := discovery.DefaultClassifierRules()

	// Keeper defaults / Keeper 默认值
	v.SetDefault("keeper.ensure_interval", DefaultEnsureInterval)
	v.SetDefault("keeper.fail_threshold", DefaultFailThreshold)

	// Gateway defaults / 网关默认值
	v.SetDefault("gateway.port", DefaultGatewayPort)
	v.SetDefault("gateway.launch_command", DefaultLaunchCommand)
	v.SetDefault("gateway.gateway_commands", rules.GatewayCommands)
	v.SetDefault("gateway.cli_commands", rules.CLICommands)
	v.SetDefault("gateway.state_dir", "/var/lib/moltbot")

	// Storage defaults / 存储默认值
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.remote", "")
	v.SetDefault("storage.mount_point", DefaultMountPoint)

	// Sandbox defaults / 沙箱默认值
	v.SetDefault("sandbox.work_dir", DefaultSandboxWorkDir)
	v.SetDefault("sandbox.log_dir", DefaultSandboxLogDir)

	// Log defaults / 日志默认值
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.file", DefaultLogFile)
	v.SetDefault("log.max_size", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackups)
	v.SetDefault("log.max_age", DefaultLogMaxAge)
}

// Validate validates the configuration
// Validate 验证配置
func (c *Config) Validate() error {
	// Validate gateway port / 验证网关端口
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be in (0, 65535], got %d", c.Gateway.Port)
	}

	// Validate launch command / 验证启动命令
	if strings.TrimSpace(c.Gateway.LaunchCommand) == "" {
		return errors.New("gateway.launch_command is required")
	}

	// Validate classifier rules / 验证分类规则
	if err := c.ClassifierRules().Validate(); err != nil {
		return err
	}

	// Validate keep-alive settings / 验证保活设置
	if c.Keeper.EnsureInterval < time.Second {
		return errors.New("keeper.ensure_interval must be at least 1 second")
	}
	if c.Keeper.FailThreshold < 1 {
		return errors.New("keeper.fail_threshold must be at least 1")
	}

	// Validate storage settings / 验证存储设置
	if c.Storage.Enabled && strings.TrimSpace(c.Storage.Remote) == "" {
		return errors.New("storage.remote is required when storage is enabled")
	}

	// Validate log level / 验证日志级别
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	return nil
}

// ClassifierRules builds the discovery rule table from configuration
// ClassifierRules 从配置构建 discovery 规则表
func (c *Config) ClassifierRules() discovery.ClassifierRules {
	return discovery.ClassifierRules{
		GatewayCommands: c.Gateway.GatewayCommands,
		CLICommands:     c.Gateway.CLICommands,
	}
}

// String returns a string representation of the config (for debugging)
// String 返回配置的字符串表示（用于调试）
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Gateway.Port: %d, Gateway.LaunchCommand: %q, Storage.Enabled: %v, Keeper.EnsureInterval: %v, Log.Level: %s}",
		c.Gateway.Port,
		c.Gateway.LaunchCommand,
		c.Storage.Enabled,
		c.Keeper.EnsureInterval,
		c.Log.Level,
	)
}

// ToYAML serializes the configuration to YAML format
// ToYAML 将配置序列化为 YAML 格式
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Equal compares two configs for equality
// Equal 比较两个配置是否相等
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}

	// Compare Keeper / 比较 Keeper
	if c.Keeper != other.Keeper {
		return false
	}

	// Compare Gateway / 比较 Gateway
	if c.Gateway.Port != other.Gateway.Port ||
		c.Gateway.LaunchCommand != other.Gateway.LaunchCommand ||
		c.Gateway.StateDir != other.Gateway.StateDir {
		return false
	}
	if !equalStrings(c.Gateway.GatewayCommands, other.Gateway.GatewayCommands) ||
		!equalStrings(c.Gateway.CLICommands, other.Gateway.CLICommands) {
		return false
	}
	if len(c.Gateway.ExtraEnv) != len(other.Gateway.ExtraEnv) {
		return false
	}
	for k, v := range c.Gateway.ExtraEnv {
		if other.Gateway.ExtraEnv[k] != v {
			return false
		}
	}

	// Compare Storage / 比较 Storage
	if c.Storage != other.Storage {
		return false
	}

	// Compare Sandbox / 比较 Sandbox
	if c.Sandbox != other.Sandbox {
		return false
	}

	// Compare Log / 比较 Log
	if c.Log != other.Log {
		return false
	}

	return true
}

// equalStrings compares two string slices element-wise
// equalStrings 逐元素比较两个字符串切片
func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
