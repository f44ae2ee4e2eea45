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

// Package discovery provides gateway process discovery for the Keeper.
// discovery 包提供 Keeper 的网关进程发现功能。
//
// Flow (发现流程):
// 1. Keeper asks the sandbox for all known processes
// 2. Each command string is classified against a data-driven rule table
// 3. The first live process classified as the gateway wins
// 1. Keeper 向沙箱查询所有已知进程
// 2. 每个命令字符串根据数据驱动的规则表进行分类
// 3. 第一个被分类为网关且存活的进程胜出
package discovery

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Canonical command substrings. The CLI binary is still named "clawdbot"
// while the product is Moltbot; the rename is pending upstream, which is why
// these are defaults feeding a configurable rule table rather than the only
// source of truth.
// 规范命令子串。CLI 二进制仍叫 "clawdbot" 而产品叫 Moltbot；上游改名尚未完成，
// 因此这些只是可配置规则表的默认值，而不是唯一的真实来源。
const (
	// DefaultStartScript is the canonical gateway startup script path
	// DefaultStartScript 是规范的网关启动脚本路径
	DefaultStartScript = "/opt/moltbot/scripts/start-gateway.sh"

	// GatewaySubcommand is the CLI invocation that launches the gateway
	// GatewaySubcommand 是启动网关的 CLI 调用
	GatewaySubcommand = "clawdbot gateway"

	// DevicesSubcommand is the device-listing CLI invocation (not a gateway)
	// DevicesSubcommand 是列出设备的 CLI 调用（不是网关）
	DevicesSubcommand = "clawdbot devices"

	// VersionQuery is the version-query CLI invocation (not a gateway)
	// VersionQuery 是查询版本的 CLI 调用（不是网关）
	VersionQuery = "clawdbot --version"
)

// ClassifierRules is the data-driven command classification table:
// a command is a gateway command if it contains any gateway substring
// and none of the CLI substrings.
// ClassifierRules 是数据驱动的命令分类表：
// 命令包含任一网关子串且不包含任何 CLI 子串时才是网关命令。
type ClassifierRules struct {
	// GatewayCommands are include-substrings identifying a gateway process
	// GatewayCommands 是识别网关进程的包含子串
	GatewayCommands []string `yaml:"gateway_commands" mapstructure:"gateway_commands"`

	// CLICommands are exclude-substrings identifying short-lived CLI commands
	// that share a program name prefix with the gateway invocation
	// CLICommands 是排除子串，识别与网关调用共享程序名前缀的短命 CLI 命令
	CLICommands []string `yaml:"cli_commands" mapstructure:"cli_commands"`
}

// DefaultClassifierRules returns the default classification table
// DefaultClassifierRules 返回默认的分类表
func DefaultClassifierRules() ClassifierRules {
	return ClassifierRules{
		GatewayCommands: []string{DefaultStartScript, GatewaySubcommand},
		CLICommands:     []string{DevicesSubcommand, VersionQuery},
	}
}

// Validate validates the rule table
// Validate 验证规则表
func (r ClassifierRules) Validate() error {
	if len(r.GatewayCommands) == 0 {
		return errors.New("classifier rules need at least one gateway command substring")
	}
	for _, s := range append(append([]string{}, r.GatewayCommands...), r.CLICommands...) {
		if strings.TrimSpace(s) == "" {
			return errors.New("classifier rules must not contain empty substrings")
		}
	}
	return nil
}

// IsGatewayCommand classifies a command string
// IsGatewayCommand 对命令字符串进行分类
func (r ClassifierRules) IsGatewayCommand(command string) bool {
	return r.matchesGateway(command) && !r.matchesCLI(command)
}

// matchesGateway checks the include-substrings
// matchesGateway 检查包含子串
func (r ClassifierRules) matchesGateway(command string) bool {
	for _, s := range r.GatewayCommands {
		if strings.Contains(command, s) {
			return true
		}
	}
	return false
}

// matchesCLI checks the exclude-substrings
// matchesCLI 检查排除子串
func (r ClassifierRules) matchesCLI(command string) bool {
	for _, s := range r.CLICommands {
		if strings.Contains(command, s) {
			return true
		}
	}
	return false
}

// ToYAML serializes the rule table
// ToYAML 序列化规则表
func (r ClassifierRules) ToYAML() ([]byte, error) {
	return yaml.Marshal(r)
}

// LoadClassifierRules loads a rule table from a YAML file
// LoadClassifierRules 从 YAML 文件加载规则表
func LoadClassifierRules(path string) (ClassifierRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClassifierRules{}, fmt.Errorf("failed to read classifier rules: %w", err)
	}
	return ParseClassifierRules(data)
}

// ParseClassifierRules parses a rule table from YAML bytes
// ParseClassifierRules 从 YAML 字节解析规则表
func ParseClassifierRules(data []byte) (ClassifierRules, error) {
	var rules ClassifierRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return ClassifierRules{}, fmt.Errorf("failed to parse classifier rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return ClassifierRules{}, err
	}
	return rules, nil
}
