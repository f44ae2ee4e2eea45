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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultClassifierRules tests the default rule table
// TestDefaultClassifierRules 测试默认规则表
func TestDefaultClassifierRules(t *testing.T) {
	rules := DefaultClassifierRules()
	require.NoError(t, rules.Validate())

	assert.Contains(t, rules.GatewayCommands, DefaultStartScript)
	assert.Contains(t, rules.GatewayCommands, GatewaySubcommand)
	assert.Contains(t, rules.CLICommands, DevicesSubcommand)
	assert.Contains(t, rules.CLICommands, VersionQuery)
}

// TestClassifierRules_IsGatewayCommand tests command classification
// TestClassifierRules_IsGatewayCommand 测试命令分类
func TestClassifierRules_IsGatewayCommand(t *testing.T) {
	rules := DefaultClassifierRules()

	testCases := []struct {
		name    string
		command string
		want    bool
	}{
		{
			name:    "start script invocation / 启动脚本调用",
			command: "bash /opt/moltbot/scripts/start-gateway.sh",
			want:    true,
		},
		{
			name:    "direct gateway subcommand / 直接网关子命令",
			command: "clawdbot gateway --port 18789",
			want:    true,
		},
		{
			name:    "devices listing is a CLI command / devices 列表是 CLI 命令",
			command: "clawdbot devices list",
			want:    false,
		},
		{
			name:    "version query is a CLI command / 版本查询是 CLI 命令",
			command: "clawdbot --version",
			want:    false,
		},
		{
			name:    "unrelated process / 无关进程",
			command: "/usr/bin/sshd -D",
			want:    false,
		},
		{
			name:    "empty command / 空命令",
			command: "",
			want:    false,
		},
		{
			name:    "gateway substring inside wrapper / 包装器中的网关子串",
			command: "sh -c 'exec clawdbot gateway'",
			want:    true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, rules.IsGatewayCommand(tc.command))
		})
	}
}

// TestClassifierRules_Validate tests rule table validation
// TestClassifierRules_Validate 测试规则表验证
func TestClassifierRules_Validate(t *testing.T) {
	// Missing gateway substrings / 缺少网关子串
	err := ClassifierRules{}.Validate()
	require.Error(t, err)

	// Blank substring / 空白子串
	err = ClassifierRules{
		GatewayCommands: []string{"clawdbot gateway", "  "},
	}.Validate()
	require.Error(t, err)

	// Valid with no exclusions / 没有排除项也有效
	err = ClassifierRules{
		GatewayCommands: []string{"clawdbot gateway"},
	}.Validate()
	require.NoError(t, err)
}

// TestParseClassifierRules tests loading rules from YAML
// TestParseClassifierRules 测试从 YAML 加载规则
func TestParseClassifierRules(t *testing.T) {
	yamlData := []byte(`
gateway_commands:
  - "moltbot gateway"
cli_commands:
  - "moltbot devices"
`)

	rules, err := ParseClassifierRules(yamlData)
	require.NoError(t, err)

	assert.True(t, rules.IsGatewayCommand("moltbot gateway --port 18789"))
	assert.False(t, rules.IsGatewayCommand("moltbot devices list"))
	assert.False(t, rules.IsGatewayCommand("clawdbot gateway"))
}

// TestParseClassifierRules_Invalid tests parse failures
// TestParseClassifierRules_Invalid 测试解析失败
func TestParseClassifierRules_Invalid(t *testing.T) {
	// Malformed YAML / 格式错误的 YAML
	_, err := ParseClassifierRules([]byte("gateway_commands: [unclosed"))
	require.Error(t, err)

	// Valid YAML but invalid rules / YAML 有效但规则无效
	_, err = ParseClassifierRules([]byte("cli_commands: [\"clawdbot devices\"]"))
	require.Error(t, err)
}
