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

	"pgregory.net/rapid"
)

// **Feature: gateway-process-discovery, Property 1: CLI 命令绝不被分类为网关**
// Any command containing a CLI exclude-substring must never classify as the
// gateway, no matter what arguments surround it.
// 任何包含 CLI 排除子串的命令都绝不能被分类为网关，无论其周围有什么参数。
func TestProperty_CLICommandsNeverClassifyAsGateway(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rules := DefaultClassifierRules()

		// Generate random argument tails / 生成随机参数尾部
		tail := rapid.StringMatching(`[a-z0-9 \-]{0,40}`).Draw(t, "tail")
		cli := rapid.SampledFrom(rules.CLICommands).Draw(t, "cli")

		command := cli + " " + tail
		if rules.IsGatewayCommand(command) {
			t.Errorf("CLI command classified as gateway: %q", command)
		}

		// Even when a gateway substring is also present, the exclusion wins
		// 即使同时出现网关子串，排除也胜出
		mixed := GatewaySubcommand + " && " + cli
		if rules.IsGatewayCommand(mixed) {
			t.Errorf("Mixed command classified as gateway: %q", mixed)
		}
	})
}

// **Feature: gateway-process-discovery, Property 2: 规则表 YAML 往返**
// Any valid rule table survives a YAML serialize-parse round trip with
// classification behavior intact.
// 任何有效的规则表经 YAML 序列化-解析往返后分类行为保持不变。
func TestProperty_RulesYAMLRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		gateway := rapid.SliceOfN(
			rapid.StringMatching(`[a-z][a-z0-9\-]{2,20}`), 1, 4).Draw(t, "gateway")
		cli := rapid.SliceOfN(
			rapid.StringMatching(`[a-z][a-z0-9\-]{2,20}`), 0, 4).Draw(t, "cli")

		rules := ClassifierRules{GatewayCommands: gateway, CLICommands: cli}
		if rules.Validate() != nil {
			t.Skip("generated rules invalid")
		}

		data, err := rules.ToYAML()
		if err != nil {
			t.Fatalf("ToYAML failed: %v", err)
		}

		parsed, err := ParseClassifierRules(data)
		if err != nil {
			t.Fatalf("ParseClassifierRules failed: %v", err)
		}

		// Classification must agree on sample commands / 分类在样例命令上必须一致
		sample := rapid.StringMatching(`[a-z0-9 \-]{0,40}`).Draw(t, "sample")
		for _, cmd := range append(append([]string{sample}, gateway...), cli...) {
			if rules.IsGatewayCommand(cmd) != parsed.IsGatewayCommand(cmd) {
				t.Errorf("Classification diverged after round trip for %q", cmd)
			}
		}
	})
}
