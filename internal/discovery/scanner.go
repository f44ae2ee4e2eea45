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
	"fmt"

	"github.com/moltbot/moltbotX/keeper/internal/sandbox"
)

// Scanner locates the gateway process among the sandbox's processes
// Scanner 在沙箱的进程中定位网关进程
type Scanner struct {
	rules ClassifierRules
}

// NewScanner creates a new Scanner instance
// NewScanner 创建一个新的 Scanner 实例
func NewScanner(rules ClassifierRules) *Scanner {
	return &Scanner{rules: rules}
}

// Rules returns the classification table in use
// Rules 返回使用中的分类表
func (s *Scanner) Rules() ClassifierRules {
	return s.rules
}

// FindGatewayProcess returns the first live process classified as the
// gateway, or nil when none qualifies. A listing failure must never abort
// the caller: it is logged and degrades to "assume no existing process".
// FindGatewayProcess 返回第一个被分类为网关且存活的进程，没有则返回 nil。
// 列举失败绝不能中止调用方：记录日志并降级为"假定没有已存在的进程"。
func (s *Scanner) FindGatewayProcess(ctx context.Context, sb sandbox.Sandbox) sandbox.ProcessHandle {
	procs, err := sb.ListProcesses(ctx)
	if err != nil {
		fmt.Printf("[Scanner] Failed to list sandbox processes, assuming none: %v / 列举沙箱进程失败，假定没有进程：%v\n", err, err)
		return nil
	}

	// First qualifying process wins; listing order is preserved as-is
	// 第一个符合条件的进程胜出；保持列举顺序不变
	for _, proc := range procs {
		if !s.rules.IsGatewayCommand(proc.Command()) {
			continue
		}
		if !proc.Status().IsAlive() {
			continue
		}
		fmt.Printf("[Scanner] Found gateway process %s (status: %s) / 发现网关进程 %s（状态：%s）\n",
			proc.ID(), proc.Status(), proc.ID(), proc.Status())
		return proc
	}

	return nil
}
