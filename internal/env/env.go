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

// Package env builds the environment variable mapping passed to a freshly
// launched gateway process. Pure assembly, no I/O.
// env 包构建传递给新启动网关进程的环境变量映射。纯组装，无 I/O。
package env

import (
	"strconv"

	"github.com/moltbot/moltbotX/keeper/internal/config"
)

// Environment variable names exported to the gateway process
// 导出给网关进程的环境变量名
const (
	GatewayPortVar = "CLAWDBOT_GATEWAY_PORT"
	StateDirVar    = "MOLTBOT_STATE_DIR"
	BackupDirVar   = "MOLTBOT_BACKUP_DIR"
)

// Builder assembles gateway environment mappings
// Builder 组装网关环境映射
type Builder struct{}

// NewBuilder creates a new Builder instance
// NewBuilder 创建一个新的 Builder 实例
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildEnvVars returns the mapping for a fresh gateway launch. Config-supplied
// extras are applied last so operators can override anything.
// BuildEnvVars 返回新网关启动的映射。配置提供的额外变量最后应用，因此运维可以覆盖任何值。
func (b *Builder) BuildEnvVars(cfg *config.Config) map[string]string {
	vars := make(map[string]string)

	if cfg.Gateway.Port > 0 {
		vars[GatewayPortVar] = strconv.Itoa(cfg.Gateway.Port)
	}
	if cfg.Gateway.StateDir != "" {
		vars[StateDirVar] = cfg.Gateway.StateDir
	}

	// Only advertise the backup dir when storage mounting is on; the start
	// script uses it to restore state.
	// 仅在启用存储挂载时导出备份目录；启动脚本用它来恢复状态。
	if cfg.Storage.Enabled && cfg.Storage.MountPoint != "" {
		vars[BackupDirVar] = cfg.Storage.MountPoint
	}

	for k, v := range cfg.Gateway.ExtraEnv {
		vars[k] = v
	}

	return vars
}
