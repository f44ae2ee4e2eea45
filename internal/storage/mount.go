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

// Package storage mounts the remote backup storage inside the sandbox before
// gateway startup. The mount is best-effort: the gateway's start script
// restores from backup itself, so a failed mount never blocks startup.
// storage 包在网关启动前在沙箱内挂载远程备份存储。挂载是尽力而为的：
// 网关的启动脚本自己从备份恢复，所以挂载失败绝不阻塞启动。
package storage

import (
	"context"
	"fmt"

	"github.com/moltbot/moltbotX/keeper/internal/config"
	"github.com/moltbot/moltbotX/keeper/internal/sandbox"
)

// Mounter performs the remote storage mount as a sandbox command
// Mounter 以沙箱命令的形式执行远程存储挂载
type Mounter struct{}

// NewMounter creates a new Mounter instance
// NewMounter 创建一个新的 Mounter 实例
func NewMounter() *Mounter {
	return &Mounter{}
}

// Mount starts the mount command inside the sandbox. Disabled storage is a
// no-op. Callers treat any returned error as log-only.
// Mount 在沙箱内启动挂载命令。未启用存储时为空操作。调用方将任何返回的错误视为仅记录日志。
func (m *Mounter) Mount(ctx context.Context, sb sandbox.Sandbox, cfg *config.Config) error {
	if !cfg.Storage.Enabled {
		return nil
	}

	command := buildMountCommand(cfg.Storage)
	fmt.Printf("[Mounter] Mounting backup storage: %s / 挂载备份存储：%s\n", command, command)

	if _, err := sb.StartProcess(ctx, command, sandbox.StartOptions{}); err != nil {
		return fmt.Errorf("failed to mount backup storage %q: %w", cfg.Storage.Remote, err)
	}
	return nil
}

// buildMountCommand builds the rclone mount invocation
// buildMountCommand 构建 rclone 挂载调用
func buildMountCommand(cfg config.StorageConfig) string {
	// --daemon: rclone backgrounds itself once the mount is live
	// --daemon：挂载就绪后 rclone 自行转入后台
	return fmt.Sprintf("mkdir -p %s && rclone mount %s %s --daemon --read-only",
		cfg.MountPoint, cfg.Remote, cfg.MountPoint)
}
