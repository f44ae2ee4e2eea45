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

package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/moltbot/moltbotX/keeper/internal/config"
	"github.com/moltbot/moltbotX/keeper/internal/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSandbox records StartProcess invocations
// captureSandbox 记录 StartProcess 调用
type captureSandbox struct {
	commands []string
	startErr error
}

func (s *captureSandbox) ListProcesses(ctx context.Context) ([]sandbox.ProcessHandle, error) {
	return nil, nil
}

func (s *captureSandbox) StartProcess(ctx context.Context, command string, opts sandbox.StartOptions) (sandbox.ProcessHandle, error) {
	s.commands = append(s.commands, command)
	if s.startErr != nil {
		return nil, s.startErr
	}
	return nil, nil
}

// TestMounter_Mount_Disabled tests that disabled storage is a no-op
// TestMounter_Mount_Disabled 测试关闭存储时为空操作
func TestMounter_Mount_Disabled(t *testing.T) {
	sb := &captureSandbox{}
	cfg := &config.Config{Storage: config.StorageConfig{Enabled: false}}

	err := NewMounter().Mount(context.Background(), sb, cfg)
	require.NoError(t, err)
	assert.Empty(t, sb.commands)
}

// TestMounter_Mount tests the mount command construction
// TestMounter_Mount 测试挂载命令构建
func TestMounter_Mount(t *testing.T) {
	sb := &captureSandbox{}
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Enabled:    true,
			Remote:     "moltbot-backup:state",
			MountPoint: "/mnt/moltbot-backup",
		},
	}

	err := NewMounter().Mount(context.Background(), sb, cfg)
	require.NoError(t, err)

	require.Len(t, sb.commands, 1)
	assert.Contains(t, sb.commands[0], "rclone mount")
	assert.Contains(t, sb.commands[0], "moltbot-backup:state")
	assert.Contains(t, sb.commands[0], "/mnt/moltbot-backup")
	assert.Contains(t, sb.commands[0], "mkdir -p /mnt/moltbot-backup")
}

// TestMounter_Mount_Failure tests that a start failure propagates to the
// caller, which treats it as log-only
// TestMounter_Mount_Failure 测试启动失败向调用方传播，由调用方视为仅记录日志
func TestMounter_Mount_Failure(t *testing.T) {
	sb := &captureSandbox{startErr: errors.New("rclone not installed")}
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Enabled:    true,
			Remote:     "moltbot-backup:state",
			MountPoint: "/mnt/moltbot-backup",
		},
	}

	err := NewMounter().Mount(context.Background(), sb, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moltbot-backup:state")
}
