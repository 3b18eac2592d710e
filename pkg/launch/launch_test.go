// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package launch_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/bootpack/pkg/launch"
	"github.com/walteh/bootpack/pkg/testutils"
)

func TestDefault(t *testing.T) {
	ctx := testutils.Context(t)

	s, err := launch.Default(ctx, map[string]string{"initInfoProvides": "orders", "mode": "service"})
	require.NoError(t, err)

	content := string(s.Bytes())
	assert.True(t, strings.HasPrefix(content, "#!/bin/bash\n"))
	assert.Contains(t, content, "# Provides:          orders")
	assert.Contains(t, content, `mode="${MODE:-service}"`)
	assert.Contains(t, content, `pid_folder="${PID_FOLDER:-/var/run}"`, "defaults fill unset properties")
	assert.NotContains(t, content, "{{")
}

func TestFromFile(t *testing.T) {
	ctx := testutils.Context(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n# {{name:app}} {{other}}\nexec java -jar \"$0\"\n"), 0o644))

	s, err := launch.New(ctx, path, map[string]string{"name": "svc"})
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n# svc {{other}}\nexec java -jar \"$0\"\n", string(s.Bytes()))

	_, err = launch.FromFile(ctx, filepath.Join(dir, "missing.sh"), nil)
	require.Error(t, err)

	_, err = launch.New(ctx, path, map[string]string{"bad name": "x"})
	require.Error(t, err)
}
