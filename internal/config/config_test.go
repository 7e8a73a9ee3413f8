// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `{
  "receivers": [
    {"name": "clb-a", "kind": "clb", "address": "0.0.0.0:56015"}
  ],
  "scheduler": {
    "variant": "periodic",
    "spillDuration": 1000000000,
    "scheduleDepth": 4
  },
  "runFileDir": "./var/runs",
  "logLevel": "debug"
}`

func TestInit(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(fp, []byte(testConfig), 0o644))

	Init(fp)
	assert.Equal(t, "periodic", Keys.Scheduler.Variant)
	assert.Equal(t, "clb-a", Keys.Receivers[0].Name)
	assert.Equal(t, "debug", Keys.LogLevel)
	assert.Equal(t, 4*time.Second, Keys.Scheduler.MaturationWindow, "unset maturation window should fall back to the default")
}

func TestInitMissingFileIsNotFatal(t *testing.T) {
	Init(filepath.Join(t.TempDir(), "does-not-exist.json"))
}
