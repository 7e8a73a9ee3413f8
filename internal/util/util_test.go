// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package util_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/chipsneutrino/daqonite/internal/util"
)

func TestCheckFileExists(t *testing.T) {
	tmpdir := t.TempDir()
	if !util.CheckFileExists(tmpdir) {
		t.Fatal("expected true, got false")
	}

	filePath := filepath.Join(tmpdir, "run-000001.db")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !util.CheckFileExists(filePath) {
		t.Fatal("expected true, got false")
	}

	filePath = filepath.Join(tmpdir, "run-000002.db")
	if util.CheckFileExists(filePath) {
		t.Fatal("expected false, got true")
	}
}

func TestGetFileSize(t *testing.T) {
	tmpdir := t.TempDir()
	filePath := filepath.Join(tmpdir, "run-000001.db")

	if s := util.GetFilesize(filePath); s > 0 {
		t.Fatalf("expected 0, got %d", s)
	}

	if err := os.WriteFile(filePath, []byte(fmt.Sprintf("%d", 1)), 0o644); err != nil {
		t.Fatal(err)
	}
	if s := util.GetFilesize(filePath); s == 0 {
		t.Fatal("expected not 0, got 0")
	}
}

func TestGetFileCount(t *testing.T) {
	tmpdir := t.TempDir()

	if c := util.GetFilecount(tmpdir); c != 0 {
		t.Fatalf("expected 0, got %d", c)
	}

	for _, name := range []string{"run-000001.db", "run-000002.db"} {
		if err := os.WriteFile(filepath.Join(tmpdir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if c := util.GetFilecount(tmpdir); c != 2 {
		t.Fatalf("expected 2, got %d", c)
	}
}

func TestMinMax(t *testing.T) {
	if got := util.Min(3, 1); got != 1 {
		t.Fatalf("Min(3, 1) = %d, want 1", got)
	}
	if got := util.Max(3, 1); got != 3 {
		t.Fatalf("Max(3, 1) = %d, want 3", got)
	}
}

func TestMedian(t *testing.T) {
	odd, err := util.Median([]float64{3, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if odd != 2 {
		t.Fatalf("Median([3 1 2]) = %v, want 2", odd)
	}

	even, err := util.Median([]float64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if even != 2.5 {
		t.Fatalf("Median([1 2 3 4]) = %v, want 2.5", even)
	}

	if _, err := util.Median(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}
