package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewConfigDerivesPaths(t *testing.T) {
	cfg := newConfig("/var/lib/virshle", "/etc/virshle/config.toml")

	if cfg.SocketPath != "/var/lib/virshle/virshle.sock" {
		t.Errorf("socket path = %q", cfg.SocketPath)
	}
	if cfg.DBPath != "/var/lib/virshle/virshle.sqlite" {
		t.Errorf("db path = %q", cfg.DBPath)
	}
	if cfg.VmDir != "/var/lib/virshle/vm" {
		t.Errorf("vm dir = %q", cfg.VmDir)
	}
	if cfg.VmRoot("abc-123") != "/var/lib/virshle/vm/abc-123" {
		t.Errorf("vm root = %q", cfg.VmRoot("abc-123"))
	}
}

func TestEnsureDirsCreatesTree(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "managed")
	cfg := newConfig(root, filepath.Join(dir, "etc", "config.toml"))

	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}

	for _, p := range []string{cfg.ManagedRoot, cfg.VmDir, filepath.Dir(cfg.ConfigPath)} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", p)
		}
	}
}

func TestFindBinaryFallsBackToBinDir(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "made-up-binary-name")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}

	got := FindBinary("made-up-binary-name", dir)
	if got == "" {
		t.Fatal("expected FindBinary to locate the binary via binDir")
	}
}

func TestFindBinaryNotFound(t *testing.T) {
	got := FindBinary("definitely-not-a-real-binary-xyz", t.TempDir())
	if got != "" {
		t.Errorf("got = %q, want empty for unresolvable binary", got)
	}
}
