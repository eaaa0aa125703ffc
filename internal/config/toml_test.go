package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadVirshleConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[[node]]
name = "local"
url = "unix:///var/lib/virshle/virshle.sock"

[[node]]
name = "remote-1"
url = "tcp://10.0.0.2:9120"

[[template.vm]]
name = "web"
vcpu = 2
vram = 1024

[[template.vm.disk]]
name = "root"
path = "/var/lib/virshle/templates/web.img"

[[template.vm.net]]
name = "eth0"
kind = "tap"

[dhcp.fake]
[dhcp.fake.pool.eth0]
subnet = "10.10.0.0/24"
range = "10.10.0.10-10.10.0.200"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadVirshleConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if len(cfg.Node) != 2 || cfg.Node[1].Name != "remote-1" {
		t.Errorf("nodes = %+v", cfg.Node)
	}
	if cfg.Template == nil || len(cfg.Template.Vm) != 1 {
		t.Fatalf("template.vm = %+v", cfg.Template)
	}
	tmpl := cfg.Template.Vm[0]
	if tmpl.Vcpu != 2 || tmpl.Vram != 1024 || len(tmpl.Disk) != 1 || len(tmpl.Net) != 1 {
		t.Errorf("template = %+v", tmpl)
	}
	if !cfg.Dhcp.IsFake() || cfg.Dhcp.IsKea() {
		t.Errorf("dhcp = %+v, want fake variant selected", cfg.Dhcp)
	}
	pool, ok := cfg.Dhcp.Fake.Pool["eth0"]
	if !ok || pool.Subnet != "10.10.0.0/24" {
		t.Errorf("fake pool = %+v", cfg.Dhcp.Fake.Pool)
	}
}

func TestLoadVirshleConfigMissing(t *testing.T) {
	_, err := LoadVirshleConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestVirshleConfigSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultVirshleConfig("/var/lib/virshle/virshle.sock")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save config: %v", err)
	}

	got, err := LoadVirshleConfig(path)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if len(got.Node) != 1 || got.Node[0].Url != "unix:///var/lib/virshle/virshle.sock" {
		t.Errorf("node = %+v", got.Node)
	}
}

func TestGetTemplate(t *testing.T) {
	cfg := &VirshleConfig{
		Template: &Template{Vm: []VmTemplate{
			{Name: "web", Vcpu: 2, Vram: 1024},
			{Name: "db", Vcpu: 4, Vram: 4096},
		}},
	}

	got, err := cfg.GetTemplate("db")
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if got.Vcpu != 4 {
		t.Errorf("vcpu = %d, want 4", got.Vcpu)
	}
}

func TestGetTemplateUnknown(t *testing.T) {
	cfg := &VirshleConfig{Template: &Template{Vm: []VmTemplate{{Name: "web"}}}}

	if _, err := cfg.GetTemplate("missing"); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestGetTemplateNoneConfigured(t *testing.T) {
	cfg := &VirshleConfig{}

	if _, err := cfg.GetTemplate("anything"); err == nil {
		t.Fatal("expected error when no templates are configured")
	}
}

func TestDhcpVariantPredicates(t *testing.T) {
	var nilDhcp *Dhcp
	if nilDhcp.IsFake() || nilDhcp.IsKea() {
		t.Error("nil Dhcp should report neither variant selected")
	}

	kea := &Dhcp{Kea: &KeaDhcp{Url: "http://127.0.0.1:8000"}}
	if kea.IsFake() || !kea.IsKea() {
		t.Errorf("kea dhcp predicates wrong: fake=%v kea=%v", kea.IsFake(), kea.IsKea())
	}
}
