package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/virshle/virshle/internal/virrors"
)

// Node is a federation peer: a name plus the URI virshle dials to reach its
// daemon (spec.md §6 "[[node]] name, url"). The default node always points
// at this node's own socket.
type Node struct {
	Name string `toml:"name"`
	Url  string `toml:"url"`
}

// Disk is one disk a VmTemplate attaches, copied into {managed_root}/vm/{uuid}/disk/
// on create. Exactly one of Path/ImageRef is set: Path copies an existing
// disk image verbatim, ImageRef resolves an OCI image reference through the
// image cache into a disk built from that image's rootfs (SPEC_FULL.md §10
// "OCI-sourced disk templates").
type Disk struct {
	Name     string `toml:"name"`
	Path     string `toml:"path,omitempty"`
	Size     string `toml:"size,omitempty"`
	ImageRef string `toml:"image_ref,omitempty"`
}

// NetAttachment is one network attachment a VmTemplate requests. Kind is a
// lowercase string ("tap"/"macvtap"/"vhost") resolved to network.Kind at
// use, keeping the TOML schema decoupled from the internal/network types.
type NetAttachment struct {
	Name string `toml:"name"`
	Kind string `toml:"kind,omitempty"`
}

// VmTemplate is a named, reusable VM shape (spec.md §6
// "[[template.vm]] name, vcpu, vram, [[disk]], [[net]]").
type VmTemplate struct {
	Name string          `toml:"name"`
	Vcpu int             `toml:"vcpu"`
	Vram int             `toml:"vram"`
	Disk []Disk          `toml:"disk,omitempty"`
	Net  []NetAttachment `toml:"net,omitempty"`
}

// Template groups every configured VmTemplate.
type Template struct {
	Vm []VmTemplate `toml:"vm,omitempty"`
}

// FakeDhcpPool is one subnet's allocation range for the in-process
// Fake-DHCP allocator, keyed by network attachment name.
type FakeDhcpPool struct {
	Subnet string `toml:"subnet"`
	Range  string `toml:"range"`
}

// FakeDhcp is the Fake variant of the [dhcp] tagged union.
type FakeDhcp struct {
	Pool map[string]FakeDhcpPool `toml:"pool"`
}

// KeaDhcp is the Kea variant of the [dhcp] tagged union: a Kea control-agent
// base URL.
type KeaDhcp struct {
	Url string `toml:"url"`
}

// Dhcp is the [dhcp] tagged union from spec.md §6: exactly one of Fake/Kea
// is populated. go-toml/v2 has no native tagged-enum support, so this
// mirrors the original's `Fake { ... } | Kea { ... }` by giving each
// variant its own optional TOML table, same approach the original's serde
// "untagged"-equivalent takes.
type Dhcp struct {
	Fake *FakeDhcp `toml:"fake,omitempty"`
	Kea  *KeaDhcp  `toml:"kea,omitempty"`
}

// IsFake reports whether the Fake variant is selected.
func (d *Dhcp) IsFake() bool { return d != nil && d.Fake != nil }

// IsKea reports whether the Kea variant is selected.
func (d *Dhcp) IsKea() bool { return d != nil && d.Kea != nil }

// VirshleConfig is the full user-authored TOML configuration
// (/etc/virshle/config.toml by default).
type VirshleConfig struct {
	Node     []Node    `toml:"node,omitempty"`
	Template *Template `toml:"template,omitempty"`
	Dhcp     *Dhcp     `toml:"dhcp,omitempty"`
}

// DefaultVirshleConfig returns the configuration synthesised when
// config.toml is missing during `virshle init` (Open Question (b): fatal
// everywhere else, see SPEC_FULL.md §12).
func DefaultVirshleConfig(localSocketPath string) *VirshleConfig {
	return &VirshleConfig{
		Node: []Node{{Name: "local", Url: "unix://" + localSocketPath}},
	}
}

// LoadVirshleConfig reads and parses path. A missing file is always an
// error here. The returned *virrors.Error wraps the os error, so
// errors.Is(err, fs.ErrNotExist) detects a missing file; os.IsNotExist does
// not see through the wrapper.
func LoadVirshleConfig(path string) (*VirshleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, virrors.Wrap(err, fmt.Sprintf("config file not found: %s", path), "run `virshle init` to create one")
		}
		return nil, virrors.Wrap(err, "couldn't read config file", path)
	}

	var cfg VirshleConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, virrors.Wrap(err, "couldn't parse config file", path)
	}
	return &cfg, nil
}

// Save serialises cfg as TOML and writes it to path.
func (cfg *VirshleConfig) Save(path string) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return virrors.Wrap(err, "couldn't encode config", "")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return virrors.Wrap(err, "couldn't write config file", path)
	}
	return nil
}

// GetTemplate returns the named VmTemplate, or an error listing the
// available template names (mirrors the original's get_template miss
// message).
func (cfg *VirshleConfig) GetTemplate(name string) (*VmTemplate, error) {
	if cfg.Template != nil {
		for i := range cfg.Template.Vm {
			if cfg.Template.Vm[i].Name == name {
				return &cfg.Template.Vm[i], nil
			}
		}
	}
	return nil, virrors.New(fmt.Sprintf("unknown template: %s", name), availableTemplateNames(cfg))
}

func availableTemplateNames(cfg *VirshleConfig) string {
	if cfg.Template == nil || len(cfg.Template.Vm) == 0 {
		return "no templates are configured"
	}
	names := "available templates: "
	for i, t := range cfg.Template.Vm {
		if i > 0 {
			names += ", "
		}
		names += t.Name
	}
	return names
}
