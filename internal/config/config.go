// Package config holds virshled's runtime paths (Config, grounded on the
// teacher's internal/config/config.go FindBinary/EnsureDirs idiom) and the
// user-authored TOML configuration (VirshleConfig, in toml.go, grounded on
// virshle_core/src/config/mod.rs in the original implementation).
package config

import (
	"os"
	"os/exec"
	"path/filepath"
)

// DefaultManagedRoot is the node-local state directory, spec.md §6.
const DefaultManagedRoot = "/var/lib/virshle"

// DefaultConfigPath is where virshled looks for its TOML configuration.
const DefaultConfigPath = "/etc/virshle/config.toml"

// Config holds virshled's runtime paths, derived from ManagedRoot.
type Config struct {
	// ManagedRoot is the node-local state directory (default
	// DefaultManagedRoot), holding the socket, the database, and every
	// VM's {disk,net} subtree.
	ManagedRoot string

	// ConfigPath is where the TOML configuration was (or would be) read
	// from.
	ConfigPath string

	SocketPath string
	DBPath     string
	VmDir      string

	// CloudHypervisorBin/VirtiofsdBin are resolved once at startup via
	// FindBinary so every VM launch shares the same discovery result.
	CloudHypervisorBin string
	VirtiofsdBin       string

	// OvsVmSwitch is the OVS bridge hosting every per-VM port (§4.6).
	OvsVmSwitch string
}

// DefaultConfig returns the default runtime configuration rooted at
// DefaultManagedRoot.
func DefaultConfig() *Config {
	return newConfig(DefaultManagedRoot, DefaultConfigPath)
}

func newConfig(managedRoot, configPath string) *Config {
	return &Config{
		ManagedRoot: managedRoot,
		ConfigPath:  configPath,
		SocketPath:  filepath.Join(managedRoot, "virshle.sock"),
		DBPath:      filepath.Join(managedRoot, "virshle.sqlite"),
		VmDir:       filepath.Join(managedRoot, "vm"),

		CloudHypervisorBin: "cloud-hypervisor",
		VirtiofsdBin:       "virtiofsd",

		OvsVmSwitch: "vmbr",
	}
}

// VmRoot returns {managed_root}/vm/{uuid}, the exclusive-by-uuid subtree a
// VM's sockets/disks/init-disk mount point live under (spec.md §6).
func (c *Config) VmRoot(vmUUID string) string {
	return filepath.Join(c.VmDir, vmUUID)
}

// EnsureDirs creates the directories Config names, if missing.
func (c *Config) EnsureDirs() error {
	dirs := []string{c.ManagedRoot, c.VmDir, filepath.Dir(c.SocketPath), filepath.Dir(c.ConfigPath)}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// ResolveBinaries eagerly resolves CloudHypervisorBin/VirtiofsdBin to
// absolute paths, if resolvable.
func (c *Config) ResolveBinaries() {
	if p := FindBinary(c.CloudHypervisorBin, executableDir()); p != "" {
		c.CloudHypervisorBin = p
	}
	if p := FindBinary(c.VirtiofsdBin, executableDir()); p != "" {
		c.VirtiofsdBin = p
	}
}

// FindBinary locates a binary by name. Search order:
//  1. PATH (exec.LookPath)
//  2. Sibling directory of the running executable (binDir)
//  3. Known system paths
//
// Returns the absolute path, or "" if not found.
func FindBinary(name string, binDir string) string {
	if p, err := exec.LookPath(name); err == nil {
		return p
	}

	if binDir != "" {
		p := filepath.Join(binDir, name)
		if _, err := os.Stat(p); err == nil {
			abs, _ := filepath.Abs(p)
			return abs
		}
	}

	for _, dir := range []string{"/usr/lib/virshle", "/usr/libexec", "/usr/local/bin"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// executableDir returns the directory containing the current executable.
func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
