// virshled is the per-node daemon: it owns the persistent store, the OVS
// network fabric controller, and the VM lifecycle manager, and exposes them
// over a UNIX-socket REST API (spec.md §4.8).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/virshle/virshle/internal/config"
	"github.com/virshle/virshle/internal/daemon"
	"github.com/virshle/virshle/internal/dhcp"
	"github.com/virshle/virshle/internal/image"
	"github.com/virshle/virshle/internal/network"
	"github.com/virshle/virshle/internal/registry"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.DefaultConfig()
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatalf("create directories: %v", err)
	}
	cfg.ResolveBinaries()

	vcfg, err := config.LoadVirshleConfig(cfg.ConfigPath)
	if err != nil {
		log.Fatal(err)
	}

	reg, err := registry.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open registry: %v", err)
	}
	defer reg.Close()
	log.Printf("registry: %s", cfg.DBPath)

	net := network.New(cfg.OvsVmSwitch)
	if err := net.EnsureSwitch(context.Background()); err != nil {
		log.Fatalf("ensure ovs switch: %v", err)
	}
	log.Printf("network fabric: bridge %s", cfg.OvsVmSwitch)

	allocator, err := resolveDhcpAllocator(vcfg, reg)
	if err != nil {
		log.Fatalf("configure dhcp: %v", err)
	}

	imageCacheDir := filepath.Join(cfg.ManagedRoot, "image-cache")
	if err := os.MkdirAll(imageCacheDir, 0o755); err != nil {
		log.Fatalf("create image cache dir: %v", err)
	}
	images := image.NewCache(imageCacheDir, "")

	server := daemon.NewServer(cfg, vcfg, reg, net, allocator, images)
	if err := server.Start(); err != nil {
		log.Fatalf("start daemon server: %v", err)
	}

	log.Printf("virshled ready (pid %d, socket %s)", os.Getpid(), cfg.SocketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	log.Printf("received %v, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	os.Remove(cfg.SocketPath)
	log.Println("virshled stopped")
}

// resolveDhcpAllocator builds the dhcp.Allocator named by the config's
// [dhcp] tagged union. A nil allocator is valid: VMs are then started
// without any DHCP lease management.
func resolveDhcpAllocator(vcfg *config.VirshleConfig, reg *registry.DB) (dhcp.Allocator, error) {
	switch {
	case vcfg.Dhcp.IsFake():
		a, err := dhcp.NewFake(reg, vcfg.Dhcp.Fake.Pool)
		if err != nil {
			return nil, err
		}
		log.Printf("dhcp: fake allocator, %d pool(s)", len(vcfg.Dhcp.Fake.Pool))
		return a, nil
	case vcfg.Dhcp.IsKea():
		log.Printf("dhcp: kea allocator at %s", vcfg.Dhcp.Kea.Url)
		return dhcp.NewKea(vcfg.Dhcp.Kea.Url), nil
	default:
		log.Printf("dhcp: no backend configured")
		return nil, nil
	}
}
