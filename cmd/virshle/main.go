// virshle is the CLI front-end for the virshled control plane.
//
// Commands:
//
//	virshle init                               Write a default config.toml
//	virshle daemon                             Run virshled in the foreground
//	virshle node ls                            List configured federation nodes
//	virshle template ls                        List configured VM templates
//	virshle vm create   --template NAME [--account UUID] [--node NAME]  (--file is rejected)
//	virshle vm start    {--name N | --id I | --uuid U} [--attach]
//	virshle vm stop     {--name N | --id I | --uuid U}
//	virshle vm info     {--name N | --id I | --uuid U}
//	virshle vm ls        [--node NAME] [--state STATE] [--account UUID]
//	virshle vm rm        {--name N | --id I | --uuid U}
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/virshle/virshle/internal/client"
	"github.com/virshle/virshle/internal/config"
	"github.com/virshle/virshle/internal/daemon"
	"github.com/virshle/virshle/internal/dhcp"
	"github.com/virshle/virshle/internal/federation"
	"github.com/virshle/virshle/internal/image"
	"github.com/virshle/virshle/internal/network"
	"github.com/virshle/virshle/internal/registry"
	"github.com/virshle/virshle/internal/version"
	"github.com/virshle/virshle/internal/vm"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		cmdInit()
	case "daemon":
		cmdDaemon()
	case "node":
		cmdNode()
	case "template":
		cmdTemplate()
	case "vm":
		cmdVm()
	case "version", "--version", "-v":
		fmt.Printf("virshle %s\n", version.Version())
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Usage: virshle <command> [options]

Commands:
  init        Write a default config.toml
  daemon      Run virshled in the foreground
  node        Manage federation nodes (ls)
  template    Manage VM templates (ls)
  vm          Manage VMs (create, start, stop, info, ls, rm)

Examples:
  virshle init
  virshle template ls
  virshle vm create --template web
  virshle vm start --name web-01
  virshle vm info --name web-01
  virshle vm ls --state running
  virshle vm stop --name web-01
  virshle vm rm --name web-01`)
}

// cmdInit synthesises a default config.toml when none exists yet — the
// one place a missing config file is not fatal (Open Question (b)).
func cmdInit() {
	cfg := config.DefaultConfig()
	if err := cfg.EnsureDirs(); err != nil {
		die("create directories: %v", err)
	}

	if _, err := os.Stat(cfg.ConfigPath); err == nil {
		fmt.Printf("config already exists at %s\n", cfg.ConfigPath)
		return
	}

	vcfg := config.DefaultVirshleConfig(cfg.SocketPath)
	if err := vcfg.Save(cfg.ConfigPath); err != nil {
		die("write config: %v", err)
	}
	fmt.Printf("wrote default config to %s\n", cfg.ConfigPath)
}

// cmdDaemon runs virshled in the foreground — used for development and by
// process supervisors that want to own restart policy themselves.
func cmdDaemon() {
	cfg := config.DefaultConfig()
	if err := cfg.EnsureDirs(); err != nil {
		die("create directories: %v", err)
	}
	cfg.ResolveBinaries()

	vcfg, err := config.LoadVirshleConfig(cfg.ConfigPath)
	if err != nil {
		die("%v", err)
	}

	reg, err := registry.Open(cfg.DBPath)
	if err != nil {
		die("open registry: %v", err)
	}
	defer reg.Close()

	net := network.New(cfg.OvsVmSwitch)
	if err := net.EnsureSwitch(context.Background()); err != nil {
		die("ensure ovs switch: %v", err)
	}

	var allocator dhcp.Allocator
	switch {
	case vcfg.Dhcp.IsFake():
		allocator, err = dhcp.NewFake(reg, vcfg.Dhcp.Fake.Pool)
		if err != nil {
			die("configure fake dhcp: %v", err)
		}
	case vcfg.Dhcp.IsKea():
		allocator = dhcp.NewKea(vcfg.Dhcp.Kea.Url)
	}

	imageCacheDir := filepath.Join(cfg.ManagedRoot, "image-cache")
	if err := os.MkdirAll(imageCacheDir, 0o755); err != nil {
		die("create image cache dir: %v", err)
	}
	images := image.NewCache(imageCacheDir, "")

	server := daemon.NewServer(cfg, vcfg, reg, net, allocator, images)
	if err := server.Start(); err != nil {
		die("start daemon server: %v", err)
	}

	fmt.Printf("virshled listening on %s (ctrl-c to stop)\n", cfg.SocketPath)
	select {}
}

func cmdNode() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: virshle node ls")
		os.Exit(1)
	}
	switch os.Args[2] {
	case "ls":
		cfg := loadLocalVirshleConfig()
		printJSON(cfg.Node)
	default:
		fmt.Fprintf(os.Stderr, "unknown node command: %s\n", os.Args[2])
		os.Exit(1)
	}
}

func cmdTemplate() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: virshle template ls")
		os.Exit(1)
	}
	switch os.Args[2] {
	case "ls":
		cfg := loadLocalVirshleConfig()
		var templates []config.VmTemplate
		if cfg.Template != nil {
			templates = cfg.Template.Vm
		}
		printJSON(templates)
	default:
		fmt.Fprintf(os.Stderr, "unknown template command: %s\n", os.Args[2])
		os.Exit(1)
	}
}

func cmdVm() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: virshle vm <create|start|stop|info|ls|rm>")
		os.Exit(1)
	}

	c := client.NewDefault()
	args := os.Args[3:]

	switch os.Args[2] {
	case "create":
		cmdVmCreate(args)
	case "start":
		cmdVmStart(c, args)
	case "stop":
		cmdVmStop(c, args)
	case "info":
		cmdVmInfo(c, args)
	case "ls":
		cmdVmList(args)
	case "rm":
		cmdVmDelete(c, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown vm command: %s\n", os.Args[2])
		os.Exit(1)
	}
}

// selectorFlags parses the {--name N | --id I | --uuid U} selector shared
// by start/stop/info/rm, plus any extra flags a caller names in extra.
func selectorFlags(args []string, extra map[string]*string) (name, uuid string, id int64) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--name":
			i++
			if i < len(args) {
				name = args[i]
			}
		case "--uuid":
			i++
			if i < len(args) {
				uuid = args[i]
			}
		case "--id":
			i++
			if i < len(args) {
				fmt.Sscanf(args[i], "%d", &id)
			}
		default:
			if v, ok := extra[args[i]]; ok {
				i++
				if i < len(args) {
					*v = args[i]
				}
			}
		}
	}
	return
}

func cmdVmCreate(args []string) {
	var file, template, account, node string
	selectorFlags(args, map[string]*string{"--file": &file, "--template": &template, "--account": &account, "--node": &node})

	if template == "" {
		die("virshle vm create requires --template NAME (or --file P, not yet supported by this CLI build)")
	}

	c := resolveCreateClient(node)

	req := map[string]string{"template_name": template, "account_uuid": account}
	var out vm.Vm
	if err := c.Put(context.Background(), "/vm/create", req, &out); err != nil {
		die("%v", err)
	}
	printJSON(out)
}

// resolveCreateClient picks which node's daemon a `vm create` with no
// explicit --node should target: the named node if one was given, otherwise
// the least-saturated/most-free-RAM node across config.toml's [[node]] list
// (spec.md §11 "node best"), falling back to the local daemon when there is
// only one node configured or every node is saturated/unreachable.
func resolveCreateClient(node string) *client.Client {
	vcfg := loadLocalVirshleConfig()
	nodes := vcfg.Node

	if node == "" && len(nodes) > 1 {
		if best := federation.Best(context.Background(), nodes); best != "" {
			node = best
		}
	}

	if node == "" {
		return client.NewDefault()
	}
	for _, n := range nodes {
		if n.Name == node {
			c, err := client.New(n.Url)
			if err != nil {
				die("node %s: %v", n.Name, err)
			}
			return c
		}
	}
	die("unknown node: %s", node)
	return nil
}

func cmdVmStart(c *client.Client, args []string) {
	attach := false
	filtered := args[:0]
	for _, a := range args {
		if a == "--attach" {
			attach = true
			continue
		}
		filtered = append(filtered, a)
	}

	name, uuid, id := selectorFlags(filtered, nil)
	req := map[string]any{"name": name, "uuid": uuid, "id": id}
	var out vm.Vm
	if err := c.Put(context.Background(), "/vm/start", req, &out); err != nil {
		die("%v", err)
	}
	printJSON(out)

	if attach {
		fmt.Println("(--attach: console streaming not implemented by this CLI build)")
	}
}

func cmdVmStop(c *client.Client, args []string) {
	name, uuid, id := selectorFlags(args, nil)
	req := map[string]any{"name": name, "uuid": uuid, "id": id}
	var out vm.Vm
	if err := c.Put(context.Background(), "/vm/stop", req, &out); err != nil {
		die("%v", err)
	}
	printJSON(out)
}

func cmdVmInfo(c *client.Client, args []string) {
	name, uuid, id := selectorFlags(args, nil)
	req := map[string]any{"name": name, "uuid": uuid, "id": id}
	var out vm.Vm
	if err := c.Post(context.Background(), "/vm/info", req, &out); err != nil {
		die("%v", err)
	}
	printJSON(out)
}

func cmdVmDelete(c *client.Client, args []string) {
	name, uuid, id := selectorFlags(args, nil)
	req := map[string]any{"name": name, "uuid": uuid, "id": id}
	var out vm.Vm
	if err := c.Post(context.Background(), "/vm/delete", req, &out); err != nil {
		die("%v", err)
	}
	printJSON(out)
}

// cmdVmList fans the listing out across every node in config.toml's
// [[node]] list (spec.md §4.7) and filters the aggregate by node name, VM
// state, and owning account after aggregation — rather than querying only
// the local daemon, so a multi-node fleet is queried the way the Node
// Federation module intends.
func cmdVmList(args []string) {
	var node, state, account string
	selectorFlags(args, map[string]*string{"--node": &node, "--state": &state, "--account": &account})

	vcfg := loadLocalVirshleConfig()
	nodes := vcfg.Node
	if len(nodes) == 0 {
		nodes = []config.Node{{Name: "local", Url: "unix://" + client.DefaultSocketPath()}}
	}

	results := federation.Query(context.Background(), nodes, "/vm/list")

	var pairs []federation.NodeVm
	for _, r := range results {
		if r.Data == nil {
			fmt.Fprintf(os.Stderr, "node %s: %s\n", r.Node.Name, r.State)
			continue
		}
		var vms []vm.Vm
		if err := json.Unmarshal(r.Data, &vms); err != nil {
			fmt.Fprintf(os.Stderr, "node %s: malformed response: %v\n", r.Node.Name, err)
			continue
		}
		for _, v := range vms {
			pairs = append(pairs, federation.NodeVm{Node: r.Node.Name, Vm: v})
		}
	}

	filter := federation.Filter{NodeName: node, Owner: account}
	if state != "" {
		s := vm.ParseState(state)
		filter.State = &s
	}
	printJSON(filter.Apply(pairs))
}

func loadLocalVirshleConfig() *config.VirshleConfig {
	cfg := config.DefaultConfig()
	vcfg, err := config.LoadVirshleConfig(cfg.ConfigPath)
	if err != nil {
		die("%v", err)
	}
	return vcfg
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		die("encode output: %v", err)
	}
	fmt.Println(string(b))
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
