// Command imbolc is Imbolc's single binary: spec.md §6's five-mode CLI
// surface (Local, `--server`, `--server --tui`, `--connect`, `--discover`)
// over the shared config/backend/dispatch/scheduler/netserver/netclient/
// persistence/discovery stack, replacing the teacher's single `flag`-based
// entrypoint (a main.go at the repo root, no longer in this tree) with a
// cobra command the way the rest of the retrieved pack builds its CLIs.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schollz/imbolc/internal/config"
	"github.com/schollz/imbolc/internal/discovery"
	"github.com/schollz/imbolc/internal/ids"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		serverFlag   bool
		tuiFlag      bool
		connectAddr  string
		discoverFlag bool
		ownFlag      string
		configPath   string
		projectPath  string
		seedAddrs    []string
	)

	cmd := &cobra.Command{
		Use:           "imbolc",
		Short:         "Imbolc: a networked terminal DAW control plane",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().BoolVar(&serverFlag, "server", false, "accept network clients (headless unless --tui)")
	cmd.Flags().BoolVar(&tuiFlag, "tui", false, "run the local startup-wait UI alongside --server")
	cmd.Flags().StringVar(&connectAddr, "connect", "", "connect to a running server at ADDR[:PORT]")
	cmd.Flags().BoolVar(&discoverFlag, "discover", false, "browse for servers and print them")
	cmd.Flags().StringVar(&ownFlag, "own", "", "comma-separated instrument ids to request ownership of on --connect")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults omitted fields)")
	cmd.Flags().StringVar(&projectPath, "project", "", "project file path (defaults to the OS config dir)")
	cmd.Flags().StringArrayVar(&seedAddrs, "seed-addr", nil, "name=host:port entries --discover browses (repeatable)")

	exitCode := 0
	cmd.RunE = func(*cobra.Command, []string) error {
		cfg, err := resolveConfig(configPath)
		if err != nil {
			exitCode = 1
			return err
		}

		path := projectPath
		if path == "" {
			path, err = defaultProjectPath()
			if err != nil {
				exitCode = 1
				return err
			}
		}

		switch {
		case discoverFlag:
			seed, err := parseSeedAddrs(seedAddrs)
			if err != nil {
				exitCode = 1
				return err
			}
			exitCode = runDiscover(seed)
		case connectAddr != "":
			own, err := parseOwn(ownFlag)
			if err != nil {
				exitCode = 1
				return err
			}
			exitCode = runConnect(connectAddr, own)
		case serverFlag:
			exitCode = runHeadlessServer(cfg, path, tuiFlag)
		default:
			exitCode = runLocal(cfg, path)
		}
		return nil
	}

	if err := cmd.Execute(); err != nil {
		log.Println("imbolc:", err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	return exitCode
}

func resolveConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func parseOwn(s string) ([]ids.InstrumentId, error) {
	if s == "" {
		return nil, nil
	}
	var out []ids.InstrumentId
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("imbolc: invalid --own instrument id %q: %w", part, err)
		}
		out = append(out, ids.InstrumentId(n))
	}
	return out, nil
}

// parseSeedAddrs parses --seed-addr entries of the form "name=host:port".
func parseSeedAddrs(entries []string) ([]discovery.Endpoint, error) {
	var out []discovery.Endpoint
	for _, e := range entries {
		name, addr, ok := strings.Cut(e, "=")
		if !ok || name == "" || addr == "" {
			return nil, fmt.Errorf("imbolc: invalid --seed-addr %q, want name=host:port", e)
		}
		out = append(out, discovery.Endpoint{Name: name, Addr: addr})
	}
	return out, nil
}
