package main

import (
	"fmt"

	"github.com/schollz/imbolc/internal/discovery"
)

// runDiscover implements spec.md §6's `--discover` mode: browse for
// servers and print them. Since no mDNS library exists anywhere in the
// retrieved pack (see DESIGN.md), browsing is backed by a
// discovery.LoopbackRegistry seeded from --seed-addr flags rather than a
// fabricated multicast-DNS client; the core treats discovered endpoints
// identically to a user-supplied --connect address either way.
func runDiscover(seed []discovery.Endpoint) int {
	reg := discovery.NewLoopbackRegistry(seed)
	endpoints, err := reg.Browse()
	if err != nil {
		fmt.Println("imbolc: discovery failed:", err)
		return 3
	}
	if len(endpoints) == 0 {
		fmt.Println("no Imbolc servers found")
		return 0
	}
	for _, e := range endpoints {
		fmt.Printf("%-20s %s\n", e.Name, e.Addr)
	}
	return 0
}
