package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/imbolc/internal/ids"
	"github.com/schollz/imbolc/internal/netclient"
	"github.com/schollz/imbolc/internal/netmsg"
)

// runConnect implements spec.md §6's `--connect ADDR[:PORT]` mode: dial a
// server, no local audio. own lists the instrument ids to request
// ownership of via the Hello handshake's RequestedInstruments.
func runConnect(addr string, own []ids.InstrumentId) int {
	opts := netclient.HelloOptions{
		ClientName:           clientName(),
		RequestedInstruments: own,
		RequestedPrivilege:   netmsg.Normal,
	}

	c, err := netclient.Dial(addr, opts)
	if err != nil {
		log.Printf("imbolc: %v", err)
		return 3
	}
	defer c.Close()

	log.Printf("imbolc: connected to %s as client, privilege=%v", addr, c.Privilege())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	return 0
}

func clientName() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "imbolc-client"
}
