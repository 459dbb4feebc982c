package hue

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/grandcat/zeroconf"
)

// Bridge represents a discovered Philips Hue Bridge on the network.
type Bridge struct {
	ID       string
	Model    string
	Name     string
	IP       net.IP
	Port     int
	Hostname string
}

func (b Bridge) String() string {
	return fmt.Sprintf("%s (%s) at %s", b.Name, b.ID, b.IP)
}

// Discover browses mDNS for Hue bridges until ctx is done and returns
// every bridge seen, de-duplicated by bridge id.
func Discover(ctx context.Context) ([]Bridge, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("creating mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	collected := make(chan []Bridge, 1)
	go func() {
		collected <- collectBridges(entries)
	}()

	// Browse closes entries once ctx is done.
	if err := resolver.Browse(ctx, "_hue._tcp", "local.", entries); err != nil {
		return nil, fmt.Errorf("browsing for Hue bridges: %w", err)
	}
	<-ctx.Done()
	return <-collected, nil
}

func collectBridges(entries <-chan *zeroconf.ServiceEntry) []Bridge {
	var bridges []Bridge
	seen := make(map[string]bool)
	for entry := range entries {
		b := parseBridge(entry)
		if b.IP == nil {
			continue
		}
		if b.ID != "" {
			if seen[b.ID] {
				continue
			}
			seen[b.ID] = true
		}
		bridges = append(bridges, b)
	}
	return bridges
}

func parseBridge(entry *zeroconf.ServiceEntry) Bridge {
	b := Bridge{
		Name:     entry.Instance,
		Port:     entry.Port,
		Hostname: entry.HostName,
	}

	if len(entry.AddrIPv4) > 0 {
		b.IP = entry.AddrIPv4[0]
	} else if len(entry.AddrIPv6) > 0 {
		b.IP = entry.AddrIPv6[0]
	}

	for _, txt := range entry.Text {
		key, value, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		switch key {
		case "bridgeid":
			b.ID = value
		case "modelid":
			b.Model = value
		}
	}
	return b
}
