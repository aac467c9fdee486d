// Package netutil picks a usable bind address for the daemon.
package netutil

import (
	"errors"
	"fmt"
	"net"
)

// Choose returns the preferred address when it can be listened on, falling
// back through the candidates otherwise. An empty preferred address skips
// straight to the candidates.
func Choose(preferred string, candidates []string) (string, error) {
	if preferred != "" {
		if available(preferred) {
			return preferred, nil
		}
		if len(candidates) == 0 {
			return "", fmt.Errorf("bind address in use: %s", preferred)
		}
	}
	for _, addr := range candidates {
		if available(addr) {
			return addr, nil
		}
	}
	return "", errors.New("no available bind addresses")
}

func available(addr string) bool {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
