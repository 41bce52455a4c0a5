// Command healthcheck is the container HEALTHCHECK for the dexkeeper bot. It
// exits non-zero unless /healthz on the bot's HTTP listener answers 200.
// The listener is found the way the bot finds it: HTTP_ADDR, default :8080.
// HEALTHCHECK_URL replaces the whole target.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"
)

func target() string {
	if url := os.Getenv("HEALTHCHECK_URL"); url != "" {
		return url
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		host, port = "", "8080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s/healthz", net.JoinHostPort(host, port))
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target(), nil)
	if err != nil {
		log.Printf("healthcheck: %v", err)
		os.Exit(1)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("healthcheck: bot unreachable: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("healthcheck: close body: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		log.Printf("healthcheck: /healthz returned %s", resp.Status)
		os.Exit(1)
	}
}
