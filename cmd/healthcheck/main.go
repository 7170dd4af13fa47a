// Container healthcheck probe: exits 0 when the local API answers its
// liveness endpoint with status "ok", 1 otherwise.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"time"
)

const probeTimeout = 2 * time.Second

func main() {
	if err := probe(); err != nil {
		os.Exit(1)
	}
}

func probe() error {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	url := "http://" + loopbackAddr(os.Getenv("APPBRIDGE_LISTEN_ADDR")) + "/api/v1/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: probeTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errNotHealthy
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return err
	}
	if health.Status != "ok" {
		return errNotHealthy
	}

	return nil
}

var errNotHealthy = errors.New("service not healthy")

// loopbackAddr rewrites a bind-all listen address to loopback. The probe runs
// inside the same container as the server, so loopback is always the right
// target even when the server binds 0.0.0.0.
func loopbackAddr(listen string) string {
	const fallback = "127.0.0.1:8080"

	if listen == "" {
		return fallback
	}

	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return fallback
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
