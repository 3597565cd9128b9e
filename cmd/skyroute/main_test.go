package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/skyroute/internal/infrastructure/logging"
	"github.com/nerrad567/skyroute/pkg/skyroute"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "skyroute dev (commit unknown") {
		t.Errorf("output = %q", out.String())
	}
}

func TestGetConfigPath(t *testing.T) {
	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"default", "", "", defaultConfigPath},
		{"environment", "", "/etc/skyroute.yaml", "/etc/skyroute.yaml"},
		{"flag wins", "./local.yaml", "/etc/skyroute.yaml", "./local.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SKYROUTE_CONFIG", tt.env)
			if got := getConfigPath(tt.flag); got != tt.want {
				t.Errorf("getConfigPath(%q) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}
}

func TestBuildTransport(t *testing.T) {
	log := logging.Discard()
	for _, name := range []string{transportPaho, transportMemory} {
		t.Run(name, func(t *testing.T) {
			tr, closeFn, err := buildTransport(name, log)
			if err != nil {
				t.Fatalf("buildTransport(%q) error = %v", name, err)
			}
			if tr.IsConnected() {
				t.Error("new transport reports connected")
			}
			closeFn()
		})
	}

	if _, _, err := buildTransport("carrier-pigeon", log); !errors.Is(err, skyroute.ErrConfiguration) {
		t.Errorf("unknown transport error = %v, want ErrConfiguration", err)
	}
}

type countingSink struct {
	received   int
	deliveries []string
}

func (c *countingSink) MessageReceived() { c.received++ }
func (c *countingSink) Delivery(mode, outcome string) {
	c.deliveries = append(c.deliveries, mode+"/"+outcome)
}

func TestDeliveryMetrics_FansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	m := deliveryMetrics{a, b}

	m.MessageReceived()
	m.Delivery("async", "delivered")

	for i, sink := range []*countingSink{a, b} {
		if sink.received != 1 || len(sink.deliveries) != 1 || sink.deliveries[0] != "async/delivered" {
			t.Errorf("sink %d = %+v", i, sink)
		}
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, runOptions{configPath: "/nonexistent/path/config.yaml", transport: transportMemory})
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("run() error = %v, want config load failure", err)
	}
}

func TestRun_UnknownTransport(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: error\napi:\n  enabled: false\n")
	err := run(context.Background(), runOptions{configPath: path, transport: "udp"})
	if !errors.Is(err, skyroute.ErrConfiguration) {
		t.Errorf("run() error = %v, want ErrConfiguration", err)
	}
}

func TestRun_MemoryTransport(t *testing.T) {
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "journal.db")
	port := freePort(t)
	path := writeConfig(t, fmt.Sprintf(`
client:
  name: test
mqtt:
  broker:
    host: "127.0.0.1"
    client_id: "run-test"
journal:
  enabled: true
  path: %q
logging:
  level: error
  format: text
api:
  enabled: true
  host: "127.0.0.1"
  port: %d
`, journalPath, port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		root := newRootCmd()
		root.SetArgs([]string{"run", "--config", path, "--transport", transportMemory})
		done <- root.ExecuteContext(ctx)
	}()

	client := &http.Client{Timeout: time.Second}
	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	deadline := time.Now().Add(5 * time.Second)
	var health struct {
		Status     string          `json:"status"`
		Connection skyroute.Status `json:"connection"`
	}
	for {
		resp, err := client.Get(url)
		if err == nil {
			decodeErr := json.NewDecoder(resp.Body).Decode(&health)
			resp.Body.Close()
			if decodeErr == nil && resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("health never reported ok: last %+v, err %v", health, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if health.Connection.Subscribers != 1 || health.Connection.Subscriptions != 2 {
		t.Errorf("connection = %+v, want the system subscriber with 2 routes", health.Connection)
	}

	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/api/v1/failures", port))
	if err != nil {
		t.Fatalf("GET failures: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("failures status = %d, want 200 with the journal enabled", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	if _, err := os.Stat(journalPath); err != nil {
		t.Errorf("journal database not created: %v", err)
	}
}

func TestJournalCommands(t *testing.T) {
	journalPath := filepath.Join(t.TempDir(), "journal.db")
	path := writeConfig(t, fmt.Sprintf("journal:\n  path: %q\nlogging:\n  level: error\n", journalPath))

	execute := func(args ...string) string {
		t.Helper()
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs(append([]string{"--config", path, "journal"}, args...))
		if err := root.ExecuteContext(context.Background()); err != nil {
			t.Fatalf("journal %v error = %v", args, err)
		}
		return out.String()
	}

	if out := execute("status"); !strings.Contains(out, "pending  20260101_000000  delivery_failures") {
		t.Errorf("status on fresh journal = %q", out)
	}
	if out := execute("prune", "--older-than", "1h"); out != "removed 0 entries\n" {
		t.Errorf("prune = %q", out)
	}
	if out := execute("status"); !strings.Contains(out, "applied  20260101_000000") {
		t.Errorf("status after prune (which migrates) = %q", out)
	}
	if out := execute("rollback"); !strings.Contains(out, "pending  20260101_000000") {
		t.Errorf("status after rollback = %q", out)
	}
}
