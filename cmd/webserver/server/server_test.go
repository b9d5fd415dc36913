package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeRoot creates a served directory with the given files.
func writeRoot(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func testConfig(root string) Config {
	cfg := DefaultConfig()
	cfg.Root = root
	cfg.Logger = discardLogger()
	return cfg
}

func TestServerStartStop(t *testing.T) {
	root := writeRoot(t, map[string]string{"udTest.html": "<title>udTest</title>"})

	// Create server with random port
	srv, err := NewServer(testConfig(root))
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}

	addr, err := srv.Start()
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	// Verify we got a real address (not :0)
	if addr == "" || addr == ":0" {
		t.Errorf("Start() returned invalid address: %q", addr)
	}
	t.Logf("Server started on %s", addr)

	if got := srv.Addr(); got != addr {
		t.Errorf("Addr() = %q, want %q", got, addr)
	}

	url := "http://" + addr + "/udTest.html"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("HTTP GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /udTest.html status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := resp.Header.Get(HeaderEmbedderPolicy); got != EmbedderPolicy {
		t.Errorf("%s = %q, want %q", HeaderEmbedderPolicy, got, EmbedderPolicy)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "<title>udTest</title>") {
		t.Error("Response body doesn't contain expected HTML")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if err := srv.Wait(); err != nil {
		t.Errorf("Wait() after Shutdown = %v, want nil", err)
	}
	if got := srv.Addr(); got != "" {
		t.Errorf("Addr() after Shutdown = %q, want empty", got)
	}

	// Verify server is stopped (should fail to connect)
	_, err = http.Get(url)
	if err == nil {
		t.Error("Expected connection error after shutdown, but request succeeded")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Addr != ":0" {
		t.Errorf("DefaultConfig().Addr = %q, want %q", cfg.Addr, ":0")
	}
	if cfg.Root != "." {
		t.Errorf("DefaultConfig().Root = %q, want %q", cfg.Root, ".")
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Errorf("DefaultConfig().ReadTimeout = %v, want %v", cfg.ReadTimeout, 30*time.Second)
	}
	if cfg.WriteTimeout != 30*time.Second {
		t.Errorf("DefaultConfig().WriteTimeout = %v, want %v", cfg.WriteTimeout, 30*time.Second)
	}
}

func TestServerDoubleStart(t *testing.T) {
	srv, err := NewServer(testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	defer srv.Shutdown(context.Background())

	addr1, err := srv.Start()
	if err != nil {
		t.Fatalf("First Start() failed: %v", err)
	}

	// Second start should return same address (no error)
	addr2, err := srv.Start()
	if err != nil {
		t.Fatalf("Second Start() failed: %v", err)
	}

	if addr1 != addr2 {
		t.Errorf("Second Start() returned different address: %q vs %q", addr1, addr2)
	}
}

func TestServerShutdownBeforeStart(t *testing.T) {
	srv, err := NewServer(testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() before Start() = %v, want nil", err)
	}
	if err := srv.Wait(); err != nil {
		t.Errorf("Wait() before Start() = %v, want nil", err)
	}
}

func TestNewServerInvalidRoot(t *testing.T) {
	root := writeRoot(t, map[string]string{"file.txt": "x"})

	if _, err := NewServer(testConfig(filepath.Join(root, "missing"))); err == nil {
		t.Error("NewServer() with missing root succeeded, want error")
	}
	if _, err := NewServer(testConfig(filepath.Join(root, "file.txt"))); err == nil {
		t.Error("NewServer() with file root succeeded, want error")
	}
}

func TestServerStartAddressInUse(t *testing.T) {
	first, err := NewServer(testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	addr, err := first.Start()
	if err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer first.Shutdown(context.Background())

	cfg := testConfig(t.TempDir())
	cfg.Addr = addr
	second, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	if _, err := second.Start(); err == nil {
		second.Shutdown(context.Background())
		t.Error("Start() on a bound address succeeded, want error")
	}
}

func TestServerRestartAfterShutdown(t *testing.T) {
	root := writeRoot(t, map[string]string{"udTest.html": "<title>udTest</title>"})
	cfg := testConfig(root)
	cfg.Watch = true
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		addr, err := srv.Start()
		if err != nil {
			t.Fatalf("Start() #%d failed: %v", i+1, err)
		}

		resp, err := http.Get("http://" + addr + "/udTest.html")
		if err != nil {
			t.Fatalf("GET after Start() #%d failed: %v", i+1, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET after Start() #%d status = %d, want %d", i+1, resp.StatusCode, http.StatusOK)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = srv.Shutdown(ctx)
		cancel()
		if err != nil {
			t.Fatalf("Shutdown() #%d failed: %v", i+1, err)
		}
		if err := srv.Wait(); err != nil {
			t.Errorf("Wait() after Shutdown() #%d = %v, want nil", i+1, err)
		}
	}
}
