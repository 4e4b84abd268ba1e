//go:build integration

package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sternrassler/artwork-browser/internal/testutil"
	"github.com/Sternrassler/artwork-browser/internal/view"
	"github.com/Sternrassler/artwork-browser/internal/web"
	"github.com/Sternrassler/artwork-browser/pkg/client"
	"github.com/Sternrassler/artwork-browser/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newCatalogClient(t *testing.T, redisClient *redis.Client, catalog *testutil.MockCatalog) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig(redisClient, "ArtworkBrowserIntegration/1.0")
	cfg.BaseURL = catalog.URL()
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func viewOptions() view.Options {
	opts := view.DefaultOptions()
	opts.Logger = zerolog.Nop()
	return opts
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Fetch did not finish")
	}
}

// TestBrowser_SessionsRevalidateSharedCache drives two viewers through the
// web server. The second viewer's first page is answered with a 304.
func TestBrowser_SessionsRevalidateSharedCache(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	catalog := testutil.NewMockCatalog(42)
	defer catalog.Close()

	sessions := web.NewSessions(newCatalogClient(t, redisClient, catalog), viewOptions(), time.Hour, 0)
	srv, err := web.NewServer(sessions, web.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	bodies := make([]string, 2)
	for i := range bodies {
		jar, _ := cookiejar.New(nil)
		viewer := &http.Client{Jar: jar}

		resp, err := viewer.Get(ts.URL + "/")
		if err != nil {
			t.Fatalf("Viewer %d request failed: %v", i, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Viewer %d status = %d, want %d", i, resp.StatusCode, http.StatusOK)
		}
		bodies[i] = string(body)
	}

	if sessions.Len() != 2 {
		t.Errorf("Sessions = %d, want 2", sessions.Len())
	}
	if catalog.RequestCount() != 2 {
		t.Errorf("Catalog requests = %d, want 2", catalog.RequestCount())
	}
	if catalog.ConditionalCount() != 1 {
		t.Errorf("Conditional requests = %d, want 1", catalog.ConditionalCount())
	}
	if bodies[0] != bodies[1] {
		t.Error("Revalidated page should render the same table")
	}
}

// TestBrowser_StaleResponseDropped holds an older page fetch until a newer
// one has been applied.
func TestBrowser_StaleResponseDropped(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	catalog := testutil.NewMockCatalog(42)
	defer catalog.Close()

	ctrl := view.New(newCatalogClient(t, redisClient, catalog), viewOptions())
	ctx := context.Background()
	waitDone(t, ctrl.Load(ctx))

	release := catalog.Hold(2)
	defer release()

	second, third := 1, 2
	stale := ctrl.OnPage(ctx, pagination.PageEvent{Page: &second})
	waitDone(t, ctrl.OnPage(ctx, pagination.PageEvent{Page: &third}))

	snap := ctrl.Snapshot()
	if snap.Page != 3 || snap.Records[0].ID != "21" {
		t.Fatalf("Expected page 3 starting at 21, got page %d starting at %s", snap.Page, snap.Records[0].ID)
	}

	release()
	waitDone(t, stale)

	snap = ctrl.Snapshot()
	if snap.Page != 3 || snap.Records[0].ID != "21" {
		t.Errorf("Stale page 2 overwrote the table: page %d starting at %s", snap.Page, snap.Records[0].ID)
	}
	if snap.Loading {
		t.Error("Loading should be cleared")
	}
}

// TestBrowser_SpentQuotaKeepsTable verifies a refused request leaves the
// previous records in place without contacting the catalog.
func TestBrowser_SpentQuotaKeepsTable(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	catalog := testutil.NewMockCatalog(42)
	defer catalog.Close()
	catalog.SetQuota(0, 60)

	ctrl := view.New(newCatalogClient(t, redisClient, catalog), viewOptions())
	ctx := context.Background()
	waitDone(t, ctrl.Load(ctx))

	// A second client sees the spent quota through Redis.
	other := view.New(newCatalogClient(t, redisClient, catalog), viewOptions())
	waitDone(t, other.Load(ctx))

	next := 1
	waitDone(t, ctrl.OnPage(ctx, pagination.PageEvent{Page: &next}))

	if catalog.RequestCount() != 1 {
		t.Errorf("Catalog requests = %d, want 1", catalog.RequestCount())
	}

	snap := ctrl.Snapshot()
	if snap.Page != 2 {
		t.Errorf("Page = %d, want 2", snap.Page)
	}
	if len(snap.Records) != 10 || snap.Records[0].ID != "1" {
		t.Error("Previous records should stay visible after a refused request")
	}
	if len(other.Snapshot().Records) != 0 {
		t.Error("Second viewer should have no records while the quota is spent")
	}
}
