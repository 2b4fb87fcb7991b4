package baseurl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthside/client-go/internal/storage"
	"github.com/hearthside/client-go/internal/storage/memory"
)

func waitDiscovered(t *testing.T, r *Resolver) {
	t.Helper()
	select {
	case <-r.Discovered():
	case <-time.After(5 * time.Second):
		t.Fatal("discovery did not finish")
	}
}

func TestResolver_DefaultURL(t *testing.T) {
	tests := []struct {
		name        string
		origin      string
		development bool
		want        string
	}{
		{"development uses same origin", "http://localhost:3000", true, "http://localhost:3000/api"},
		{"production uses backend port", "https://app.example.com", false, "https://app.example.com:5000/api"},
		{"production drops page port", "http://10.0.0.5:8080", false, "http://10.0.0.5:5000/api"},
		{"no origin", "", false, "http://localhost:5000/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(Config{
				Store:            memory.New(),
				Origin:           tt.origin,
				Development:      tt.development,
				DisableDiscovery: true,
			})
			require.NoError(t, err)

			got, err := r.Resolve(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			_, src := r.Current()
			assert.Equal(t, SourceDefault, src)
		})
	}
}

func TestResolver_Priority(t *testing.T) {
	ctx := context.Background()

	t.Run("stored value wins", func(t *testing.T) {
		store := memory.New()
		require.NoError(t, store.Set(ctx, storage.KeyAPIBaseURL, "http://stored/api"))
		r, err := New(Config{Store: store, Override: "http://override/api", DisableDiscovery: true})
		require.NoError(t, err)

		got, _ := r.Resolve(ctx)
		assert.Equal(t, "http://stored/api", got)
	})

	t.Run("override beats default", func(t *testing.T) {
		store := memory.New()
		r, err := New(Config{Store: store, Override: "http://override/api/", DisableDiscovery: true})
		require.NoError(t, err)

		got, _ := r.Resolve(ctx)
		assert.Equal(t, "http://override/api", got)

		stored, err := store.Get(ctx, storage.KeyAPIBaseURL)
		require.NoError(t, err)
		assert.Equal(t, "http://override/api", stored)
	})
}

func TestResolver_RequiresStore(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestResolver_IdempotentWithSingleProbe(t *testing.T) {
	var probes atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ConfigPath, r.URL.Path)
		probes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"apiBaseUrl":"` + server.URL + `/api"}}`))
	}))
	defer server.Close()

	r, err := New(Config{Store: memory.New(), Origin: server.URL, Development: true})
	require.NoError(t, err)

	ctx := context.Background()
	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Resolve(ctx)
		}(i)
	}
	wg.Wait()
	waitDiscovered(t, r)

	for _, got := range results {
		assert.Equal(t, server.URL+"/api", got)
	}
	again, _ := r.Resolve(ctx)
	assert.Equal(t, server.URL+"/api", again)
	assert.Equal(t, int32(1), probes.Load())
}

func TestResolver_AdoptsDiscoveredURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"apiBaseUrl":"https://api.example.com/v2/"}}`))
	}))
	defer server.Close()

	store := memory.New()
	r, err := New(Config{Store: store, Origin: server.URL, Development: true})
	require.NoError(t, err)

	ctx := context.Background()
	first, _ := r.Resolve(ctx)
	assert.Equal(t, server.URL+"/api", first)
	waitDiscovered(t, r)

	cur, src := r.Current()
	assert.Equal(t, "https://api.example.com/v2", cur)
	assert.Equal(t, SourceDiscovered, src)

	stored, err := store.Get(ctx, storage.KeyAPIBaseURL)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v2", stored)
}

func TestResolver_DiscoveryFailureKeepsValue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r, err := New(Config{Store: memory.New(), Origin: server.URL, Development: true})
	require.NoError(t, err)

	first, _ := r.Resolve(context.Background())
	waitDiscovered(t, r)

	cur, src := r.Current()
	assert.Equal(t, first, cur)
	assert.Equal(t, SourceDefault, src)
}

func TestResolver_DiscoveryTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	r, err := New(Config{
		Store:        memory.New(),
		Origin:       server.URL,
		Development:  true,
		ProbeTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	first, _ := r.Resolve(context.Background())
	waitDiscovered(t, r)

	cur, _ := r.Current()
	assert.Equal(t, first, cur)
}

func TestResolver_CloseStopsDiscovery(t *testing.T) {
	probing := make(chan struct{})
	canceled := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(probing)
		select {
		case <-r.Context().Done():
			close(canceled)
		case <-time.After(5 * time.Second):
			w.Write([]byte(`{"data":{"apiBaseUrl":"http://elsewhere/api"}}`))
		}
	}))
	defer server.Close()

	store := memory.New()
	r, err := New(Config{Store: store, Origin: server.URL, Development: true})
	require.NoError(t, err)

	first, _ := r.Resolve(context.Background())
	<-probing
	r.Close()

	select {
	case <-r.Discovered():
	default:
		t.Fatal("Close returned before discovery finished")
	}
	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("probe request was not canceled")
	}

	cur, src := r.Current()
	assert.Equal(t, first, cur)
	assert.Equal(t, SourceDefault, src)
	stored, err := store.Get(context.Background(), storage.KeyAPIBaseURL)
	require.NoError(t, err)
	assert.Equal(t, first, stored)
}

func TestResolver_CloseBeforeResolve(t *testing.T) {
	var probes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
	}))
	defer server.Close()

	r, err := New(Config{Store: memory.New(), Origin: server.URL, Development: true})
	require.NoError(t, err)
	r.Close()

	got, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/api", got)
	waitDiscovered(t, r)
	assert.Equal(t, int32(0), probes.Load())
}

func TestResolver_OverrideSkipsDiscovery(t *testing.T) {
	var probes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		w.Write([]byte(`{"data":{"apiBaseUrl":"http://elsewhere/api"}}`))
	}))
	defer server.Close()

	r, err := New(Config{Store: memory.New(), Override: server.URL + "/api"})
	require.NoError(t, err)

	got, _ := r.Resolve(context.Background())
	waitDiscovered(t, r)

	assert.Equal(t, server.URL+"/api", got)
	assert.Equal(t, int32(0), probes.Load())
}

func TestResolver_Forget(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, storage.KeyAPIBaseURL, "http://stale/api"))

	r, err := New(Config{Store: store, Origin: "http://localhost:3000", Development: true, DisableDiscovery: true})
	require.NoError(t, err)

	got, _ := r.Resolve(ctx)
	assert.Equal(t, "http://stale/api", got)

	require.NoError(t, r.Forget(ctx))
	got, _ = r.Resolve(ctx)
	assert.Equal(t, "http://localhost:3000/api", got)
}
