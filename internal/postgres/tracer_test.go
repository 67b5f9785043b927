package postgres

import (
	"context"
	"testing"
	"time"
)

func TestShortenFuncName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full path", "github.com/linnemanlabs/sift/internal/feedback/pgstore.(*Store).GetItem", "(*Store).GetItem"},
		{"already short", "(*Store).GetItem", "GetItem"},
		{"empty string", "", ""},
		{"no dots", "main", "main"},
		{"function", "burst.(*Manager).Sweep", "(*Manager).Sweep"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := shortenFuncName(tt.in); got != tt.want {
				t.Errorf("shortenFuncName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCompactSQL(t *testing.T) {
	t.Parallel()

	in := "SELECT id\n\t\tFROM feedback_items\n   WHERE id = $1"
	want := "SELECT id FROM feedback_items WHERE id = $1"
	if got := compactSQL(in); got != want {
		t.Errorf("compactSQL = %q, want %q", got, want)
	}
}

func TestOriginFromContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"plain", context.Background(), "internal"},
		{"http", WithHTTPMethod(context.Background(), "POST"), "POST"},
		{"empty method", WithHTTPMethod(context.Background(), ""), "internal"},
		{"sweep", WithSweep(context.Background(), "bursts"), "sweep:bursts"},
		{"sweep wins", WithSweep(WithHTTPMethod(context.Background(), "GET"), "snoozes"), "sweep:snoozes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := originFromContext(tt.ctx); got != tt.want {
				t.Errorf("originFromContext = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRouteFromContext_NoChi(t *testing.T) {
	t.Parallel()

	if got := routeFromContext(context.Background()); got != "none" {
		t.Errorf("routeFromContext = %q, want none", got)
	}
}

func TestSetQueryObserver(t *testing.T) {
	// mutates a package global; not parallel
	defer SetQueryObserver(nil)

	called := false
	SetQueryObserver(QueryObserverFunc(func(_ context.Context, _, _, _ string, _ time.Duration) {
		called = true
	}))
	got := getQueryObserver()
	if got == nil {
		t.Fatal("expected non-nil observer after Set")
	}
	got.ObserveQuery(context.Background(), "GET", "/api/v1/focus", "ok", time.Millisecond)
	if !called {
		t.Error("observer was not called")
	}

	SetQueryObserver(nil)
	if got := getQueryObserver(); got != nil {
		t.Errorf("expected nil observer after Set(nil), got %v", got)
	}
}
