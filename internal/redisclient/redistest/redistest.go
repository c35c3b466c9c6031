// Package redistest runs the Redis client against an in-process server
package redistest

import (
	"testing"

	"github.com/MohamedElsayed002/frontend-carwash/internal/redisclient"

	"github.com/alicebob/miniredis/v2"
)

// New starts miniredis for the lifetime of t and returns a connected client
func New(t testing.TB) (*redisclient.Client, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client, err := redisclient.NewClient(srv.Addr(), "", 0)
	if err != nil {
		t.Fatalf("failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, srv
}
