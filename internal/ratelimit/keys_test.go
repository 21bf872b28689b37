package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatchInflightKeyNamespacesByQueue(t *testing.T) {
	require.Equal(t, "imageforge:queue:orders:dispatch_inflight", DispatchInflightKey("orders"))
	require.NotEqual(t, DispatchInflightKey("a"), DispatchInflightKey("b"))
}

func TestDispatchRateKeyNamespacesBySecond(t *testing.T) {
	k1 := DispatchRateKey("orders", 100)
	k2 := DispatchRateKey("orders", 101)
	require.Equal(t, "imageforge:queue:orders:dispatch_rate:100", k1)
	require.NotEqual(t, k1, k2)
}
