package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// startTestNATS runs an embedded server on a free port and returns its URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := startEmbeddedNATS(-1)
	require.NoError(t, err)
	t.Cleanup(func() {
		srv.Shutdown()
		srv.WaitForShutdown()
	})
	return srv.ClientURL()
}
