package client

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminateIsIdempotentAndWarnsOnRepeat(t *testing.T) {
	var buf bytes.Buffer
	c := &Client{log: log.New(&buf)}

	c.Terminate()
	select {
	case <-c.HaltCh():
	default:
		t.Fatal("HaltCh not closed after first Terminate")
	}
	require.Empty(t, buf.String(), "first Terminate must not log anything")

	c.Terminate()
	assert.Contains(t, buf.String(), "repeated call")

	c.Terminate()
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("repeated call")))
}
