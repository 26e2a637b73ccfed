package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_PrintsLines(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()
	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("De pie\nSentado\nNo detectada\n"))
		_ = conn.Close()
	}()

	var out bytes.Buffer
	n, err := watch(context.Background(), lis.Addr().String(), time.Second, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], " De pie"))
	assert.True(t, strings.HasSuffix(lines[2], " No detectada"))
}

func TestWatch_DialError(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	_, err = watch(context.Background(), addr, time.Second, &bytes.Buffer{})
	assert.ErrorContains(t, err, "dial")
}

func TestWatch_Cancel(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()
	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("De pie\n"))
		time.Sleep(2 * time.Second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	n, err := watch(ctx, lis.Addr().String(), time.Second, &bytes.Buffer{})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Less(t, time.Since(start), time.Second)
}
