// Command client connects to a PostureServer status publisher and prints every
// label it receives.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

const defaultAddr = "127.0.0.1:5000"

func main() {
	addr := flag.String("addr", defaultAddr, "status publisher address")
	timeout := flag.Duration("timeout", 5*time.Second, "dial timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := watch(ctx, *addr, *timeout, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "client:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "server closed the connection after %d lines\n", n)
}

// watch prints each received line prefixed with the local receive time and
// returns the number of lines once the server closes or ctx ends.
func watch(ctx context.Context, addr string, timeout time.Duration, out io.Writer) (int, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	n := 0
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		n++
		fmt.Fprintf(out, "%s %s\n", time.Now().Format("15:04:05.000"), strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return n, fmt.Errorf("read: %w", err)
	}
	return n, nil
}
