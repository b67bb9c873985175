package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"rein/internal/network"
	"rein/internal/protocol"
)

func clientCmd() *cobra.Command {
	var (
		addr   string
		secure bool
	)

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Send JSON frames from stdin to a host",
		Long: `Connects to a host and sends one JSON frame per stdin line, for example

  {"type":"move","dx":10,"dy":0}
  {"type":"combo","keys":["ctrl","c"]}

State changes and frames from the host are printed as they happen.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runClient(ctx, addr, secure, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Host address (host:port)")
	cmd.Flags().BoolVar(&secure, "secure", false, "Use wss://")
	cmd.MarkFlagRequired("addr")

	return cmd
}

// syncWriter serializes output from the connection loop and the input loop
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

func runClient(ctx context.Context, addr string, secure bool, in io.Reader, out io.Writer) error {
	w := &syncWriter{w: out}

	var conn *network.Conn
	conn = network.NewConn(addr, network.Options{
		Secure: secure,
		OnState: func(s network.State) {
			w.printf("state: %s\n", s)
		},
		OnMessage: func(msg protocol.Message) {
			if data, err := protocol.Encode(msg); err == nil {
				w.printf("recv: %s\n", data)
			}
			if cu, ok := msg.(protocol.ConfigUpdated); ok {
				if next, changed := retargetAddr(conn.Addr(), cu.Config.FrontendPort); changed {
					// Retarget posts to the loop this callback runs on
					go conn.Retarget(next)
				}
			}
		},
	})
	conn.Start()
	defer conn.Teardown()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			msg, err := protocol.Decode([]byte(line))
			if err != nil {
				w.printf("invalid: %v\n", err)
				continue
			}
			if !conn.Send(msg) {
				log.Printf("Client: Dropped %s while %s", msg.Type(), conn.State())
			}
		}
	}
}

// retargetAddr swaps the port of addr, reporting whether it changed
func retargetAddr(addr string, port int) (string, bool) {
	host, current, err := net.SplitHostPort(addr)
	if err != nil || port <= 0 {
		return addr, false
	}
	if current == strconv.Itoa(port) {
		return addr, false
	}
	return network.HostAddr(host, port), true
}
