package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rein/internal/network"
	"rein/internal/protocol"
)

func discoverCmd() *cobra.Command {
	var (
		addr    string
		secure  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Ask a host for its LAN address",
		RunE: func(cmd *cobra.Command, args []string) error {
			ip, err := discover(cmd.Context(), addr, secure, timeout)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ip)
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Host address (host:port)")
	cmd.Flags().BoolVar(&secure, "secure", false, "Use wss://")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "Give up after this long")
	cmd.MarkFlagRequired("addr")

	return cmd
}

// discover sends get-ip on every connect until the host answers
func discover(ctx context.Context, addr string, secure bool, timeout time.Duration) (string, error) {
	connected := make(chan struct{}, 1)
	answer := make(chan string, 1)

	conn := network.NewConn(addr, network.Options{
		Secure: secure,
		OnState: func(s network.State) {
			if s == network.Connected {
				select {
				case connected <- struct{}{}:
				default:
				}
			}
		},
		OnMessage: func(msg protocol.Message) {
			if ip, ok := msg.(protocol.ServerIP); ok {
				select {
				case answer <- ip.IP:
				default:
				}
			}
		},
	})
	conn.Start()
	defer conn.Teardown()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		select {
		case <-connected:
			conn.Send(protocol.GetIP{})
		case ip := <-answer:
			return ip, nil
		case <-ctx.Done():
			return "", fmt.Errorf("no answer from %s within %s: %w", addr, timeout, ctx.Err())
		}
	}
}
