// Copyright 2024 Jigsaw Operations LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command socksvmess-proxy runs a SOCKS5 ingress proxy that forwards each
// CONNECT either directly or through a single configured VMess server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/halcyonnet/vsocks/internal/outbound"
	"github.com/halcyonnet/vsocks/internal/proxylog"
	"github.com/halcyonnet/vsocks/internal/socks5"
	"github.com/halcyonnet/vsocks/internal/vmess"
	"github.com/halcyonnet/vsocks/transport"
)

func parseVMessFlag(raw string) (*outbound.ServerEndpoint, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing -vmess value: %w", err)
	}
	if u.Scheme != "vmess" {
		return nil, fmt.Errorf("-vmess value must use the vmess:// scheme, got %q", u.Scheme)
	}
	if u.User == nil || u.User.Username() == "" {
		return nil, fmt.Errorf("-vmess value must include a user id, e.g. vmess://<user-id>@host:port")
	}
	userID, err := vmess.ParseUserID(u.User.Username())
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("-vmess value must include a host:port")
	}
	return &outbound.ServerEndpoint{Address: u.Host, UserID: userID}, nil
}

func run() error {
	listenFlag := flag.String("listen", "127.0.0.1:1080", "Address to listen for SOCKS5 connections on")
	verboseFlag := flag.Bool("v", false, "Enable debug logging")
	vmessFlag := flag.String("vmess", "", "VMess upstream as vmess://<user-id>@host:port; when unset, connections are dialed directly")
	flag.Parse()

	proxylog.Init(os.Stderr, *verboseFlag)

	vmessEndpoint, err := parseVMessFlag(*vmessFlag)
	if err != nil {
		return fmt.Errorf("invalid -vmess flag: %w", err)
	}

	factory := &outbound.Factory{
		Direct: &transport.HappyEyeballsStreamDialer{},
		VMess:  vmessEndpoint,
	}
	handler := &socks5.Handler{Connector: factory}

	listener, err := net.Listen("tcp", *listenFlag)
	if err != nil {
		return fmt.Errorf("binding %s: %w", *listenFlag, err)
	}
	defer listener.Close()
	slog.Info("listening", "addr", listener.Addr().String(), "mode", outboundModeString(vmessEndpoint))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		tcpConn, ok := conn.(*net.TCPConn)
		if !ok {
			conn.Close()
			continue
		}
		peer := tcpConn.RemoteAddr()
		slog.Debug("accepted connection", "peer", peer)
		go func() {
			if err := socks5.Dispatch(ctx, tcpConn, handler); err != nil {
				slog.Warn("connection closed with error", "peer", peer, "error", err)
			} else {
				slog.Debug("connection closed", "peer", peer)
			}
		}()
	}
}

func outboundModeString(ep *outbound.ServerEndpoint) string {
	if ep == nil {
		return "direct"
	}
	return "vmess:" + ep.Address
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
