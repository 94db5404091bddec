// Command tcpserver runs an interactive TCP server console. Received
// messages are printed as they arrive; '/send <id> <msg>' sends to one
// client, '/list' prints the connected clients, '/quit' stops the server,
// and any other line is broadcast to every client.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/evnet-io/evnet"
	"github.com/evnet-io/evnet/tcp"
)

func main() {
	ip := flag.String("ip", "0.0.0.0", "address to bind")
	port := flag.Uint("port", 8888, "port to listen on")
	workers := flag.Int("workers", 8, "worker pool size")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	srv := tcp.NewServer(*ip, uint16(*port), &tcp.ServerConfig{
		PoolSize: *workers,
		Logger:   evnet.NewZerologLogger(logger),
	})

	srv.OnConnect(func(id evnet.ConnID, addr string) {
		fmt.Printf("[+] %s connected (id=%d)\n", addr, id)
	})
	srv.OnDisconnect(func(id evnet.ConnID) {
		fmt.Printf("[-] id=%d disconnected\n", id)
	})
	srv.OnMessage(func(id evnet.ConnID, data []byte) {
		fmt.Printf("[%d] %s\n", id, string(data))
	})

	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start server")
	}
	defer srv.Stop()

	fmt.Printf("listening on %s:%d (/send <id> <msg>, /list, /quit)\n", *ip, srv.Port())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("signal received, shutting down")
		srv.Stop()
		os.Exit(0)
	}()

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case line == "/quit":
			return
		case line == "/list":
			clients := srv.Clients()
			fmt.Printf("%d client(s):\n", len(clients))
			for id, addr := range clients {
				fmt.Printf("  %d -> %s\n", id, addr)
			}
		case strings.HasPrefix(line, "/send "):
			fields := strings.SplitN(strings.TrimPrefix(line, "/send "), " ", 2)
			if len(fields) != 2 {
				fmt.Println("usage: /send <id> <message>")
				continue
			}
			id, err := strconv.ParseUint(fields[0], 10, 64)
			if err != nil {
				fmt.Println("usage: /send <id> <message>")
				continue
			}
			if err := srv.SendTo(evnet.ConnID(id), []byte(fields[1])); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		default:
			srv.Broadcast([]byte(line))
		}
	}
}
