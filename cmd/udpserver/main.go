// Command udpserver runs a UDP echo server: each datagram is answered with
// an "echo: " reply to the sender.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/evnet-io/evnet"
	"github.com/evnet-io/evnet/udp"
)

func main() {
	ip := flag.String("ip", "0.0.0.0", "address to bind")
	port := flag.Uint("port", 9999, "port to bind")
	workers := flag.Int("workers", 4, "worker pool size")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	srv := udp.NewServer(*ip, uint16(*port), &udp.ServerConfig{
		PoolSize: *workers,
		Logger:   evnet.NewZerologLogger(logger),
	})

	srv.OnMessage(func(remote *net.UDPAddr, data []byte) {
		fmt.Printf("[%s] %s\n", remote, string(data))
		reply := append([]byte("echo: "), data...)
		if err := srv.SendTo(remote.IP.String(), uint16(remote.Port), reply); err != nil {
			logger.Warn().Err(err).Msg("reply")
		}
	})

	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start server")
	}

	fmt.Printf("listening on %s:%d, Ctrl+C to stop\n", *ip, srv.Port())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("signal received, shutting down")
	srv.Stop()
}
