// Command udpclient sends stdin lines as datagrams to a UDP server and
// prints any replies received on the same socket.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/evnet-io/evnet"
	"github.com/evnet-io/evnet/udp"
)

func main() {
	host := flag.String("host", "127.0.0.1", "server address")
	port := flag.Uint("port", 9999, "server port")
	localPort := flag.Uint("local-port", 0, "local port to bind, 0 for ephemeral")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	name := "udp-" + uuid.NewString()[:8]

	cli := udp.NewClient(&udp.ClientConfig{
		Logger: evnet.NewZerologLogger(logger),
	})

	cli.OnMessage(func(remote *net.UDPAddr, data []byte) {
		fmt.Printf("<< [%s] %s\n", remote, string(data))
	})

	if err := cli.Open(uint16(*localPort)); err != nil {
		logger.Fatal().Err(err).Msg("open")
	}
	defer cli.Close()

	if err := cli.StartReceiving(); err != nil {
		logger.Fatal().Err(err).Msg("start receiving")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cli.Close()
		os.Exit(0)
	}()

	fmt.Printf("%s bound to %s, sending to %s:%d, /quit to exit\n",
		name, cli.LocalAddr(), *host, *port)

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "/quit" {
			return
		}
		if line == "" {
			continue
		}
		if err := cli.SendTo(*host, uint16(*port), []byte(line)); err != nil {
			fmt.Printf("send failed: %v\n", err)
		}
	}
}
