// Command tcpclient connects to a TCP server and relays stdin lines to it.
// With -n it instead fires a burst of concurrent numbered messages, which
// is handy for exercising a server's worker pool.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/evnet-io/evnet"
	"github.com/evnet-io/evnet/tcp"
)

func main() {
	host := flag.String("host", "127.0.0.1", "server address")
	port := flag.Uint("port", 8888, "server port")
	burst := flag.Int("n", 0, "send n concurrent messages and exit")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	name := "client-" + uuid.NewString()[:8]

	cli := tcp.NewClient(&tcp.ClientConfig{
		Logger: evnet.NewZerologLogger(logger),
	})

	cli.OnMessage(func(data []byte) {
		fmt.Printf("<< %s\n", string(data))
	})
	cli.OnState(func(connected bool) {
		if connected {
			fmt.Printf("connected as %s\n", name)
		} else {
			fmt.Println("connection lost")
		}
	})

	if err := cli.Connect(*host, uint16(*port)); err != nil {
		logger.Fatal().Err(err).Msg("connect")
	}
	defer cli.Disconnect()

	if *burst > 0 {
		eg := errgroup.Group{}
		eg.SetLimit(16)
		for i := 0; i < *burst; i++ {
			msg := fmt.Sprintf("%s #%d", name, i)
			eg.Go(func() error {
				return cli.Send([]byte(msg))
			})
		}
		if err := eg.Wait(); err != nil {
			logger.Error().Err(err).Msg("burst send")
		}
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cli.Disconnect()
		os.Exit(0)
	}()

	fmt.Println("type messages, /quit to exit")

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "/quit" {
			return
		}
		if line == "" {
			continue
		}
		if err := cli.Send([]byte(line)); err != nil {
			fmt.Printf("send failed: %v\n", err)
		}
	}
}
