// Package evnet provides callback-driven TCP and UDP primitives built on a
// shared, bounded worker pool.
//
// Features:
//   - Worker pool: NewWorkerPool runs a fixed set of workers draining a
//     shared task queue; Submit returns a Result handle for the eventual
//     value or error, and Shutdown waits for every accepted task to finish.
//   - Connection registry: Registry is a mutex-guarded mapping from
//     connection id to peer address with point-in-time snapshots, shared by
//     the server components.
//   - TCP: tcp.Server accepts connections, registers them, and runs each
//     connection's receive loop on the pool; tcp.Client manages a single
//     outbound connection with a background receive loop. Both report
//     message, connect, and disconnect events through callbacks.
//   - UDP: udp.Server dispatches each datagram's handling onto the pool;
//     udp.Client binds a socket and can toggle receiving independently of
//     the socket's lifetime.
//
// Callbacks are always invoked from goroutines owned by the core, never
// while an internal lock is held. Received chunks are delivered as opaque
// byte slices: no framing, delimiting, or encoding is imposed, and a chunk
// is not guaranteed to align with one logical send on the peer's side.
//
// Basic server example:
//
//	srv := tcp.NewServer("127.0.0.1", 8888, nil)
//	srv.OnMessage(func(id evnet.ConnID, data []byte) {
//	    _ = srv.SendTo(id, append([]byte("echo: "), data...))
//	})
//	if err := srv.Start(); err != nil {
//	    // handle error
//	}
//	defer srv.Stop()
//
// Basic client example:
//
//	cli := tcp.NewClient(nil)
//	cli.OnMessage(func(data []byte) {
//	    fmt.Println(string(data))
//	})
//	if err := cli.Connect("127.0.0.1", 8888); err != nil {
//	    // handle error
//	}
//	defer cli.Disconnect()
//	_ = cli.Send([]byte("hello"))
package evnet
