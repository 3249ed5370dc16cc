// Package rpc broadcasts the engine's step clock over the network so light
// rigs and external visualizers can follow a beat. The link is one way and
// lossy: a frame that cannot be delivered right now is dropped.
package rpc

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"net/rpc"
)

// Port is the TCP port the clock travels over.
const Port = 31337

// ClockFrame is one tick of the transport clock.
type ClockFrame struct {
	Step    int
	Bar     int
	Pattern int
	Tempo   float64
}

type ClockServer struct {
	channel chan ClockFrame
}

// Sync receives one frame from a remote sender. A frame arriving while the
// previous one is still unread is dropped; followers only ever care about
// the latest tick.
func (s *ClockServer) Sync(frame ClockFrame, reply *int) error {
	select {
	case s.channel <- frame:
	default:
	}
	return nil
}

// Receiver starts listening for clock frames and returns the channel they
// arrive on.
func Receiver() (<-chan ClockFrame, error) {
	c := make(chan ClockFrame, 1)
	server := &ClockServer{channel: c}
	if err := rpc.Register(server); err != nil {
		return nil, fmt.Errorf("rpc.Register failed: %v", err)
	}
	rpc.HandleHTTP()
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", Port))
	if err != nil {
		return nil, fmt.Errorf("net.Listen failed: %v", err)
	}
	go func() {
		defer close(c)
		http.Serve(l, nil)
	}()
	return c, nil
}

// Sender connects to a receiver and returns a channel to feed frames into.
// Closing the channel, or the first delivery error, ends the connection.
func Sender(serverAddress string) (chan<- ClockFrame, error) {
	c := make(chan ClockFrame, 256)
	client, err := rpc.DialHTTP("tcp", fmt.Sprintf("%s:%d", serverAddress, Port))
	if err != nil {
		return nil, fmt.Errorf("rpc.DialHTTP failed: %v", err)
	}
	go func() {
		defer client.Close()
		for frame := range c {
			var reply int
			if err := client.Call("ClockServer.Sync", frame, &reply); err != nil {
				log.Printf("clock sync: %v", err)
				return
			}
		}
	}()
	return c, nil
}
