package main

import (
	"fmt"
	"log"
	"time"

	rpc "github.com/RidgeA/ib-rpc"
	"github.com/RidgeA/ib-rpc/transport/inmemory"
)

func main() {
	var name = "test"

	log.SetFlags(log.Lshortfile | log.LstdFlags)

	registry, err := rpc.ForIB()
	if err != nil {
		log.Fatal(err.Error())
	}

	duplex := rpc.NewDuplex(name,
		rpc.SetTransport(inmemory.New()),
		rpc.SetDispatcher(registry.Build()),
	)

	duplex.RegisterHandler(rpc.MethodPositions, func(inv rpc.Invocation, emit rpc.Emitter) error {
		positions := []struct {
			symbol string
			qty    int
		}{{"AAPL", 100}, {"MSFT", -50}, {"IBM", 10}}
		for _, p := range positions {
			if err := emit("position", "DU12345", p.symbol, p.qty, 150.25); err != nil {
				return err
			}
		}
		return emit("position_end")
	})

	if err := duplex.Start(); err != nil {
		log.Fatal(err.Error())
	}
	defer duplex.Shutdown()

	done := make(chan struct{})
	err = duplex.Stream(rpc.MethodPositions, func(ev rpc.Event) {
		if ev.Name == "position_end" {
			close(done)
			return
		}
		fmt.Printf("%s: %v\n", ev.Name, ev.Args)
	}, "DU12345")
	if err != nil {
		log.Fatal(err.Error())
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		log.Fatal("positions did not end")
	}
}
