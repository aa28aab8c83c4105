package main

import (
	"context"
	"fmt"
	"log"
	"time"

	rpc "github.com/RidgeA/ib-rpc"
	"github.com/RidgeA/ib-rpc/transport/inmemory"
)

func main() {

	name := "test"
	t := inmemory.New()

	log.SetFlags(log.Lshortfile | log.LstdFlags)

	registry, err := rpc.ForIB()
	if err != nil {
		log.Fatal(err.Error())
	}

	client := rpc.NewClient(name, rpc.SetTransport(t), rpc.SetDispatcher(registry.Build()))

	gateway := rpc.NewGateway(name, rpc.SetTransport(t))

	gateway.RegisterHandler(rpc.MethodHistoricalTicks, func(inv rpc.Invocation, emit rpc.Emitter) error {
		return emit("historical_ticks", inv.Args[0], []float64{101.5, 101.75}, true)
	})

	gateway.RegisterHandler(rpc.MethodContractDetails, func(inv rpc.Invocation, emit rpc.Emitter) error {
		reqID := inv.Args[0]
		for _, exchange := range []string{"SMART", "NASDAQ", "ARCA"} {
			if err := emit("contract_details", reqID, inv.Args[1], exchange); err != nil {
				return err
			}
		}
		return emit(rpc.EventContractDetailEnd, reqID)
	})

	if err := client.Start(); err != nil {
		log.Fatal(err.Error())
	}
	defer client.Shutdown()

	if err := gateway.Start(); err != nil {
		log.Fatal(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ticks, err := client.Call(ctx, rpc.MethodHistoricalTicks, 1, "AAPL")
	if err != nil {
		log.Fatal(err.Error())
	}
	fmt.Printf("ticks: %v\n", ticks)

	details, err := client.CallAll(ctx, rpc.MethodContractDetails, 2, "AAPL")
	if err != nil {
		log.Fatal(err.Error())
	}
	for _, d := range details {
		fmt.Printf("contract details: %v\n", d)
	}
}
