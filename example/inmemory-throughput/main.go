package main

import (
	"context"
	"fmt"
	"log"
	"sync"
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
		time.Sleep(500 * time.Millisecond)
		fmt.Printf("%s: gateway answering %v\n", time.Now().Format("15:04:05.999999"), inv.Args[0])
		return emit("historical_ticks", inv.Args[0], []float64{100})
	}, rpc.SetHandlerThroughput(2))

	if err := client.Start(); err != nil {
		log.Fatal(err.Error())
	}
	defer client.Shutdown()

	if err := gateway.Start(); err != nil {
		log.Fatal(err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(reqID int) {
			defer wg.Done()
			if _, err := client.Call(ctx, rpc.MethodHistoricalTicks, reqID, "AAPL"); err != nil {
				log.Printf("request %d: %s", reqID, err.Error())
			}
		}(i)
	}
	wg.Wait()
}
