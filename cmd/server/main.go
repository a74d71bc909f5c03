package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"modbus-tcp-sim/internal/bootstrap"
	"modbus-tcp-sim/internal/eventlog"
	"modbus-tcp-sim/internal/ingest"
	"modbus-tcp-sim/internal/server"
	"modbus-tcp-sim/internal/store"
)

func main() {
	var configPath string
	var host string
	var port int
	var eventDBPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to the register configuration document")
	flag.StringVar(&host, "host", "0.0.0.0", "listen host")
	flag.IntVar(&port, "port", 502, "listen port")
	flag.StringVar(&eventDBPath, "event-db", "", "optional SQLite path for the connection/request event log")
	flag.Parse()

	if err := run(configPath, host, port, eventDBPath); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, host string, port int, eventDBPath string) error {
	doc, err := bootstrap.LoadYAML(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	regs := store.New()
	in := ingest.New(regs)
	if err := bootstrap.Apply(doc, in); err != nil {
		return fmt.Errorf("apply config: %w", err)
	}
	in.Snapshot()

	var obs server.Observer
	var elog *eventlog.Log
	if eventDBPath != "" {
		elog, err = eventlog.Open(eventDBPath)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer elog.Close()
		obs = elog.Observe
	}

	srv := server.New(host, port, regs, obs, nil)
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Printf("modbus simulator listening on %s:%d", host, port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Println("shutting down simulator")
	srv.Stop()
	return nil
}
