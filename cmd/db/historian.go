// cmd/db/historian.go runs the asynchronous historian service that pops
// finished-match records from the Redis queue and archives them in Postgres.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/marousta/njmpu-api/internal/historian"
)

func main() {
	h := historian.New()
	go h.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	h.Stop()
	log.Println("Historian shutdown complete.")
}
