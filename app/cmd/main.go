package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"kbchat/app/server"
	"kbchat/config"
)

func main() {
	// Missing .env is fine when the environment is set by the container.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal(err)
	}

	s := server.New(cfg)
	go func() {
		if err := s.Run(context.Background()); err != nil {
			log.Fatal(err)
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	log.Println("received shutdown signal, shutting down server...")
	s.Stop()
}
