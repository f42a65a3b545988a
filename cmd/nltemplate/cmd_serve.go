package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vilterp/nltemplate/pkg/server"
	"github.com/vilterp/nltemplate/pkg/session"
	"github.com/vilterp/nltemplate/pkg/template"
)

var (
	serveHost string
	servePort int
)

func runServe(cmd *cobra.Command, args []string) error {
	metrics := template.NewMetrics()
	var store *template.Store
	if storePath != "" {
		var err error
		store, err = template.OpenStore(storePath, metrics)
		if err != nil {
			return err
		}
		log.Printf("opened template store: %s\n", storePath)
	}

	srv := server.NewServer(serveHost, servePort, store, metrics, session.WithPolicy(metadataPolicy()))

	// graceful shutdown on Ctrl-C
	ctrlCChan := make(chan os.Signal, 1)
	signal.Notify(ctrlCChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlCChan
		if err := srv.Close(); err != nil {
			log.Println("error closing:", err)
		}
	}()

	err := srv.ListenAndServe()
	if store != nil {
		log.Println("closing template store...")
		if closeErr := store.Close(); closeErr != nil {
			log.Println("error closing store:", closeErr)
		}
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
