package main

import (
	"log"
)

func main() {
	srv, err := NewServer()
	if err != nil {
		log.Fatalf("server init failed: %v", err)
	}
	srv.Run()
}
