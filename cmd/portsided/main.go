package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/portsidehq/portside/internal/portsided"
)

func main() {
	if err := portsided.Main(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
}
