// Command cvfemasm assembles control-volume finite element systems from the
// command line.
package main

import (
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := Root.Execute(); err != nil {
		log.Fatal(err)
	}
}
