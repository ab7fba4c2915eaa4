// Package main provides a one-shot utility for pair-grant key generation.
//
// It emits the asymmetric keypair used to verify pair grants at the API edge.
package main

import (
	"os"

	"github.com/louisbranch/duet.space/internal/platform/config"
	"github.com/louisbranch/duet.space/internal/tools/pairgrant"
)

func main() {
	if err := pairgrant.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate pair grant key: %v", err)
	}
}
