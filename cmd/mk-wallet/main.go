package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/blinklabs-io/tidepool/internal/wallet"
)

var cmdlineFlags struct {
	secret string
}

func main() {
	flag.StringVar(&cmdlineFlags.secret, "secret", "", "mnemonic or hex seed to derive the address from instead of generating a new wallet")
	flag.Parse()

	if cmdlineFlags.secret != "" {
		w, err := wallet.FromSecret(cmdlineFlags.secret)
		if err != nil {
			fmt.Printf("ERROR: failed to load wallet: %s\n", err)
			os.Exit(1)
		}
		fmt.Printf("Address: %s\n", w.Address())
		return
	}

	w, err := wallet.New()
	if err != nil {
		fmt.Printf("ERROR: failed to generate wallet: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("Mnemonic: %s\n", w.Mnemonic)
	fmt.Printf("Address:  %s\n", w.Address())
}
