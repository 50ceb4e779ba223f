// Command pyqctl is the command line portal for the PYQ upload service and the chat service.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	if err := rootCMD.Execute(); err != nil {
		os.Exit(1)
	}
}
