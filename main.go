// file: main.go
// version: 1.0.0
// guid: 5a6b7c8d-9e0f-1a2b-3c4d-5e6f7a8b9c0d

package main

import (
	"fmt"
	"os"

	"github.com/TheRealSavi/iOpenPod/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
