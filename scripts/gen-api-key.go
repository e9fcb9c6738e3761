package main

import (
	"fmt"
	"os"

	"github.com/click2call/relay-server-go/internal/util"
)

func main() {
	key, err := util.GenerateToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(key)
}
