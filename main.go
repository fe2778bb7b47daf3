package main

import (
	"github.com/ColonelBlimp/pskrtty/cmd"
	"github.com/ColonelBlimp/pskrtty/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
