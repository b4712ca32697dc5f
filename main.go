package main

import (
	"os"
	"runtime/debug"

	"paychan/cmd"
	"paychan/logx"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			_ = logx.Errorf("ENGINE CRASHED: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}
