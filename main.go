package main

import (
	"fmt"
	"os"
	"runtime"

	"runner-launcher/internal/cli"
	"runner-launcher/internal/launch"
)

var version = "0.1.0"

// The dispatcher runs on the main goroutine, which must stay on the
// process's main thread for the lifetime of the program.
func init() {
	runtime.LockOSThread()
}

func main() {
	cli.SetVersion(version)
	err := cli.Execute(func(opts cli.WindowOptions) launch.UI {
		app := NewApp(opts.StartHidden, opts.Quit)
		app.version = version
		return app
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
