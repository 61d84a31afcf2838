package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"optimus/internal/ipc"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: optimus-ctl [--socket path] trigger | lang <en|hi|gu> | status")
	os.Exit(2)
}

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Daemon control socket")
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		usage()
	}

	msg := ipc.ControlMessage{Cmd: args[0]}
	switch msg.Cmd {
	case ipc.CmdTrigger, ipc.CmdStatus:
	case ipc.CmdLang:
		if len(args) != 2 {
			usage()
		}
		msg.Arg = args[1]
	default:
		usage()
	}

	reply, err := ipc.Send(*socket, msg)
	if err != nil {
		fmt.Println("optimus-daemon not running:", err)
		os.Exit(1)
	}

	fmt.Println(reply.Message)
	if !reply.OK {
		os.Exit(1)
	}
}
