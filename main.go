package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

const (
	Version = "v0.1.0"
	License = "Apache-2.0"
)

// Globals are flags shared by every command.
type Globals struct {
	Config   string `short:"c" type:"path" help:"Settings file (default: ~/.config/gdrivechat/settings.toml)"`
	LogLevel string `help:"Override the configured log level (debug, info, warn, error)"`
}

type CLI struct {
	Globals

	Serve    ServeCmd    `cmd:"" help:"Run the HTTP and websocket API"`
	Chat     ChatCmd     `cmd:"" default:"1" help:"Open the terminal chat (default)"`
	Ask      AskCmd      `cmd:"" help:"Send one message and print the reply"`
	Prompts  PromptsCmd  `cmd:"" help:"List quick prompts or run one"`
	Tools    ToolsCmd    `cmd:"" help:"List the tools the Drive tool server offers"`
	Diagnose DiagnoseCmd `cmd:"" help:"Check runtimes, launch strategies and recent launches"`
	Init     InitCmd     `cmd:"" help:"Write a default settings file"`
	Install  InstallCmd  `cmd:"" help:"Install the Drive tool server into the data directory"`
	Drive    DriveCmd    `cmd:"" help:"Run Drive operations against the Drive API directly"`
	Version  VersionCmd  `cmd:"" help:"Print the version"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("gdrivechat"),
		kong.Description("Chat with your Google Drive"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))

	if err := kctx.Run(&cli.Globals); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
