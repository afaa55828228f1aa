package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"gdrivechat/chat"
	"gdrivechat/config"
	"gdrivechat/mcp"
	"gdrivechat/server"
	"gdrivechat/ui"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type ServeCmd struct {
	Addr string `help:"Listen address (default from settings)"`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(ctx, g, appOptions{connect: true})
	if err != nil {
		return err
	}
	defer a.Close()

	opts := server.Options{
		Chat:            a.chat,
		Searcher:        a.search,
		Users:           a.store,
		DriveConnected:  a.direct != nil,
		UserHeader:      a.cfg.Server.UserHeader,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout.Std(),
		Logger:          a.logger,
	}
	// Leave Tools as a nil interface when the tool server is disabled.
	if a.connector != nil {
		opts.Tools = a.connector
	}

	addr := c.Addr
	if addr == "" {
		addr = a.cfg.Server.Addr()
	}

	return server.New(opts).Run(ctx, addr)
}

type ChatCmd struct {
	User string `help:"User id for the conversation (default: OS user)"`
}

func (c *ChatCmd) Run(ctx context.Context, g *Globals) error {
	// The window owns the terminal, so console logs are dropped unless
	// GDRIVECHAT_DEBUG sends them to debug.log.
	a, err := newApp(ctx, g, appOptions{connect: true, logOutput: io.Discard})
	if err != nil {
		return err
	}
	defer a.Close()

	return ui.Run(ctx, ui.Options{
		Chat:     a.chat,
		Searcher: a.search,
		UserID:   a.userID(c.User),
		Keys:     a.cfg.Keys,
		Status: func() string {
			return "mcp: " + a.toolState()
		},
	})
}

type AskCmd struct {
	Message []string `arg:"" help:"Message to send"`
	User    string   `help:"User id (default: OS user)"`
	JSON    bool     `help:"Print the full response as JSON"`
}

func (c *AskCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(ctx, g, appOptions{connect: true})
	if err != nil {
		return err
	}
	defer a.Close()

	return ask(ctx, a, a.userID(c.User), strings.Join(c.Message, " "), c.JSON)
}

func ask(ctx context.Context, a *app, userID, message string, asJSON bool) error {
	resp := a.chat.ProcessMessage(ctx, userID, message)
	if asJSON {
		return printJSON(os.Stdout, resp)
	}
	fmt.Println(resp.Content)
	return nil
}

type PromptsCmd struct {
	Prompt string `arg:"" optional:"" help:"Prompt id or title to run"`
	User   string `help:"User id (default: OS user)"`
}

func (c *PromptsCmd) Run(ctx context.Context, g *Globals) error {
	if c.Prompt == "" {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tPROMPT")
		for _, p := range chat.QuickPrompts() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Title, p.Prompt)
		}
		return w.Flush()
	}

	p, ok := chat.FindQuickPrompt(c.Prompt)
	if !ok {
		return fmt.Errorf("no quick prompt matches %q", c.Prompt)
	}

	a, err := newApp(ctx, g, appOptions{connect: true})
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(os.Stderr, "> %s\n\n", p.Prompt)
	return ask(ctx, a, a.userID(c.User), p.Prompt, false)
}

type ToolsCmd struct {
	JSON bool `help:"Print as JSON"`
}

func (c *ToolsCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(ctx, g, appOptions{connect: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.connector == nil || !a.connector.Connected() {
		return fmt.Errorf("tool server is %s", a.toolState())
	}

	tools := a.connector.Tools()
	if c.JSON {
		return printJSON(os.Stdout, tools)
	}

	if s, ok := a.connector.Strategy(); ok {
		fmt.Printf("Connected via %s\n\n", s)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, t := range tools {
		fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Description)
	}
	return w.Flush()
}

type DiagnoseCmd struct {
	Connect bool `help:"Also try to start the tool server"`
	Limit   int  `default:"10" help:"Launch attempts to show"`
}

func (c *DiagnoseCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(ctx, g, appOptions{connect: c.Connect})
	if err != nil {
		return err
	}
	defer a.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "RUNTIME\tINSTALLED\tVERSION\tPATH")
	checker := mcp.NewRuntimeChecker()
	for _, rt := range checker.All(ctx) {
		detail := rt.Path
		if rt.Error != "" {
			detail = rt.Error
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", rt.Name, rt.Installed, rt.Version, detail)
	}
	if err := checker.CheckVersion(ctx, "node", mcp.MinNodeVersion); err != nil {
		fmt.Fprintf(w, "\t\t\t%v\n", err)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "#\tSTRATEGY")
	for i, s := range a.discovery().Strategies() {
		fmt.Fprintf(w, "%d\t%s\n", i+1, s)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "private install\t%t\n", mcp.NewInstaller(a.serverDir(), a.cfg.MCP.Package, a.logger).Installed())
	fmt.Fprintf(w, "tool server\t%s\n", a.toolState())
	fmt.Fprintf(w, "Drive API\t%t\n", a.direct != nil)
	fmt.Fprintf(w, "backend\t%s\n", a.dispatcher.Label())
	if a.direct != nil {
		if err := a.direct.Ping(ctx); err != nil {
			fmt.Fprintf(w, "Drive API check\t%v\n", err)
		} else {
			fmt.Fprintf(w, "Drive API check\tok\n")
		}
	}
	fmt.Fprintln(w)

	if a.launches != nil {
		recent, err := a.launches.Recent(ctx, c.Limit)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "WHEN\tSTRATEGY\tRESULT\tDURATION")
		for _, o := range recent {
			result := "ok"
			if !o.Succeeded {
				result = o.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.At.Format(time.DateTime), o.Strategy, result, o.Duration.Round(time.Millisecond))
		}
	}

	return w.Flush()
}

type InitCmd struct{}

func (c *InitCmd) Run(g *Globals) error {
	path := g.Config
	if path == "" {
		path = config.GetSettingsFilePath()
	}

	written, err := config.CreateDefaultSettings(path)
	if err != nil {
		return err
	}
	if !written {
		fmt.Printf("Settings already exist at %s\n", path)
		return nil
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

type InstallCmd struct {
	Force  bool `help:"Reinstall even if the package is already present"`
	Remove bool `help:"Remove the private install instead"`
}

func (c *InstallCmd) Run(ctx context.Context, g *Globals) error {
	a, err := newApp(ctx, g, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	inst := mcp.NewInstaller(a.serverDir(), a.cfg.MCP.Package, a.logger)

	if c.Remove {
		if err := inst.Uninstall(); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", inst.Dir)
		return nil
	}

	if inst.Installed() && !c.Force {
		fmt.Printf("%s is already installed in %s\n", inst.Package, inst.Dir)
		return nil
	}

	err = inst.Install(ctx, func(p mcp.InstallProgress) {
		fmt.Printf("[%3.0f%%] %s\n", p.Percent, p.Message)
	})
	if err != nil {
		return err
	}
	fmt.Printf("Installed %s into %s\n", inst.Package, inst.PackageDir())
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("gdrivechat %s (%s)\n", Version, License)
	return nil
}
