package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Installer puts the Drive tool server package into a private npm prefix so
// Discovery can launch it with node instead of going through npx.
type Installer struct {
	Dir     string
	Package string

	runtimeChecker *RuntimeChecker
	run            func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
	logger         *slog.Logger
}

type InstallProgress struct {
	Stage   string
	Percent float64
	Message string
}

func NewInstaller(dir, pkg string, logger *slog.Logger) *Installer {
	if pkg == "" {
		pkg = DefaultPackage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{
		Dir:            dir,
		Package:        pkg,
		runtimeChecker: NewRuntimeChecker(),
		run:            runCommand,
		logger:         logger.With("component", "installer"),
	}
}

func runCommand(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Install runs npm install into Dir. progress may be nil. A failed install
// leaves nothing behind.
func (i *Installer) Install(ctx context.Context, progress func(InstallProgress)) error {
	report := func(stage string, pct float64, msg string) {
		if progress != nil {
			progress(InstallProgress{Stage: stage, Percent: pct, Message: msg})
		}
	}

	report("checking", 0, "Checking requirements...")

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("installation cancelled: %w", err)
	}

	if err := i.checkRuntimeDeps(ctx); err != nil {
		return fmt.Errorf("runtime check failed: %w", err)
	}

	report("installing", 20, "Installing "+i.Package+"...")

	_, statErr := os.Stat(i.Dir)
	created := os.IsNotExist(statErr)

	if err := os.MkdirAll(i.Dir, 0700); err != nil {
		return fmt.Errorf("failed to create install directory: %w", err)
	}

	out, err := i.run(ctx, i.Dir, "npm", "install", "--prefix", i.Dir, "--no-fund", "--no-audit", i.Package)
	if err != nil {
		if created {
			os.RemoveAll(i.Dir)
		}
		i.logger.Warn("npm install failed", "package", i.Package, "error", err)
		return fmt.Errorf("npm install failed: %w\nOutput: %s", err, strings.TrimSpace(string(out)))
	}

	report("verifying", 90, "Verifying install...")

	if _, err := os.Stat(i.PackageDir()); err != nil {
		return fmt.Errorf("package not found after install: %w", err)
	}

	i.logger.Info("tool server installed", "package", i.Package, "dir", i.Dir)
	report("complete", 100, "Installation complete")
	return nil
}

// PackageDir is where the installed package lives.
func (i *Installer) PackageDir() string {
	return filepath.Join(i.Dir, "node_modules", filepath.FromSlash(i.Package))
}

// Installed reports whether a previous Install left the package in place.
func (i *Installer) Installed() bool {
	info, err := os.Stat(i.PackageDir())
	return err == nil && info.IsDir()
}

func (i *Installer) Uninstall() error {
	if err := os.RemoveAll(i.Dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", i.Dir, err)
	}
	return nil
}

func (i *Installer) checkRuntimeDeps(ctx context.Context) error {
	if _, err := i.runtimeChecker.CheckRuntime(ctx, "npm"); err != nil {
		return fmt.Errorf("npm is required: %w", err)
	}
	if err := i.runtimeChecker.CheckVersion(ctx, "node", MinNodeVersion); err != nil {
		return fmt.Errorf("Node.js is required: %w", err)
	}
	return nil
}
