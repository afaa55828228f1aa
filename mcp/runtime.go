package mcp

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MinNodeVersion is the oldest Node.js the Drive tool server runs on.
const MinNodeVersion = "18.0.0"

// Runtime describes one executable the launch strategies depend on.
type Runtime struct {
	Name      string
	Installed bool
	Version   string
	Path      string
	Error     string
}

// RuntimeChecker probes node, npx and npm on PATH and records their versions.
type RuntimeChecker struct {
	lookPath func(string) (string, error)
	version  func(ctx context.Context, path string) (string, error)
	runtimes map[string]*Runtime
}

func NewRuntimeChecker() *RuntimeChecker {
	return &RuntimeChecker{
		lookPath: exec.LookPath,
		version:  commandVersion,
		runtimes: make(map[string]*Runtime),
	}
}

var probedRuntimes = []string{"node", "npx", "npm"}

func commandVersion(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(strings.TrimSpace(string(out)), "v"), nil
}

func (rc *RuntimeChecker) DetectAll(ctx context.Context) {
	for _, name := range probedRuntimes {
		rc.detect(ctx, name)
	}
}

func (rc *RuntimeChecker) detect(ctx context.Context, name string) {
	rt := &Runtime{Name: name}
	rc.runtimes[name] = rt

	path, err := rc.lookPath(name)
	if err != nil {
		rt.Error = fmt.Sprintf("%s not found", name)
		return
	}
	rt.Path = path

	version, err := rc.version(ctx, path)
	if err != nil {
		rt.Error = fmt.Sprintf("failed to get %s version", name)
		return
	}

	rt.Installed = true
	rt.Version = version
}

func (rc *RuntimeChecker) CheckRuntime(ctx context.Context, name string) (*Runtime, error) {
	rt, ok := rc.runtimes[name]
	if !ok {
		rc.detect(ctx, name)
		rt = rc.runtimes[name]
	}

	if !rt.Installed {
		if rt.Error != "" {
			return nil, fmt.Errorf("%s", rt.Error)
		}
		return nil, fmt.Errorf("%s not found", name)
	}
	return rt, nil
}

func (rc *RuntimeChecker) CheckVersion(ctx context.Context, name, minVersion string) error {
	rt, err := rc.CheckRuntime(ctx, name)
	if err != nil {
		return err
	}

	if !meetsMinVersion(rt.Version, minVersion) {
		return fmt.Errorf("%s version %s (requires >= %s)", name, rt.Version, minVersion)
	}
	return nil
}

// All returns the probed runtimes sorted by name.
func (rc *RuntimeChecker) All(ctx context.Context) []Runtime {
	rc.DetectAll(ctx)

	out := make([]Runtime, 0, len(rc.runtimes))
	for _, rt := range rc.runtimes {
		out = append(out, *rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func meetsMinVersion(current, minimum string) bool {
	currentParts := parseVersion(current)
	minimumParts := parseVersion(minimum)

	for i := 0; i < 3; i++ {
		if currentParts[i] > minimumParts[i] {
			return true
		}
		if currentParts[i] < minimumParts[i] {
			return false
		}
	}
	return true
}

func parseVersion(version string) [3]int {
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	parts := strings.Split(version, ".")
	var result [3]int

	for i := 0; i < 3 && i < len(parts); i++ {
		num, _ := strconv.Atoi(parts[i])
		result[i] = num
	}
	return result
}
