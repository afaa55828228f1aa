package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/spf13/afero"
)

// DefaultPackage is the npm package that provides the Drive tool server.
const DefaultPackage = "@isaacphi/mcp-gdrive"

// Discovery builds the ordered list of launch strategies: configured ones,
// then local installs found on disk, then platform launchers found on PATH.
type Discovery struct {
	Fs       afero.Fs
	GOOS     string
	Getenv   func(string) string
	LookPath func(string) (string, error)
	WorkDir  string
	// ServerDir is the prefix used by Installer.
	ServerDir string
	Package   string
	// Env is injected into every strategy.
	Env map[string]string
	// Explicit strategies are tried first, as given.
	Explicit []Strategy
}

// NewDiscovery returns a Discovery bound to the real OS.
func NewDiscovery(workDir string, env map[string]string) Discovery {
	return Discovery{
		Fs:       afero.NewOsFs(),
		GOOS:     runtime.GOOS,
		Getenv:   os.Getenv,
		LookPath: exec.LookPath,
		WorkDir:  workDir,
		Package:  DefaultPackage,
		Env:      env,
	}
}

// CredentialEnv maps Google OAuth client settings onto the variables the tool
// server reads.
func CredentialEnv(clientID, clientSecret, credsDir string) map[string]string {
	env := map[string]string{}
	if clientID != "" {
		env["CLIENT_ID"] = clientID
	}
	if clientSecret != "" {
		env["CLIENT_SECRET"] = clientSecret
	}
	if credsDir != "" {
		env["GDRIVE_CREDS_DIR"] = credsDir
	}
	return env
}

func (d Discovery) pkg() string {
	if d.Package == "" {
		return DefaultPackage
	}
	return d.Package
}

func (d Discovery) getenv(key string) string {
	if d.Getenv == nil {
		return ""
	}
	return d.Getenv(key)
}

func (d Discovery) withEnv(s Strategy) Strategy {
	merged := make(map[string]string, len(d.Env)+len(s.Env))
	for k, v := range d.Env {
		merged[k] = v
	}
	for k, v := range s.Env {
		merged[k] = v
	}
	s.Env = merged
	return s
}

func (d Discovery) Strategies() []Strategy {
	var out []Strategy
	for _, s := range d.Explicit {
		out = append(out, d.withEnv(s))
	}
	for _, p := range d.InstallPaths() {
		out = append(out, d.withEnv(Strategy{
			Name:    "node " + p,
			Command: "node",
			Args:    []string{p},
		}))
	}
	for _, s := range d.launchers() {
		out = append(out, d.withEnv(s))
	}
	return out
}

// packageDirs lists the node_modules directories that may hold the package.
func (d Discovery) packageDirs() []string {
	var roots []string

	switch d.GOOS {
	case "windows":
		if appData := d.getenv("APPDATA"); appData != "" {
			roots = append(roots, filepath.Join(appData, "npm", "node_modules"))
		}
		if d.WorkDir != "" {
			roots = append(roots, filepath.Join(d.WorkDir, "node_modules"))
		}
		if d.ServerDir != "" {
			roots = append(roots, filepath.Join(d.ServerDir, "node_modules"))
		}
		if programFiles := d.getenv("ProgramFiles"); programFiles != "" {
			roots = append(roots, filepath.Join(programFiles, "nodejs", "node_modules"))
		}
	default:
		if d.WorkDir != "" {
			roots = append(roots, filepath.Join(d.WorkDir, "node_modules"))
		}
		if d.ServerDir != "" {
			roots = append(roots, filepath.Join(d.ServerDir, "node_modules"))
		}
		if prefix := d.getenv("NPM_CONFIG_PREFIX"); prefix != "" {
			roots = append(roots, filepath.Join(prefix, "lib", "node_modules"))
		}
		if home := d.getenv("HOME"); home != "" {
			roots = append(roots, filepath.Join(home, ".npm-global", "lib", "node_modules"))
		}
		roots = append(roots, "/usr/local/lib/node_modules", "/usr/lib/node_modules")
	}

	dirs := make([]string, 0, len(roots))
	for _, r := range roots {
		dirs = append(dirs, filepath.Join(r, filepath.FromSlash(d.pkg())))
	}
	return dirs
}

// InstallPaths returns the entry scripts of local installs that exist, in
// probing order and without duplicates.
func (d Discovery) InstallPaths() []string {
	if d.Fs == nil {
		return nil
	}

	seen := map[string]bool{}
	var found []string
	add := func(p string) {
		if seen[p] {
			return
		}
		if ok, _ := afero.Exists(d.Fs, p); ok {
			seen[p] = true
			found = append(found, p)
		}
	}

	for _, dir := range d.packageDirs() {
		if bin := d.binEntry(dir); bin != "" {
			add(bin)
		}
		add(filepath.Join(dir, "dist", "index.js"))
		add(filepath.Join(dir, "index.js"))
	}
	return found
}

// binEntry resolves the script named by the "bin" field of package.json.
func (d Discovery) binEntry(dir string) string {
	data, err := afero.ReadFile(d.Fs, filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}

	var manifest struct {
		Bin any `json:"bin"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return ""
	}

	switch v := manifest.Bin.(type) {
	case string:
		return filepath.Join(dir, filepath.FromSlash(path.Clean(v)))
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if rel, ok := v[name].(string); ok {
				return filepath.Join(dir, filepath.FromSlash(path.Clean(rel)))
			}
		}
	}
	return ""
}

func (d Discovery) launchers() []Strategy {
	pkg := d.pkg()
	requireScript := fmt.Sprintf("require(%q)", pkg)

	var candidates []Strategy
	switch d.GOOS {
	case "windows":
		candidates = []Strategy{
			{Command: "npx.cmd", Args: []string{pkg}},
			{Command: "npx", Args: []string{pkg}},
			{Command: "cmd", Args: []string{"/c", "npx", pkg}},
			{Command: "powershell", Args: []string{"-Command", "npx " + pkg}},
			{Command: "cmd", Args: []string{"/c", "npm", "exec", pkg}},
			{Command: "node", Args: []string{"-e", requireScript}},
		}
	default:
		candidates = []Strategy{
			{Command: "npx", Args: []string{"-y", pkg}},
			{Command: "npm", Args: []string{"exec", "--yes", pkg}},
			{Command: "node", Args: []string{"-e", requireScript}},
		}
	}

	out := make([]Strategy, 0, len(candidates))
	for _, s := range candidates {
		if d.LookPath != nil {
			if _, err := d.LookPath(s.Command); err != nil {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}
