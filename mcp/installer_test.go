package mcp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInstaller(t *testing.T, run func(ctx context.Context, dir, name string, args ...string) ([]byte, error)) *Installer {
	t.Helper()
	inst := NewInstaller(filepath.Join(t.TempDir(), "server"), "", nil)
	inst.runtimeChecker = fakeChecker(map[string]string{"node": "20.11.1", "npm": "10.2.4"})
	inst.run = run
	return inst
}

func TestInstallRunsNpmIntoPrefix(t *testing.T) {
	var gotDir string
	var gotArgs []string
	inst := testInstaller(t, func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		gotDir = dir
		gotArgs = append([]string{name}, args...)
		return nil, os.MkdirAll(filepath.Join(dir, "node_modules", "@isaacphi", "mcp-gdrive"), 0o755)
	})

	var stages []string
	err := inst.Install(context.Background(), func(p InstallProgress) {
		stages = append(stages, p.Stage)
	})
	require.NoError(t, err)

	assert.Equal(t, inst.Dir, gotDir)
	assert.Equal(t, []string{"npm", "install", "--prefix", inst.Dir, "--no-fund", "--no-audit", DefaultPackage}, gotArgs)
	assert.Equal(t, []string{"checking", "installing", "verifying", "complete"}, stages)
	assert.True(t, inst.Installed())

	info, err := os.Stat(inst.Dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestInstallFailureCleansUp(t *testing.T) {
	inst := testInstaller(t, func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		return []byte("npm ERR! 404"), errors.New("exit status 1")
	})

	err := inst.Install(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "npm ERR! 404")

	_, statErr := os.Stat(inst.Dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestInstallRequiresNode(t *testing.T) {
	called := false
	inst := testInstaller(t, func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		called = true
		return nil, nil
	})
	inst.runtimeChecker = fakeChecker(map[string]string{"node": "16.20.0", "npm": "8.19.4"})

	err := inst.Install(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Node.js is required")
	assert.False(t, called)
}

func TestInstallCancelled(t *testing.T) {
	inst := testInstaller(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := inst.Install(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInstalledPackageIsDiscovered(t *testing.T) {
	inst := testInstaller(t, nil)
	require.NoError(t, os.MkdirAll(inst.PackageDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inst.PackageDir(), "index.js"), []byte("//"), 0o644))

	d := NewDiscovery("", nil)
	d.GOOS = "linux"
	d.Getenv = func(string) string { return "" }
	d.ServerDir = inst.Dir

	paths := d.InstallPaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, filepath.Join(inst.PackageDir(), "index.js"), paths[0])
}
