package mcp

import (
	"context"
	"errors"
	"testing"
)

func fakeChecker(versions map[string]string) *RuntimeChecker {
	return &RuntimeChecker{
		lookPath: func(name string) (string, error) {
			if _, ok := versions[name]; ok {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		},
		version: func(ctx context.Context, path string) (string, error) {
			for name, v := range versions {
				if path == "/usr/bin/"+name {
					if v == "" {
						return "", errors.New("exit status 1")
					}
					return v, nil
				}
			}
			return "", errors.New("unknown")
		},
		runtimes: make(map[string]*Runtime),
	}
}

func TestMeetsMinVersion(t *testing.T) {
	tests := []struct {
		current string
		minimum string
		want    bool
	}{
		{"18.0.0", "18.0.0", true},
		{"20.11.1", "18.0.0", true},
		{"v18.19.0", "18.0.0", true},
		{"16.20.2", "18.0.0", false},
		{"18", "18.0.0", true},
		{"17.99.99", "18.0.0", false},
	}

	for _, tt := range tests {
		if got := meetsMinVersion(tt.current, tt.minimum); got != tt.want {
			t.Errorf("meetsMinVersion(%q, %q) = %v, want %v", tt.current, tt.minimum, got, tt.want)
		}
	}
}

func TestCheckVersion(t *testing.T) {
	rc := fakeChecker(map[string]string{"node": "16.2.0", "npx": "10.1.0", "npm": ""})
	ctx := context.Background()

	if err := rc.CheckVersion(ctx, "node", MinNodeVersion); err == nil {
		t.Error("node 16 should not satisfy the minimum")
	}
	if err := rc.CheckVersion(ctx, "npx", "9.0.0"); err != nil {
		t.Errorf("npx: %v", err)
	}
	if _, err := rc.CheckRuntime(ctx, "npm"); err == nil {
		t.Error("npm without a version should be reported missing")
	}
	if _, err := rc.CheckRuntime(ctx, "bun"); err == nil {
		t.Error("bun is not installed")
	}
}

func TestAllIsSorted(t *testing.T) {
	rc := fakeChecker(map[string]string{"node": "20.0.0"})
	all := rc.All(context.Background())

	if len(all) != 3 {
		t.Fatalf("got %d runtimes, want 3", len(all))
	}
	names := []string{all[0].Name, all[1].Name, all[2].Name}
	if names[0] != "node" || names[1] != "npm" || names[2] != "npx" {
		t.Errorf("order = %v", names)
	}
	if !all[0].Installed || all[0].Version != "20.0.0" {
		t.Errorf("node = %+v", all[0])
	}
	if all[1].Installed || all[1].Error == "" {
		t.Errorf("npm = %+v", all[1])
	}
}
