package builtin

import (
	"context"
	"strconv"
	"testing"

	"assay/internal/types"
)

const goMain = "package main\n\nfunc main() {\n}\n"

func TestStructureEntryPoints(t *testing.T) {
	snap := snapOf(
		rec("go.mod", "go_mod", "module example.com/app\n\ngo 1.24\n"),
		rec("cmd/app/main.go", "go", goMain),
		rec("cmd/worker/main.go", "go", goMain),
		rec("internal/server/server.go", "go", "package server\n"),
	)

	signals, err := NewStructure().Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := byKey(signals, KeyEntryPoint)
	if len(entries) != 2 {
		t.Fatalf("got %d entry points, want 2: %+v", len(entries), entries)
	}
	if !hasValue(signals, KeyEntryPoint, "cmd/app/main.go") ||
		!hasValue(signals, KeyEntryPoint, "cmd/worker/main.go") {
		t.Errorf("entry point paths wrong: %+v", entries)
	}
	if got := oneValue(t, signals, KeyEntryPointCount); got != "2" {
		t.Errorf("entry point count = %s, want 2", got)
	}
	if got := oneValue(t, signals, KeyGoModule); got != "example.com/app" {
		t.Errorf("module = %q, want example.com/app", got)
	}
	if got := oneValue(t, signals, KeyGoCmdLayout); got != "true" {
		t.Errorf("cmd layout = %s, want true", got)
	}
	if got := oneValue(t, signals, KeyGoInternal); got != "true" {
		t.Errorf("internal layout = %s, want true", got)
	}
}

func TestStructureLayersAndTestRatio(t *testing.T) {
	snap := snapOf(
		rec("internal/handlers/user.go", "go", "package handlers\n"),
		rec("internal/handlers/user_test.go", "go", "package handlers\n"),
		rec("internal/services/billing.go", "go", "package services\n"),
		rec("internal/models/user.go", "go", "package models\n"),
	)

	signals, err := NewStructure().Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	layers := byKey(signals, KeyLayerConvention)
	if len(layers) != 3 {
		t.Fatalf("got %d layer signals, want 3: %+v", len(layers), layers)
	}
	for i, want := range []string{"handlers", "models", "services"} {
		if layers[i].Value != want {
			t.Errorf("layer %d = %q, want %q (sorted)", i, layers[i].Value, want)
		}
	}

	ratio, err := strconv.ParseFloat(oneValue(t, signals, KeyTestRatio), 64)
	if err != nil || ratio != 0.25 {
		t.Errorf("test ratio = %v (err %v), want 0.25", ratio, err)
	}
	if got := oneValue(t, signals, KeyHasTests); got != "true" {
		t.Errorf("has_tests = %s, want true", got)
	}
	if got := oneValue(t, signals, KeyPackageCount); got != "3" {
		t.Errorf("package count = %s, want 3", got)
	}
}

func TestStructureNoEntryPoint(t *testing.T) {
	snap := snapOf(rec("pkg/lib.go", "go", "package lib\n"))
	signals, err := NewStructure().Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := byKey(signals, KeyEntryPoint); len(got) != 0 {
		t.Errorf("got %d entry points, want 0", len(got))
	}
	if got := oneValue(t, signals, KeyEntryPointCount); got != "0" {
		t.Errorf("entry point count = %s, want 0", got)
	}
}

func TestIsGoMain(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"executable", "package main\n\nfunc main() {}\n", true},
		{"library", "package lib\n\nfunc main() {}\n", false},
		{"no main func", "package main\n\nfunc run() {}\n", false},
		{"comment before package", "// Command x.\npackage main\nfunc main() {}\n", true},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isGoMain(tt.content); got != tt.want {
				t.Errorf("isGoMain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStructureSignalsCarryAxis(t *testing.T) {
	snap := snapOf(rec("main.go", "go", goMain))
	signals, err := NewStructure().Extract(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range signals {
		if s.Axis != types.AxisStructure {
			t.Errorf("signal %q carries axis %q, want %q", s.Key, s.Axis, types.AxisStructure)
		}
	}
}
