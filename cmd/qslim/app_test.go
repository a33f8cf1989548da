package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/qslim/pkg/config"
	"github.com/chazu/qslim/pkg/decimate"
	"github.com/chazu/qslim/pkg/kernel"
	"github.com/chazu/qslim/pkg/meshio"
)

// testApp returns an App with coarse meshing and discarded logs.
func testApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Mesh.Cells = 24
	app, err := NewApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

// gridMesh returns an n x n grid of unit squares in the z=0 plane.
func gridMesh(n int) *kernel.Mesh {
	m := &kernel.Mesh{}
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			m.Vertices = append(m.Vertices, float32(x), float32(y), 0)
		}
	}
	idx := func(x, y int) uint32 { return uint32(y*(n+1) + x) }
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			a, b, c, d := idx(x, y), idx(x+1, y), idx(x+1, y+1), idx(x, y+1)
			m.Indices = append(m.Indices, a, b, c, a, c, d)
		}
	}
	return m
}

// TestE2ESphereScript exercises the full pipeline: script -> engine -> jobs
// -> marching cubes -> weld -> decimate.
func TestE2ESphereScript(t *testing.T) {
	app := testApp(t)

	var calls int
	app.Progress = func(part string, s decimate.Stats) {
		calls++
		if part != "ball" {
			t.Errorf("progress for part %q, want ball", part)
		}
	}

	result, err := app.Evaluate(context.Background(), `(decimate (sphere 5) :name "ball" :ratio 0.2)`)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("eval errors: %v", result.Errors)
	}
	if len(result.Parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(result.Parts))
	}

	part := result.Parts[0]
	if part.Name != "ball" || part.Mesh.PartName != "ball" {
		t.Errorf("part name = %q / %q, want ball", part.Name, part.Mesh.PartName)
	}
	if err := part.Mesh.Validate(); err != nil {
		t.Fatalf("output mesh invalid: %v", err)
	}
	if part.Stats.Collapses == 0 {
		t.Fatal("expected collapses")
	}
	if calls != part.Stats.Collapses {
		t.Errorf("progress called %d times for %d collapses", calls, part.Stats.Collapses)
	}
	if part.Mesh.TriangleCount() != part.Stats.FinalFaces {
		t.Errorf("mesh has %d triangles, stats say %d", part.Mesh.TriangleCount(), part.Stats.FinalFaces)
	}
	if part.Stats.FinalFaces >= part.Stats.InitialFaces {
		t.Errorf("faces %d -> %d, expected a reduction", part.Stats.InitialFaces, part.Stats.FinalFaces)
	}
	t.Logf("sphere: %d -> %d faces, max cost %g", part.Stats.InitialFaces, part.Stats.FinalFaces, part.Stats.MaxCost)
}

func TestE2EEmptySource(t *testing.T) {
	result, err := testApp(t).Evaluate(context.Background(), "")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Errors) != 0 || len(result.Parts) != 0 {
		t.Errorf("expected nothing, got %d parts and %d errors", len(result.Parts), len(result.Errors))
	}
}

func TestE2ESyntaxError(t *testing.T) {
	result, err := testApp(t).Evaluate(context.Background(), "(decimate (sphere 1)")
	if err != nil {
		t.Fatalf("expected script error, got fatal: %v", err)
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors")
	}
	if len(result.Parts) != 0 {
		t.Errorf("expected no parts, got %d", len(result.Parts))
	}
}

func TestDecimateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testApp(t).Decimate(ctx, "grid", gridMesh(4), decimate.DefaultOptions())
	if err == nil || !strings.Contains(err.Error(), "grid") {
		t.Fatalf("expected cancellation error naming the part, got %v", err)
	}
}

func TestRunOBJ(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "grid.obj")
	out := filepath.Join(dir, "small.obj")
	if err := meshio.WriteOBJFile(in, gridMesh(4)); err != nil {
		t.Fatal(err)
	}

	var stderr bytes.Buffer
	if err := run(context.Background(), []string{"-in", in, "-ratio", "0.5", "-out", out}, io.Discard, &stderr); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr.String())
	}

	m, err := meshio.ReadOBJFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if m.TriangleCount() >= 32 {
		t.Errorf("expected fewer than 32 triangles, got %d", m.TriangleCount())
	}
	if !strings.Contains(stderr.String(), "decimation finished") {
		t.Errorf("expected a summary log line, got:\n%s", stderr.String())
	}
	if !strings.Contains(stderr.String(), `bounds_min="[0 0 0]"`) ||
		!strings.Contains(stderr.String(), `bounds_max="[4 4 0]"`) {
		t.Errorf("expected input bounds in the weld log line, got:\n%s", stderr.String())
	}
}

func TestRunOBJToStdout(t *testing.T) {
	in := filepath.Join(t.TempDir(), "grid.obj")
	if err := meshio.WriteOBJFile(in, gridMesh(2)); err != nil {
		t.Fatal(err)
	}
	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"-in", in, "-faces", "4", "-log-level", "error"}, &stdout, io.Discard); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "o grid\nv ") {
		t.Errorf("unexpected output:\n%s", stdout.String())
	}
}

func TestRunScriptWritesParts(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "parts.lisp")
	src := `
; two parts
(decimate (sphere 4) :name "a" :ratio 0.5)
(decimate (translate (box 4 4 4) (vec3 1 1 1)) :name "b" :ratio 0.5)
`
	if err := os.WriteFile(script, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.obj")
	args := []string{"-script", script, "-out", out, "-cells", "16", "-progress"}
	if err := run(context.Background(), args, io.Discard, io.Discard); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, name := range []string{"out-a.obj", "out-b.obj"} {
		m, err := meshio.ReadOBJFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		if m.TriangleCount() == 0 {
			t.Errorf("%s has no triangles", name)
		}
	}
}

func TestRunScriptErrors(t *testing.T) {
	script := filepath.Join(t.TempDir(), "bad.lisp")
	if err := os.WriteFile(script, []byte(`(decimate (sphere -1))`), 0o644); err != nil {
		t.Fatal(err)
	}
	var stderr bytes.Buffer
	err := run(context.Background(), []string{"-script", script}, io.Discard, &stderr)
	if err != errScript {
		t.Fatalf("run = %v, want errScript", err)
	}
	if !strings.Contains(stderr.String(), "positive") {
		t.Errorf("stderr should explain the error, got %q", stderr.String())
	}
}

func TestParseFlags(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "qslim.yaml")
	if err := os.WriteFile(cfgPath, []byte("decimate:\n  target_faces: 300\nmesh:\n  cells: 50\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		args      []string
		wantErr   bool
		wantFaces int
		wantRatio float64
		wantCells int
	}{
		{name: "neither input", args: nil, wantErr: true},
		{name: "both inputs", args: []string{"-in", "a.obj", "-script", "b.lisp"}, wantErr: true},
		{name: "defaults", args: []string{"-in", "a.obj"}, wantRatio: 0.5, wantCells: 200},
		{name: "config file", args: []string{"-in", "a.obj", "-config", cfgPath}, wantFaces: 300, wantRatio: 0.5, wantCells: 50},
		{name: "ratio overrides config faces", args: []string{"-in", "a.obj", "-config", cfgPath, "-ratio", "0.1"}, wantRatio: 0.1, wantCells: 50},
		{name: "faces and ratio", args: []string{"-in", "a.obj", "-ratio", "0.1", "-faces", "20"}, wantFaces: 20, wantRatio: 0.1, wantCells: 200},
		{name: "cells flag", args: []string{"-script", "b.lisp", "-config", cfgPath, "-cells", "30"}, wantFaces: 300, wantRatio: 0.5, wantCells: 30},
		{name: "invalid ratio", args: []string{"-in", "a.obj", "-ratio", "4"}, wantErr: true},
		{name: "unknown kernel", args: []string{"-script", "b.lisp", "-kernel", "cgal"}, wantErr: true},
		{name: "invalid log level", args: []string{"-in", "a.obj", "-log-level", "chatty"}, wantErr: true},
		{name: "missing config", args: []string{"-in", "a.obj", "-config", cfgPath + ".missing"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFlags: %v", err)
			}
			if o.cfg.Decimate.TargetFaces != tt.wantFaces {
				t.Errorf("faces = %d, want %d", o.cfg.Decimate.TargetFaces, tt.wantFaces)
			}
			if o.cfg.Decimate.TargetRatio != tt.wantRatio {
				t.Errorf("ratio = %g, want %g", o.cfg.Decimate.TargetRatio, tt.wantRatio)
			}
			if o.cfg.Mesh.Cells != tt.wantCells {
				t.Errorf("cells = %d, want %d", o.cfg.Mesh.Cells, tt.wantCells)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		out, part string
		parts     int
		want      string
	}{
		{"", "ball", 1, "ball.obj"},
		{"", "ball", 3, "ball.obj"},
		{"x.obj", "ball", 1, "x.obj"},
		{"dir/x.obj", "ball", 2, "dir/x-ball.obj"},
		{"x", "ball", 2, "x-ball"},
	}
	for _, tt := range tests {
		if got := outputPath(tt.out, tt.part, tt.parts); got != tt.want {
			t.Errorf("outputPath(%q, %q, %d) = %q, want %q", tt.out, tt.part, tt.parts, got, tt.want)
		}
	}
}
