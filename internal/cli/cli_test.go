package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sheetdiff/internal/config"
	"sheetdiff/internal/pageio"
	"sheetdiff/internal/synth"
	"sheetdiff/internal/version"

	"github.com/BurntSushi/toml"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c := New(&out, io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writePage(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := pageio.WritePNG(path, img); err != nil {
		t.Fatal(err)
	}
}

func TestCompareCommand(t *testing.T) {
	root := t.TempDir()
	oldDir := filepath.Join(root, "old")
	newDir := filepath.Join(root, "new")
	outDir := filepath.Join(root, "out")

	sheet := synth.DefaultSheet(480, 480, 33)
	writePage(t, filepath.Join(oldDir, "A-101.png"), sheet.Render())
	writePage(t, filepath.Join(oldDir, "cover.png"), synth.Blank(64, 64))
	sheet.Offset = image.Pt(6, 9)
	writePage(t, filepath.Join(newDir, "A-101.png"), sheet.Render())
	writePage(t, filepath.Join(newDir, "A-102.png"), synth.DefaultSheet(120, 120, 5).Render())

	cfgPath := filepath.Join(root, "sheetdiff.toml")
	if err := os.WriteFile(cfgPath, []byte("[features]\nexclude_margin = 0.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, err := execute(t, "compare",
		"--old", oldDir, "--new", newDir, "--out", outDir,
		"--config", cfgPath, "--report", "json", "-j", "2")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}

	if _, err := os.Stat(filepath.Join(outDir, "A-101_overlay.png")); err != nil {
		t.Errorf("overlay not written: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "report.json"))
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var rep pageio.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Summary.Pairs != 1 || rep.Summary.Succeeded != 1 {
		t.Errorf("summary = %+v", rep.Summary)
	}
	if len(rep.UnmatchedNew) != 1 || rep.UnmatchedNew[0] != "A-102" {
		t.Errorf("unmatched new = %v", rep.UnmatchedNew)
	}
	if len(rep.UnidentifiedOld) != 1 || rep.UnidentifiedOld[0] != 1 {
		t.Errorf("unidentified old = %v", rep.UnidentifiedOld)
	}
	if got := rep.Pairs[0].Overlay; got != filepath.Join(outDir, "A-101_overlay.png") {
		t.Errorf("report overlay path = %q", got)
	}

	for _, want := range []string{"A-101", "A-102", "added sheet", "1 pairs: 1 compared"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestCompareCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	writePage(t, filepath.Join(dir, "A-1.png"), synth.Blank(16, 16))
	badCfg := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(badCfg, []byte("[features]\nn_feature = 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing flags", []string{"compare", "--old", dir}, "required flag"},
		{"bad report format", []string{"compare", "--old", dir, "--new", dir, "--out", dir, "--report", "xml"}, "unknown report format"},
		{"unknown config key", []string{"compare", "--old", dir, "--new", dir, "--out", dir, "--config", badCfg}, "n_feature"},
		{"empty set", []string{"compare", "--old", dir, "--new", t.TempDir(), "--out", dir}, "new set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "config")
	if err != nil {
		t.Fatal(err)
	}
	var cfg config.Config
	if _, err := toml.Decode(out, &cfg); err != nil {
		t.Fatalf("config output is not TOML: %v\n%s", err, out)
	}
	if cfg != config.Default() {
		t.Errorf("printed config differs from defaults:\n%s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, version.Version) {
		t.Errorf("version output = %q", out)
	}
}
