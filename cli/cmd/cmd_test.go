package cmd

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/arca-io/arca/cli/config"
	"github.com/arca-io/arca/types"
)

// testContext builds a cli.Context with the flags the helpers read.
func testContext(t *testing.T, values map[string]string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("engine", "", "")
	set.String("config", "", "")
	for k, v := range values {
		if v == "" {
			continue
		}
		if err := set.Set(k, v); err != nil {
			t.Fatalf("set flag %s: %v", k, err)
		}
	}
	return cli.NewContext(nil, set, nil)
}

func testConfig(enginePath string) *config.Config {
	return &config.Config{Engine: config.EngineConfig{Path: enginePath}}
}

func TestFailureExitCode(t *testing.T) {
	tests := []struct {
		code types.FailureCode
		want int
	}{
		{types.FailurePasswordRequired, exitPasswordRequired},
		{types.FailureUnsupportedFormat, exitUnreadableArchive},
		{types.FailureCorruptArchive, exitUnreadableArchive},
		{types.FailureExtractionFailed, exitGenericError},
		{types.FailureCreateFailed, exitGenericError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			got := failureExitCode(&types.Failure{Code: tt.code})
			if got != tt.want {
				t.Errorf("failureExitCode(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		output   string
		want     types.Format
		wantErr  bool
	}{
		{"zip from extension", "", "bundle.zip", types.FormatZip, false},
		{"7z from extension", "", "bundle.7z", types.FormatSevenZip, false},
		{"uppercase extension", "", "BUNDLE.ZIP", types.FormatZip, false},
		{"explicit zip", "zip", "bundle.bin", types.FormatZip, false},
		{"explicit 7z", "7z", "bundle.zip", types.FormatSevenZip, false},
		{"unknown extension", "", "bundle.rar", "", true},
		{"unsupported explicit", "rar", "bundle.rar", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveFormat(tt.explicit, tt.output)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCollectInputs_FilesAndDirectories(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "single.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "docs", "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "docs", "a.txt"), []byte("beta"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b.txt"), []byte("gamma"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := collectInputs([]string{
		filepath.Join(dir, "single.txt"),
		filepath.Join(dir, "docs"),
	})
	if err != nil {
		t.Fatalf("collectInputs failed: %v", err)
	}

	got := map[string]string{}
	for _, f := range files {
		got[f.Path] = string(f.Data)
		if f.ModTime == nil {
			t.Errorf("entry %s missing mod time", f.Path)
		}
	}

	want := map[string]string{
		"single.txt":        "alpha",
		"docs/a.txt":        "beta",
		"docs/nested/b.txt": "gamma",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %v", len(got), len(want), got)
	}
	for path, content := range want {
		if got[path] != content {
			t.Errorf("entry %s = %q, want %q", path, got[path], content)
		}
	}
}

func TestCollectInputs_MissingInput(t *testing.T) {
	_, err := collectInputs([]string{filepath.Join(t.TempDir(), "absent.txt")})
	if err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestSupportedFormats(t *testing.T) {
	formats := SupportedFormats()
	if len(formats) == 0 {
		t.Fatal("no supported formats listed")
	}

	var zip, sevenZip, gzip *FormatInfo
	for i := range formats {
		switch formats[i].Format {
		case types.FormatZip:
			zip = &formats[i]
		case types.FormatSevenZip:
			sevenZip = &formats[i]
		case types.FormatGzip:
			gzip = &formats[i]
		}
	}

	if zip == nil || !zip.Create {
		t.Error("zip should be listed as creatable")
	}
	if sevenZip == nil || !sevenZip.Create {
		t.Error("7z should be listed as creatable")
	}
	if gzip == nil {
		t.Fatal("gzip missing from format listing")
	}
	if gzip.Create {
		t.Error("gzip should not be creatable")
	}
	if gzip.Kind != "single" {
		t.Errorf("gzip kind = %q, want single", gzip.Kind)
	}
}

func TestLoadConfig_DefaultMissingIsEmpty(t *testing.T) {
	t.Chdir(t.TempDir())

	c := testContext(t, nil)
	cfg, err := loadConfig(c)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Engine.Path != "" || cfg.Telemetry.Type != "" {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfig_DefaultFilePickedUp(t *testing.T) {
	dir := t.TempDir()
	yaml := "engine:\n  path: /opt/arca/arca-engine\n"
	if err := os.WriteFile(filepath.Join(dir, "arca.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	c := testContext(t, nil)
	cfg, err := loadConfig(c)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Engine.Path != "/opt/arca/arca-engine" {
		t.Errorf("engine path = %q", cfg.Engine.Path)
	}
}

func TestEnginePath_Precedence(t *testing.T) {
	tests := []struct {
		name string
		flag string
		cfg  string
		want string
	}{
		{"flag wins", "/from/flag", "/from/config", "/from/flag"},
		{"config next", "", "/from/config", "/from/config"},
		{"fallback", "", "", "arca-engine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testContext(t, map[string]string{"engine": tt.flag})
			got := enginePath(c, testConfig(tt.cfg))
			if got != tt.want {
				t.Errorf("enginePath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildSink(t *testing.T) {
	if _, err := buildSink(testConfig("")); err != nil {
		t.Errorf("empty telemetry type should yield nop sink, got %v", err)
	}

	cfg := testConfig("")
	cfg.Telemetry.Type = "webhook"
	if _, err := buildSink(cfg); err == nil {
		t.Error("webhook sink without URL should fail")
	}

	cfg.Telemetry.Type = "carrier-pigeon"
	if _, err := buildSink(cfg); err == nil {
		t.Error("unknown telemetry type should fail")
	}
}
