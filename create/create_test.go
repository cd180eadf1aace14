package create

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/yeka/zip"

	"github.com/arca-io/arca/log"
	"github.com/arca-io/arca/types"
)

func testLogger() *log.Logger {
	return log.NewLogger("create-test").WithOutput(io.Discard)
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "docs/readme.txt", want: "docs/readme.txt"},
		{in: "/etc/passwd", want: "etc/passwd"},
		{in: "//double//slash", want: "double/slash"},
		{in: `C:\Users\x\file.txt`, want: "Users/x/file.txt"},
		{in: `windows\style.txt`, want: "windows/style.txt"},
		{in: "./a/./b", want: "a/b"},
		{in: "a/../b", wantErr: true},
		{in: "..", wantErr: true},
		{in: "../../etc/shadow", wantErr: true},
		{in: "", wantErr: true},
		{in: "/.", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizePath(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SanitizePath(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("SanitizePath(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("SanitizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name           string
		format         types.Format
		level          int
		password       string
		encryptHeaders bool
		want           []string
	}{
		{
			name:   "plain zip",
			format: types.FormatZip,
			level:  6,
			want:   []string{"a", "-tzip", "-mx=6", "/out/a.zip", "x.txt"},
		},
		{
			name:     "encrypted zip adds AES",
			format:   types.FormatZip,
			level:    9,
			password: "s3cret",
			want:     []string{"a", "-tzip", "-mx=9", "-mem=AES256", "-ps3cret", "/out/a.zip", "x.txt"},
		},
		{
			name:           "7z with header encryption",
			format:         types.FormatSevenZip,
			level:          0,
			password:       "pw",
			encryptHeaders: true,
			want:           []string{"a", "-t7z", "-mx=0", "-mhe=on", "-ppw", "/out/a.zip", "x.txt"},
		},
		{
			name:           "header encryption without password still passes flag",
			format:         types.FormatSevenZip,
			level:          3,
			encryptHeaders: true,
			want:           []string{"a", "-t7z", "-mx=3", "-mhe=on", "/out/a.zip", "x.txt"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildArgs(tt.format, tt.level, tt.password, tt.encryptHeaders, "/out/a.zip", []string{"x.txt"})
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClampLevel(t *testing.T) {
	intp := func(v int) *int { return &v }
	tests := []struct {
		in   *int
		want int
	}{
		{in: nil, want: DefaultCompressionLevel},
		{in: intp(-3), want: 0},
		{in: intp(0), want: 0},
		{in: intp(9), want: 9},
		{in: intp(42), want: 9},
	}
	for _, tt := range tests {
		if got := clampLevel(tt.in); got != tt.want {
			t.Errorf("clampLevel(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCreateArchiverStagesAndCleansUp(t *testing.T) {
	fs := afero.NewMemMapFs()
	archive := []byte("fake-archive-bytes")

	var gotArgs []string
	var sawStaged bool
	runner := func(ctx context.Context, dir, name string, args []string) ([]byte, error) {
		gotArgs = args
		stageDir := filepath.Base(dir)
		ok, _ := afero.Exists(fs, path.Join(stageDir, "docs/readme.txt"))
		sawStaged = ok
		out := filepath.Base(args[len(args)-2])
		return nil, afero.WriteFile(fs, out, archive, 0o644)
	}

	svc := NewService(testLogger(), Config{Archiver: "7zz", Fs: fs, Runner: runner})
	res, err := svc.Create(context.Background(), &types.CreateRequest{
		Format: types.FormatSevenZip,
		Files: []types.CreateFile{
			{Path: "docs/readme.txt", Data: []byte("hello")},
		},
		Password:       "pw",
		EncryptHeaders: true,
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !sawStaged {
		t.Error("input file was not staged before the archiver ran")
	}
	if !bytes.Equal(res.Data, archive) {
		t.Errorf("result data = %q, want %q", res.Data, archive)
	}
	if res.Engine != EngineArchiver {
		t.Errorf("engine = %q, want %q", res.Engine, EngineArchiver)
	}
	if !res.PasswordProtected {
		t.Error("PasswordProtected = false, want true")
	}
	if len(gotArgs) == 0 || gotArgs[0] != "a" || gotArgs[1] != "-t7z" {
		t.Errorf("unexpected archiver args: %v", gotArgs)
	}

	// Scratch state must be gone afterwards.
	entries, err := afero.ReadDir(fs, ".")
	if err == nil && len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("scratch filesystem not clean after Create: %v", names)
	}
}

func TestCreateRejectsTraversalBeforeStaging(t *testing.T) {
	fs := afero.NewMemMapFs()
	ran := false
	runner := func(ctx context.Context, dir, name string, args []string) ([]byte, error) {
		ran = true
		return nil, nil
	}
	svc := NewService(testLogger(), Config{Archiver: "7zz", Fs: fs, Runner: runner})

	_, err := svc.Create(context.Background(), &types.CreateRequest{
		Format: types.FormatZip,
		Files: []types.CreateFile{
			{Path: "ok.txt", Data: []byte("x")},
			{Path: "../escape.txt", Data: []byte("y")},
		},
	})
	failure, ok := types.AsFailure(err)
	if !ok || failure.Code != types.FailureCreateFailed {
		t.Fatalf("Create() error = %v, want CREATE_FAILED failure", err)
	}
	if failure.Recoverable {
		t.Error("traversal rejection should not be recoverable")
	}
	if ran {
		t.Error("archiver ran despite rejected input path")
	}
	entries, err := afero.ReadDir(fs, ".")
	if err == nil && len(entries) != 0 {
		t.Error("files were staged despite rejected input path")
	}
}

func TestCreateUnsupportedFormat(t *testing.T) {
	svc := NewService(testLogger(), Config{Fs: afero.NewMemMapFs()})
	_, err := svc.Create(context.Background(), &types.CreateRequest{
		Format: types.FormatRar,
		Files:  []types.CreateFile{{Path: "a.txt", Data: []byte("x")}},
	})
	failure, ok := types.AsFailure(err)
	if !ok || failure.Code != types.FailureUnsupportedFormat {
		t.Fatalf("Create(rar) error = %v, want UNSUPPORTED_FORMAT", err)
	}
}

func TestCreateEmptyInput(t *testing.T) {
	svc := NewService(testLogger(), Config{Fs: afero.NewMemMapFs()})
	_, err := svc.Create(context.Background(), &types.CreateRequest{Format: types.FormatZip})
	failure, ok := types.AsFailure(err)
	if !ok || failure.Code != types.FailureCreateFailed {
		t.Fatalf("Create() error = %v, want CREATE_FAILED", err)
	}
}

func TestCreateClassifiesArchiverDiagnostics(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		wantCode types.FailureCode
	}{
		{name: "unsupported method", output: "ERROR: Unsupported method", wantCode: types.FailureUnsupportedFormat},
		{name: "disk full", output: "ERROR: disk full", wantCode: types.FailureCreateFailed},
		{name: "no diagnostics", output: "", wantCode: types.FailureCreateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := func(ctx context.Context, dir, name string, args []string) ([]byte, error) {
				return []byte(tt.output), errors.New("exit status 2")
			}
			svc := NewService(testLogger(), Config{Archiver: "7zz", Fs: afero.NewMemMapFs(), Runner: runner})
			_, err := svc.Create(context.Background(), &types.CreateRequest{
				Format: types.FormatZip,
				Files:  []types.CreateFile{{Path: "a.txt", Data: []byte("x")}},
			})
			failure, ok := types.AsFailure(err)
			if !ok {
				t.Fatalf("Create() error = %v, want failure", err)
			}
			if failure.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", failure.Code, tt.wantCode)
			}
			if tt.output != "" && !strings.Contains(failure.Message, strings.TrimSpace(tt.output)) {
				t.Errorf("message %q does not carry archiver output", failure.Message)
			}
		})
	}
}

func TestCreateSevenZipWithoutArchiver(t *testing.T) {
	svc := NewService(testLogger(), Config{Fs: afero.NewMemMapFs()})
	_, err := svc.Create(context.Background(), &types.CreateRequest{
		Format: types.FormatSevenZip,
		Files:  []types.CreateFile{{Path: "a.txt", Data: []byte("x")}},
	})
	failure, ok := types.AsFailure(err)
	if !ok || failure.Code != types.FailureUnsupportedFormat {
		t.Fatalf("Create(7z, no archiver) error = %v, want UNSUPPORTED_FORMAT", err)
	}
}

func TestBuiltinZipRoundTrip(t *testing.T) {
	svc := NewService(testLogger(), Config{Fs: afero.NewMemMapFs()})
	res, err := svc.Create(context.Background(), &types.CreateRequest{
		Format: types.FormatZip,
		Files: []types.CreateFile{
			{Path: "docs/readme.txt", Data: []byte("hello world")},
			{Path: "data.bin", Data: bytes.Repeat([]byte{0xAB}, 4096)},
		},
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if res.Engine != EngineZipWriter {
		t.Errorf("engine = %q, want %q", res.Engine, EngineZipWriter)
	}
	if res.PasswordProtected {
		t.Error("PasswordProtected = true for plain archive")
	}

	zr, err := zip.NewReader(bytes.NewReader(res.Data), int64(len(res.Data)))
	if err != nil {
		t.Fatalf("reading produced archive: %v", err)
	}
	got := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %q: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %q: %v", f.Name, err)
		}
		got[f.Name] = data
	}
	if string(got["docs/readme.txt"]) != "hello world" {
		t.Errorf("docs/readme.txt = %q", got["docs/readme.txt"])
	}
	if len(got["data.bin"]) != 4096 {
		t.Errorf("data.bin length = %d, want 4096", len(got["data.bin"]))
	}
}

func TestBuiltinZipCompressionLevel(t *testing.T) {
	svc := NewService(testLogger(), Config{Fs: afero.NewMemMapFs()})
	payload := bytes.Repeat([]byte("archive payload "), 8192)

	sizeAt := func(level int) int {
		res, err := svc.Create(context.Background(), &types.CreateRequest{
			Format:           types.FormatZip,
			Files:            []types.CreateFile{{Path: "big.txt", Data: payload}},
			CompressionLevel: &level,
		})
		if err != nil {
			t.Fatalf("Create() at level %d: %v", level, err)
		}
		return len(res.Data)
	}

	stored := sizeAt(0)
	packed := sizeAt(9)
	if packed >= stored {
		t.Errorf("level 9 output (%d bytes) not smaller than level 0 (%d bytes)", packed, stored)
	}
	if stored < len(payload) {
		t.Errorf("level 0 output (%d bytes) smaller than input (%d bytes)", stored, len(payload))
	}
}

func TestBuiltinZipEncrypted(t *testing.T) {
	svc := NewService(testLogger(), Config{Fs: afero.NewMemMapFs()})
	res, err := svc.Create(context.Background(), &types.CreateRequest{
		Format:   types.FormatZip,
		Files:    []types.CreateFile{{Path: "secret.txt", Data: []byte("classified")}},
		Password: "hunter2",
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !res.PasswordProtected {
		t.Error("PasswordProtected = false, want true")
	}

	zr, err := zip.NewReader(bytes.NewReader(res.Data), int64(len(res.Data)))
	if err != nil {
		t.Fatalf("reading produced archive: %v", err)
	}
	if len(zr.File) != 1 {
		t.Fatalf("entry count = %d, want 1", len(zr.File))
	}
	f := zr.File[0]
	if !f.IsEncrypted() {
		t.Fatal("entry is not encrypted")
	}
	f.SetPassword("hunter2")
	rc, err := f.Open()
	if err != nil {
		t.Fatalf("open encrypted entry: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read encrypted entry: %v", err)
	}
	if string(data) != "classified" {
		t.Errorf("decrypted data = %q, want %q", data, "classified")
	}
}

func TestHeaderEncryptionWarningOnZip(t *testing.T) {
	svc := NewService(testLogger(), Config{Fs: afero.NewMemMapFs()})
	res, err := svc.Create(context.Background(), &types.CreateRequest{
		Format:         types.FormatZip,
		Files:          []types.CreateFile{{Path: "a.txt", Data: []byte("x")}},
		EncryptHeaders: true,
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a warning for header encryption on zip")
	}
}
