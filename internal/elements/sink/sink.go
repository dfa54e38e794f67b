// Package sink implements the built-in "Sink/system" elements: DownloadFile,
// Cli, FileInfo, Find, Path (§4.9).
package sink

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"

	"github.com/conduit-run/conduit/internal/model"
	"github.com/conduit-run/conduit/internal/registry"
	"github.com/conduit-run/conduit/internal/runerr"
)

func init() {
	registry.Register(registry.Descriptor{
		ID:      "conduit.DownloadFile",
		Summary: "download a URL item to local disk",
		CtorParams: model.Schema{
			{Name: "output_dir", Type: model.FieldString, Required: true},
			{Name: "filename", Type: model.FieldString},
			{Name: "create_dirs", Type: model.FieldBool, Default: true},
			{Name: "overwrite", Type: model.FieldBool, Default: false},
		},
		InputSchema: model.Schema{{Name: "input", Type: model.FieldString}},
		New:         newDownloadFile,
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.Cli",
		Summary: "run a command, optionally capturing its output",
		CtorParams: model.Schema{
			{Name: "command", Type: model.FieldString, Required: true},
			{Name: "args", Type: model.FieldList},
			{Name: "capture_output", Type: model.FieldBool, Default: true},
			{Name: "shell", Type: model.FieldBool, Default: false},
		},
		InputSchema: model.Schema{{Name: "input", Type: model.FieldAny}},
		New:         newCli,
	})
	registry.Register(registry.Descriptor{
		ID:          "conduit.FileInfo",
		Summary:     "stat a path item, yielding size/mtime/content-type",
		InputSchema: model.Schema{{Name: "input", Type: model.FieldString}},
		New:         newFileInfo,
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.Find",
		Summary: "walk a directory, yielding matching entries",
		CtorParams: model.Schema{
			{Name: "path", Type: model.FieldString, Required: true},
			{Name: "name", Type: model.FieldString},
			{Name: "type", Type: model.FieldString, Default: "file"},
			{Name: "max_depth", Type: model.FieldInt, Default: -1},
		},
		New: newFind,
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.Path",
		Summary: "path arithmetic (join/dirname/basename/...) over an item",
		CtorParams: model.Schema{
			{Name: "operation", Type: model.FieldString, Required: true},
			{Name: "parts", Type: model.FieldList},
		},
		InputSchema: model.Schema{{Name: "input", Type: model.FieldString}},
		New:         newPath,
	})
}

// DownloadFile downloads a URL item to output_dir.
type DownloadFile struct {
	outputDir  string
	filename   string
	createDirs bool
	overwrite  bool
}

func newDownloadFile(args map[string]any) (registry.Element, error) {
	dir, _ := args["output_dir"].(string)
	if dir == "" {
		return nil, runerr.New(runerr.KindElementInitError, "DownloadFile requires output_dir")
	}
	name, _ := args["filename"].(string)
	createDirs := true
	if v, ok := args["create_dirs"].(bool); ok {
		createDirs = v
	}
	overwrite, _ := args["overwrite"].(bool)
	return &DownloadFile{outputDir: dir, filename: name, createDirs: createDirs, overwrite: overwrite}, nil
}

func (e *DownloadFile) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	if e.createDirs {
		if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
			return runerr.Wrap(runerr.KindResourceError, err, "creating output_dir %q", e.outputDir)
		}
	}
	for rec := range in {
		url, _ := rec["input"].(string)
		name := e.filename
		if name == "" {
			name = filepath.Base(url)
		}
		dest := filepath.Join(e.outputDir, name)
		if !e.overwrite {
			if _, err := os.Stat(dest); err == nil {
				select {
				case out <- model.Record{"input": dest}:
				case <-ctx.Done():
					return ctx.Err()
				}
				continue
			}
		}
		if err := downloadTo(ctx, url, dest); err != nil {
			return runerr.Wrap(runerr.KindItemError, err, "downloading %q", url)
		}
		select {
		case out <- model.Record{"input": dest}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func downloadTo(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

// Cli runs command with args per item, optionally capturing stdout/stderr.
type Cli struct {
	command       string
	args          []string
	captureOutput bool
	shell         bool
}

func newCli(args map[string]any) (registry.Element, error) {
	cmd, _ := args["command"].(string)
	if cmd == "" {
		return nil, runerr.New(runerr.KindElementInitError, "Cli requires a non-empty command")
	}
	var argv []string
	if raw, ok := args["args"].([]any); ok {
		for _, a := range raw {
			argv = append(argv, toString(a))
		}
	}
	capture := true
	if v, ok := args["capture_output"].(bool); ok {
		capture = v
	}
	shell, _ := args["shell"].(bool)
	return &Cli{command: cmd, args: argv, captureOutput: capture, shell: shell}, nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func (e *Cli) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for rec := range in {
		result, err := e.runOnce(ctx, rec["input"])
		if err != nil {
			return err
		}
		select {
		case out <- result:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (e *Cli) runOnce(ctx context.Context, item any) (model.Record, error) {
	var cmd *exec.Cmd
	if e.shell {
		full := e.command
		if extra, ok := item.(string); ok && extra != "" {
			full += " " + extra
		}
		cmd = exec.CommandContext(ctx, "sh", "-c", full)
	} else {
		argv := append([]string{}, e.args...)
		if extra, ok := item.(string); ok && extra != "" {
			argv = append(argv, extra)
		}
		cmd = exec.CommandContext(ctx, e.command, argv...)
	}
	if !e.captureOutput {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		err := cmd.Run()
		return model.Record{"input": item}, wrapExitErr(err)
	}
	outBytes, err := cmd.Output()
	if err != nil {
		return nil, wrapExitErr(err)
	}
	return model.Record{"input": strings.TrimRight(string(outBytes), "\n")}, nil
}

func wrapExitErr(err error) error {
	if err == nil {
		return nil
	}
	return runerr.Wrap(runerr.KindItemError, err, "Cli command failed")
}

// FileInfo stats a path item, yielding size/mtime/content-type, using
// gabriel-vasile/mimetype for content sniffing (stdlib has no MIME
// detection beyond the extension-keyed net/http table).
type FileInfo struct{}

func newFileInfo(map[string]any) (registry.Element, error) { return &FileInfo{}, nil }

func (e *FileInfo) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for rec := range in {
		path, _ := rec["input"].(string)
		info, err := os.Stat(path)
		if err != nil {
			return runerr.Wrap(runerr.KindItemError, err, "stat %q", path)
		}
		mime, err := mimetype.DetectFile(path)
		contentType := "application/octet-stream"
		if err == nil {
			contentType = mime.String()
		}
		result := model.Record{
			"input":        path,
			"size":         info.Size(),
			"mtime":        info.ModTime(),
			"content_type": contentType,
			"is_dir":       info.IsDir(),
		}
		select {
		case out <- result:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Find walks path, yielding matching entries. Grounded on
// charlievieth/fastwalk for the concurrent directory walk the original's
// os.walk-based Find element performs serially
// (_examples/original_source/src/conduit/elements).
type Find struct {
	path     string
	name     string
	typ      string
	maxDepth int
}

func newFind(args map[string]any) (registry.Element, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return nil, runerr.New(runerr.KindElementInitError, "Find requires a non-empty path")
	}
	name, _ := args["name"].(string)
	typ, _ := args["type"].(string)
	if typ == "" {
		typ = "file"
	}
	depth := -1
	if v, ok := args["max_depth"].(int); ok {
		depth = v
	}
	return &Find{path: path, name: name, typ: typ, maxDepth: depth}, nil
}

func (e *Find) IsSource() bool { return true }

func (e *Find) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for range in {
	}
	var sendErr error
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, e.path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if e.maxDepth >= 0 && depthOf(e.path, p) > e.maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if e.typ == "file" && d.IsDir() {
			return nil
		}
		if e.typ == "dir" && !d.IsDir() {
			return nil
		}
		if e.name != "" {
			if matched, _ := filepath.Match(e.name, filepath.Base(p)); !matched {
				return nil
			}
		}
		select {
		case out <- model.Record{"input": p}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		sendErr = runerr.Wrap(runerr.KindItemError, err, "Find walking %q", e.path)
	}
	return sendErr
}

func depthOf(root, p string) int {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return 0
	}
	if rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// Path performs path arithmetic over a string item.
type Path struct {
	operation string
	parts     []string
}

func newPath(args map[string]any) (registry.Element, error) {
	op, _ := args["operation"].(string)
	if op == "" {
		return nil, runerr.New(runerr.KindElementInitError, "Path requires a non-empty operation")
	}
	var parts []string
	if raw, ok := args["parts"].([]any); ok {
		for _, p := range raw {
			parts = append(parts, toString(p))
		}
	}
	return &Path{operation: op, parts: parts}, nil
}

func (e *Path) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for rec := range in {
		s, _ := rec["input"].(string)
		var result string
		switch e.operation {
		case "join":
			elems := append([]string{s}, e.parts...)
			result = filepath.Join(elems...)
		case "dirname":
			result = filepath.Dir(s)
		case "basename":
			result = filepath.Base(s)
		case "extension":
			result = filepath.Ext(s)
		case "abs":
			result, _ = filepath.Abs(s)
		default:
			return runerr.New(runerr.KindElementInitError, "Path: unknown operation %q", e.operation)
		}
		select {
		case out <- model.Record{"input": result}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
