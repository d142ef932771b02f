// Package staging prepares and invokes the three external native tools
// (location, relocation, focal mechanism). Each tool's plugin directory is
// copied into a fresh per-run scratch directory, its executable resolved by
// OS and architecture, and its process environment isolated. Invocation
// captures output and exit status; a nonzero exit is returned as data, not
// as an error.
package staging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mdobak/go-xerrors"

	"github.com/quakelab/seispick/internal/observability"
)

// CallResult carries a finished tool invocation's captured streams and exit
// status.
type CallResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// OK reports whether the tool exited with status zero.
func (r CallResult) OK() bool { return r.ExitCode == 0 }

// descriptor is the capability set every staged tool shares.
type descriptor struct {
	Name  string
	Dir   string
	Files ToolFilenames // resolved to absolute paths inside Dir
	Env   []string
	// Shell wraps the invocation in the system shell; resolved once at
	// staging time from the host OS.
	Shell bool

	logger  *slog.Logger
	metrics *observability.Metrics
}

// LocationTool runs the grid-search locator. It takes a control file path as
// its argument and scatters its outputs under run-specific names that are
// renamed to canonical ones after every call.
type LocationTool struct {
	descriptor
}

// RelocationTool runs the relocation program, which reads its control file
// from standard input and needs its data directory exported in the
// environment.
type RelocationTool struct {
	descriptor
}

// FocalMechanismTool runs the focal mechanism search. It takes no arguments
// and communicates solely through its fixed file names.
type FocalMechanismTool struct {
	descriptor
}

// Workspace is the per-run scratch directory holding all staged tools.
// It belongs to a single run; concurrent reuse is not supported.
type Workspace struct {
	Dir     string
	NLLoc   *LocationTool
	Hyp2000 *RelocationTool
	FocMec  *FocalMechanismTool
}

// Remove deletes the scratch directory and everything staged into it.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.Dir)
}

// Setup stages all three tools from the plugin directory into a fresh
// scratch directory. A missing plugin directory is a fatal setup error,
// raised before any staging work begins.
func Setup(pluginPath string, programs ProgramsFile, logger *slog.Logger, metrics *observability.Metrics) (*Workspace, error) {
	info, err := os.Stat(pluginPath)
	if err != nil || !info.IsDir() {
		return nil, xerrors.New(fmt.Sprintf("no such plugin directory: %q", pluginPath))
	}

	scratch, err := os.MkdirTemp("", "seispick-")
	if err != nil {
		return nil, xerrors.New(err)
	}

	shell := runtime.GOOS == "windows"
	stage := func(name string, files ToolFilenames) (descriptor, error) {
		src := filepath.Join(pluginPath, name)
		dst := filepath.Join(scratch, name)
		if err := copyTree(src, dst); err != nil {
			return descriptor{}, xerrors.New(err)
		}
		return newDescriptor(name, dst, files, shell, logger, metrics), nil
	}

	w := &Workspace{Dir: scratch}

	nlloc, err := stage("nlloc", programs.NLLoc)
	if err != nil {
		return nil, err
	}
	w.NLLoc = &LocationTool{descriptor: nlloc}

	hyp, err := stage("hyp2000", programs.Hyp2000)
	if err != nil {
		return nil, err
	}
	hyp.Env = append(hyp.Env, "HYP2000_DATA="+hyp.Dir+string(os.PathSeparator))
	w.Hyp2000 = &RelocationTool{descriptor: hyp}

	focmec, err := stage("focmec", programs.FocMec)
	if err != nil {
		return nil, err
	}
	w.FocMec = &FocalMechanismTool{descriptor: focmec}

	logger.Info("external programs staged", "dir", scratch)
	return w, nil
}

// newDescriptor resolves file paths, the platform-specific executable name
// and the isolated process environment for one tool.
func newDescriptor(name, dir string, files ToolFilenames, shell bool, logger *slog.Logger, metrics *observability.Metrics) descriptor {
	files.Exe = filepath.Join(dir, fmt.Sprintf("%s__%s__%s", files.Exe, runtime.GOOS, runtime.GOARCH))
	files.Control = joinIfSet(dir, files.Control)
	files.Phases = joinIfSet(dir, files.Phases)
	files.Stations = joinIfSet(dir, files.Stations)
	files.Summary = joinIfSet(dir, files.Summary)
	files.Scatter = joinIfSet(dir, files.Scatter)

	env := []string{"PATH=" + dir + string(os.PathListSeparator) + os.Getenv("PATH")}
	if root, ok := os.LookupEnv("SystemRoot"); ok {
		env = append(env, "SystemRoot="+root)
	}

	return descriptor{
		Name:    name,
		Dir:     dir,
		Files:   files,
		Env:     env,
		Shell:   shell,
		logger:  logger,
		metrics: metrics,
	}
}

func joinIfSet(dir, name string) string {
	if name == "" {
		return ""
	}
	return filepath.Join(dir, name)
}

// copyTree copies a directory recursively, preserving symbolic links and
// file modes. Plugin directories link in their large model files, so links
// must survive the copy.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// run executes the staged binary with the descriptor's directory,
// environment and optional stdin, capturing both output streams. Only
// failures to start the process are errors; a nonzero exit lands in the
// result.
func (d *descriptor) run(ctx context.Context, stdin io.Reader, args ...string) (CallResult, error) {
	var cmd *exec.Cmd
	if d.Shell {
		line := strings.Join(append([]string{d.Files.Exe}, args...), " ")
		cmd = exec.CommandContext(ctx, "cmd", "/C", line)
	} else {
		cmd = exec.CommandContext(ctx, d.Files.Exe, args...)
	}
	cmd.Dir = d.Dir
	cmd.Env = d.Env
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CallResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			d.metrics.ToolInvocations.WithLabelValues(d.Name, "failed").Inc()
			return result, fmt.Errorf("run %s: %w", d.Name, err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	outcome := "ok"
	if !result.OK() {
		outcome = "failed"
	}
	d.metrics.ToolInvocations.WithLabelValues(d.Name, outcome).Inc()
	d.logger.Info("external tool finished", "tool", d.Name, "exit_code", result.ExitCode)
	return result, nil
}

// removeFiles deletes any of the given paths that exist.
func removeFiles(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// removeGlob deletes every file matching the pattern inside the tool dir.
func removeGlob(pattern string) error {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	return removeFiles(matches...)
}

// PreCall deletes stale locator outputs from previous invocations.
func (t *LocationTool) PreCall() error {
	return removeGlob(filepath.Join(t.Dir, "nlloc*"))
}

// Call runs the locator with the given control file path as its argument,
// then renames the run-specific scatter and summary outputs to their
// canonical names.
func (t *LocationTool) Call(ctx context.Context, controlFile string) (CallResult, error) {
	result, err := t.run(ctx, nil, controlFile)
	if err != nil {
		return result, err
	}
	renames := []struct{ pattern, target string }{
		{"nlloc.*.*.*.loc.scat", t.Files.Scatter},
		{"nlloc.*.*.*.loc.hyp", t.Files.Summary},
	}
	for _, r := range renames {
		matches, err := filepath.Glob(filepath.Join(t.Dir, r.pattern))
		if err != nil {
			return result, err
		}
		for _, m := range matches {
			if err := os.Rename(m, r.target); err != nil {
				return result, fmt.Errorf("rename locator output: %w", err)
			}
		}
	}
	return result, nil
}

// PreCall deletes the relocation program's stale inputs and outputs.
func (t *RelocationTool) PreCall() error {
	return removeFiles(t.Files.Phases, t.Files.Stations, t.Files.Summary)
}

// Call runs the relocation program, piping the staged control file to its
// standard input.
func (t *RelocationTool) Call(ctx context.Context) (CallResult, error) {
	control, err := os.Open(t.Files.Control)
	if err != nil {
		return CallResult{}, fmt.Errorf("open control file: %w", err)
	}
	defer control.Close()
	return t.run(ctx, control)
}

// PreCall deletes stale focal mechanism outputs.
func (t *FocalMechanismTool) PreCall() error {
	return removeFiles(t.Files.Summary)
}

// Call runs the focal mechanism search. The tool takes no arguments.
func (t *FocalMechanismTool) Call(ctx context.Context) (CallResult, error) {
	return t.run(ctx, nil)
}
