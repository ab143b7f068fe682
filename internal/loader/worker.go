package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/esm-dev/esmd/internal/deno"
	"github.com/esm-dev/esmd/internal/logx"
	"github.com/goccy/go-json"
)

// Worker runs a javascript file with deno and talks to it over stdio. A call
// writes its arguments as one JSON line to the stdin, the script answers
// with a `>>>flag:json-string` line on the stdout.
type Worker struct {
	// WorkDir is where the script file and the deno binary are stored
	WorkDir string
	// DenoPath overrides the deno binary, e.g. a system-wide installation
	DenoPath string
	// Name is the file name of the script
	Name   string
	Script []byte
	Logger logx.Logger

	lock      sync.Mutex
	stdin     io.WriteCloser
	outReader *bufio.Reader
	process   *os.Process
}

func (w *Worker) logger() logx.Logger {
	if w.Logger == nil {
		return logx.Discard
	}
	return w.Logger
}

// Start writes the script to the work directory and starts deno.
func (w *Worker) Start() (err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.process != nil {
		return errors.New("worker already started")
	}

	jsPath := filepath.Join(w.WorkDir, "run", w.Name)
	fi, err := os.Stat(jsPath)
	if err != nil || fi.Size() != int64(len(w.Script)) {
		err = os.MkdirAll(filepath.Dir(jsPath), 0755)
		if err != nil {
			return
		}
		err = os.WriteFile(jsPath, w.Script, 0644)
		if err != nil {
			return
		}
	}

	denoPath := w.DenoPath
	if denoPath == "" {
		denoPath = deno.ResolveDenoPath(w.WorkDir)
		err = deno.CheckDenoPath(denoPath)
		if err != nil {
			return fmt.Errorf("deno not found: %w", err)
		}
	}

	cmd := exec.Command(
		denoPath,
		"run",
		"--allow-read",
		"--allow-env",
		"--allow-net",
		"--no-prompt",
		"--no-config",
		"--no-lock",
		"--quiet",
		jsPath,
	)
	cmd.Env = append(os.Environ(), "DENO_NO_UPDATE_CHECK=1", "DENO_NO_PACKAGE_JSON=1")
	cmd.Dir = w.WorkDir
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return
	}

	err = cmd.Start()
	if err != nil {
		return
	}

	w.stdin = stdin
	w.outReader = bufio.NewReader(stdout)
	w.process = cmd.Process
	go cmd.Wait()

	denoVersion, _ := exec.Command(denoPath, "-v").Output()
	w.logger().Debugf("worker %s started (runtime: %s)", w.Name, strings.TrimSpace(string(denoVersion)))
	return
}

// Stop kills the deno process.
func (w *Worker) Stop() {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.process != nil {
		w.stdin.Close()
		w.process.Kill()
		w.process = nil
		w.logger().Debugf("worker %s stopped", w.Name)
	}
	w.stdin = nil
	w.outReader = nil
}

// Call invokes a function of the script, the first argument is the function name.
func (w *Worker) Call(args ...any) (flag string, output string, err error) {
	// only one call can be invoked at a time
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.outReader == nil {
		err = errors.New("worker not started")
		return
	}

	start := time.Now()
	defer func() {
		w.logger().Debugf("call %s#%v in %s", w.Name, args[0], time.Since(start))
	}()

	err = json.NewEncoder(w.stdin).Encode(args)
	if err != nil {
		return
	}
	for {
		var line []byte
		line, err = w.outReader.ReadBytes('\n')
		if err != nil {
			return
		}
		var ok bool
		flag, output, ok, err = parseMessage(line)
		if !ok {
			continue
		}
		if err != nil {
			return
		}
		switch flag {
		case "debug":
			w.logger().Debugf("[%s] %s", w.Name, output)
		case "error":
			err = errors.New(output)
			return
		default:
			return
		}
	}
}

// parseMessage parses a `>>>flag:json-string` line, other lines are ignored.
func parseMessage(line []byte) (flag string, output string, ok bool, err error) {
	if len(line) <= 3 || !bytes.HasPrefix(line, []byte(">>>")) {
		return
	}
	data := line[3:]
	index := bytes.IndexByte(data, ':')
	if index == -1 {
		// ignore invalid message
		return
	}
	ok = true
	flag = string(data[:index])
	err = json.Unmarshal(bytes.TrimSpace(data[index+1:]), &output)
	return
}
