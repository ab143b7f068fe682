package deno

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/esm-dev/esmd/internal/fetch"
	"github.com/ije/gox/utils"
)

// version of deno to download when no usable deno is installed
const version = "2.1.4"

// the compiler worker needs `npm:` specifiers and `Deno.stdin.readable`
var minVersion = semver.MustParse("1.40.0")

// ResolveDenoPath returns the path of the deno binary managed in the work directory.
func ResolveDenoPath(workDir string) string {
	denoPath := filepath.Join(workDir, "bin", "deno")
	if runtime.GOOS == "windows" {
		denoPath += ".exe"
	}
	return denoPath
}

// CheckDenoPath ensures a usable deno binary at the path: a system-wide
// installation is linked if possible, otherwise deno is downloaded.
func CheckDenoPath(denoPath string) (err error) {
	fi, err := os.Lstat(denoPath)
	if err == nil {
		if !fi.IsDir() && validateDenoPath(denoPath) == nil {
			return nil
		}
		os.RemoveAll(denoPath)
	}

	err = os.MkdirAll(filepath.Dir(denoPath), 0755)
	if err != nil {
		return
	}

	// check system installed deno
	systemDenoPath, err := exec.LookPath("deno")
	if err == nil && validateDenoPath(systemDenoPath) == nil {
		if runtime.GOOS == "windows" {
			_, err = utils.CopyFile(systemDenoPath, denoPath)
		} else {
			err = os.Symlink(systemDenoPath, denoPath)
		}
		return
	}

	return installDeno(denoPath, version)
}

func installDeno(installPath string, version string) (err error) {
	url, err := getDenoDownloadURL(version)
	if err != nil {
		return
	}

	client, recycle := fetch.NewClient("esmd", 5*time.Minute)
	defer recycle()

	zipFile, err := client.Download(context.Background(), url, "deno-*.zip")
	if err != nil {
		return fmt.Errorf("failed to download deno: %w", err)
	}
	defer os.Remove(zipFile)

	zr, err := zip.OpenReader(zipFile)
	if err != nil {
		return
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if zf.Name != "deno" && zf.Name != "deno.exe" {
			continue
		}
		r, err := zf.Open()
		if err != nil {
			return err
		}
		defer r.Close()

		f, err := os.OpenFile(installPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(f, r)
		return err
	}
	return errors.New("deno binary not found in the download package")
}

func getDenoDownloadURL(version string) (string, error) {
	var arch string
	var os string

	switch runtime.GOARCH {
	case "arm64":
		arch = "aarch64"
	case "amd64":
		arch = "x86_64"
	default:
		return "", errors.New("unsupported architecture: " + runtime.GOARCH)
	}

	switch runtime.GOOS {
	case "darwin":
		os = "apple-darwin"
	case "linux":
		os = "unknown-linux-gnu"
	case "windows":
		os = "pc-windows-msvc"
	default:
		return "", errors.New("unsupported os: " + runtime.GOOS)
	}

	return fmt.Sprintf("https://github.com/denoland/deno/releases/download/v%s/deno-%s-%s.zip", version, arch, os), nil
}

func validateDenoPath(denoPath string) error {
	output, err := exec.Command(denoPath, "eval", "console.log(Deno.version.deno)").Output()
	if err != nil {
		return err
	}
	return checkVersion(strings.TrimSpace(string(output)))
}

func checkVersion(v string) error {
	denoVersion, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("invalid deno version %q", v)
	}
	if denoVersion.LessThan(minVersion) {
		return fmt.Errorf("deno %s is too old, requires %s+", v, minVersion)
	}
	return nil
}
