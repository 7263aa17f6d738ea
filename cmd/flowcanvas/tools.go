package main

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const mermaidASCIIVersion = "1.1.0"

const mermaidASCIIReleaseURL = "https://github.com/AlexanderGrooff/mermaid-ascii/releases/download"

// SHA-256 checksums for mermaid-ascii v1.1.0 release assets.
var mermaidASCIIChecksums = map[string]string{
	"mermaid-ascii_Darwin_arm64.tar.gz":  "068d2ff869d4921655cab471500fffd8c3ed28155b100518ed3cf3835d53d3d0",
	"mermaid-ascii_Darwin_x86_64.tar.gz": "0cd4c9c01a03284fe866f39a1ce1aaee1e6a2fbd91deedc4ec254cb87622eec8",
	"mermaid-ascii_Linux_arm64.tar.gz":   "3b7d0a95141bfbca838e445ea802ffb7fba8873b3c4af498482c84f83526f2db",
	"mermaid-ascii_Linux_x86_64.tar.gz":  "838ea93d561b3bc83aa15531c6ed7d2d261a8edc521d5484f7e91fe831cc4c65",
}

var errChecksumMismatch = errors.New("checksum mismatch")

func runInstallTools(args []string) {
	cfg := loadConfig()
	fs := flag.NewFlagSet("install-tools", flag.ExitOnError)
	binDir := fs.String("bin-dir", cfg.MermaidBinDir, "directory to install tools into")
	force := fs.Bool("force", false, "reinstall even when present")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	inst := installer{client: &http.Client{Timeout: 60 * time.Second}, baseURL: mermaidASCIIReleaseURL}
	path, err := inst.installMermaidASCII(ctx, *binDir, *force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; ASCII diagrams will use the built-in renderer\n", err)
		return
	}
	fmt.Printf("mermaid-ascii available at %s\n", path)
}

// installer downloads release assets from baseURL.
type installer struct {
	client  *http.Client
	baseURL string
	// assetName overrides platform detection.
	assetName string
}

// installMermaidASCII places the mermaid-ascii binary in binDir and returns
// its path. An existing binary is kept unless force is set.
func (in installer) installMermaidASCII(ctx context.Context, binDir string, force bool) (string, error) {
	destPath := filepath.Join(binDir, "mermaid-ascii")
	if !force {
		if _, err := os.Stat(destPath); err == nil {
			return destPath, nil
		}
	}

	asset := in.assetName
	if asset == "" {
		var err error
		if asset, err = mermaidASCIIAssetName(runtime.GOOS, runtime.GOARCH); err != nil {
			return "", err
		}
	}
	expected, ok := mermaidASCIIChecksums[asset]
	if !ok {
		return "", fmt.Errorf("no known checksum for %s", asset)
	}

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", binDir, err)
	}

	url := fmt.Sprintf("%s/%s/%s", in.baseURL, mermaidASCIIVersion, asset)
	tmpPath, err := downloadToTempFile(ctx, in.client, url, binDir)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", asset, err)
	}
	defer os.Remove(tmpPath)

	actual, err := sha256File(tmpPath)
	if err != nil {
		return "", err
	}
	if actual != expected {
		return "", fmt.Errorf("%w for %s: expected %s, got %s", errChecksumMismatch, asset, expected, actual)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := extractTarGz(f, binDir, "mermaid-ascii"); err != nil {
		_ = os.Remove(destPath)
		return "", fmt.Errorf("extract: %w", err)
	}
	return destPath, os.Chmod(destPath, 0o755)
}

// mermaidASCIIAssetName returns the release asset name for a platform.
func mermaidASCIIAssetName(goos, goarch string) (string, error) {
	var osName, archName string
	switch goos {
	case "darwin":
		osName = "Darwin"
	case "linux":
		osName = "Linux"
	default:
		return "", fmt.Errorf("mermaid-ascii: unsupported OS %q", goos)
	}
	switch goarch {
	case "amd64":
		archName = "x86_64"
	case "arm64":
		archName = "arm64"
	default:
		return "", fmt.Errorf("mermaid-ascii: unsupported architecture %q", goarch)
	}
	return fmt.Sprintf("mermaid-ascii_%s_%s.tar.gz", osName, archName), nil
}

// extractTarGz extracts the regular file named targetName from a tar.gz
// archive into destDir. Directory prefixes in the archive are ignored.
func extractTarGz(r io.Reader, destDir, targetName string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("file %q not found in archive", targetName)
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}
		if filepath.Base(hdr.Name) != targetName || hdr.Typeflag != tar.TypeReg {
			continue
		}

		destPath := filepath.Join(destDir, targetName)
		f, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
		if err != nil {
			return fmt.Errorf("create %s: %w", destPath, err)
		}
		if _, err := io.Copy(f, tr); err != nil { //nolint:gosec // bounded by tar header size
			f.Close()
			return fmt.Errorf("write %s: %w", destPath, err)
		}
		return f.Close()
	}
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// downloadToTempFile downloads url into a temporary file in dir and returns
// its path. The caller removes it.
func downloadToTempFile(ctx context.Context, client *http.Client, url, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned %d", resp.StatusCode)
	}

	f, err := os.CreateTemp(dir, "download-*")
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
