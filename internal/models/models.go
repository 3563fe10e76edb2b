// Package models resolves and provisions the whisper.cpp model cache.
// The server only reads the cache; Fetch is used by the fetch-model tool.
package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultBaseURL is where ggml whisper models are published.
const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// FileName returns the cache file name for a model identifier, e.g. "small" -> "ggml-small.bin".
func FileName(id string) string {
	return "ggml-" + id + ".bin"
}

// Path returns where the model with the given identifier lives in cacheDir.
// An identifier that is itself a path to a .bin file is returned unchanged.
func Path(cacheDir, id string) string {
	if strings.HasSuffix(id, ".bin") && strings.ContainsRune(id, os.PathSeparator) {
		return id
	}
	return filepath.Join(cacheDir, FileName(id))
}

// ValidateIdentifier rejects identifiers that cannot be turned into a file name.
func ValidateIdentifier(id string) error {
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid model identifier %q", id)
	}
	return nil
}

// Fetcher downloads models into a cache directory.
type Fetcher struct {
	BaseURL string
	Client  *http.Client
	Out     io.Writer
}

// Fetch downloads the model into cacheDir unless it is already there and
// returns its path. The file is written to a .tmp sibling first and renamed
// into place, so a partial download never looks like a cached model.
func (f *Fetcher) Fetch(ctx context.Context, id, cacheDir string) (string, error) {
	if err := ValidateIdentifier(id); err != nil {
		return "", err
	}

	out := f.Out
	if out == nil {
		out = io.Discard
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	baseURL := f.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating models dir: %w", err)
	}

	destPath := Path(cacheDir, id)
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		fmt.Fprintf(out, "  Model already cached: %s (%.0f MB)\n", destPath, float64(info.Size())/(1024*1024))
		return destPath, nil
	}

	url := baseURL + "/" + FileName(id)
	fmt.Fprintf(out, "  Downloading %s\n", url)
	fmt.Fprintf(out, "  Destination: %s\n", destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	tmpPath := destPath + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	pw := &progressWriter{
		writer: file,
		out:    out,
		total:  resp.ContentLength,
		label:  FileName(id),
	}

	written, err := io.Copy(pw, resp.Body)
	file.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing model file: %w", err)
	}
	if written == 0 {
		os.Remove(tmpPath)
		return "", fmt.Errorf("download returned an empty body")
	}

	fmt.Fprintf(out, "\n  Downloaded %.1f MB\n", float64(written)/(1024*1024))

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("moving model file: %w", err)
	}
	return destPath, nil
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}
