// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.mau.fi/util/exmime"

	"github.com/aiku/satori-telegram/pkg/connector/satorifmt"
)

var dataURIHeader = regexp.MustCompile(`^data:([\w/.+-]+);base64,`)

// fileFetcher resolves attachment sources into raw bytes. It accepts data:
// URIs with base64 payloads, file: paths, and http(s) URLs.
type fileFetcher struct {
	client         *http.Client
	defaultTimeout time.Duration
}

var _ satorifmt.Fetcher = (*fileFetcher)(nil)

func newFileFetcher(defaultTimeoutSeconds int) *fileFetcher {
	return &fileFetcher{
		client:         &http.Client{},
		defaultTimeout: time.Duration(defaultTimeoutSeconds) * time.Second,
	}
}

// Fetch downloads one attachment. name, when non-empty, overrides the
// filename inferred from the source; timeoutSeconds of zero applies the
// configured default.
func (f *fileFetcher) Fetch(ctx context.Context, src, name string, timeoutSeconds int) (*satorifmt.DownloadedFile, error) {
	if src == "" {
		return nil, fmt.Errorf("attachment has no source")
	}

	if match := dataURIHeader.FindStringSubmatch(src); match != nil {
		return f.fetchDataURI(src[len(match[0]):], match[1], name)
	}

	if path, ok := strings.CutPrefix(src, "file://"); ok {
		return f.fetchLocal(path, name)
	}
	if path, ok := strings.CutPrefix(src, "file:"); ok {
		return f.fetchLocal(path, name)
	}

	timeout := f.defaultTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return f.fetchHTTP(ctx, src, name, timeout)
}

func (f *fileFetcher) fetchDataURI(payload, mimeType, name string) (*satorifmt.DownloadedFile, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URI: %w", err)
	}
	if name == "" {
		name = "file" + exmime.ExtensionFromMimetype(mimeType)
	}
	return &satorifmt.DownloadedFile{Filename: name, Data: data, MIME: mimeType}, nil
}

func (f *fileFetcher) fetchLocal(path, name string) (*satorifmt.DownloadedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read local file: %w", err)
	}
	if name == "" {
		name = filepath.Base(path)
	}
	return &satorifmt.DownloadedFile{
		Filename: name,
		Data:     data,
		MIME:     mime.TypeByExtension(filepath.Ext(path)),
	}, nil
}

func (f *fileFetcher) fetchHTTP(ctx context.Context, src, name string, timeout time.Duration) (*satorifmt.DownloadedFile, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid attachment URL: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment download returned %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment body: %w", err)
	}

	mimeType := trimContentType(resp.Header.Get("Content-Type"))
	if name == "" {
		name = filenameFromURL(src, mimeType)
	}
	return &satorifmt.DownloadedFile{Filename: name, Data: data, MIME: mimeType}, nil
}

// trimContentType strips the parameter part of a Content-Type header value.
func trimContentType(value string) string {
	if i := strings.IndexAny(value, ";,"); i >= 0 {
		value = value[:i]
	}
	return strings.TrimSpace(value)
}

func filenameFromURL(src, mimeType string) string {
	if parsed, err := url.Parse(src); err == nil {
		if base := filepath.Base(parsed.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return "file" + exmime.ExtensionFromMimetype(mimeType)
}
