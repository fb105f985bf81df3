package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// stageRequest describes one fetch-and-post upload leg.
type stageRequest struct {
	sourceURL string
	field     string
	filename  string
	uploadURL string
	// followRedirect fetches the Location header target instead of the
	// first response body; document source URLs redirect once to the real
	// file location.
	followRedirect bool
}

// stageAndUpload fetches the source media into a temporary file, posts it
// as multipart form data to the upload target, and decodes the target's
// JSON response into out. The source stream is not seekable, so the bytes
// are staged on disk to give the multipart encoder a rewindable read. The
// staging file is removed once the upload response has been read, on
// success and failure alike.
func (t *Transcoder) stageAndUpload(ctx context.Context, req stageRequest, out any) error {
	path, err := t.stage(ctx, req.sourceURL, req.filename, req.followRedirect)
	if err != nil {
		return err
	}
	defer func() {
		if removeErr := os.Remove(path); removeErr != nil {
			t.log.Warn("Failed to remove staging file", "path", path, "error", removeErr)
		}
	}()

	return t.upload(ctx, path, req.field, req.filename, req.uploadURL, out)
}

// stage downloads the source media to a uniquely named temporary file and
// returns its path. On any failure the partial file is removed before
// returning.
func (t *Transcoder) stage(ctx context.Context, sourceURL, filename string, followRedirect bool) (string, error) {
	fetchURL := sourceURL
	if followRedirect {
		located, err := t.resolveRedirect(ctx, sourceURL)
		if err != nil {
			return "", err
		}
		fetchURL = located
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return "", fmt.Errorf("build fetch request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch source media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch source media: unexpected status %d", resp.StatusCode)
	}

	path := filepath.Join(os.TempDir(), stagingName(filename))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("write staging file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close staging file: %w", err)
	}

	return path, nil
}

// resolveRedirect performs the first fetch without following redirects and
// returns the Location target. A direct 200 is accepted as-is.
func (t *Transcoder) resolveRedirect(ctx context.Context, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("build redirect probe: %w", err)
	}

	noFollow := &http.Client{
		Timeout: t.httpClient.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := noFollow.Do(req)
	if err != nil {
		return "", fmt.Errorf("probe source location: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		location := resp.Header.Get("Location")
		if location == "" {
			return "", fmt.Errorf("redirect status %d without location header", resp.StatusCode)
		}
		return location, nil
	case resp.StatusCode == http.StatusOK:
		return sourceURL, nil
	default:
		return "", fmt.Errorf("probe source location: unexpected status %d", resp.StatusCode)
	}
}

// upload posts the staged file as multipart form data and decodes the
// target's JSON response.
func (t *Transcoder) upload(ctx context.Context, path, field, filename, uploadURL string, out any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open staging file: %w", err)
	}
	defer file.Close()

	var body strings.Builder
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile(field, filepath.Base(sanitizeFilename(filename)))
	if err != nil {
		return fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("encode multipart form: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("finish multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, strings.NewReader(body.String()))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post upload: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post upload: unexpected status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode upload response: %w", err)
	}

	return nil
}

// stagingName builds a collision-free temp file name that keeps the
// original extension so upload targets can sniff the media type.
func stagingName(filename string) string {
	base := sanitizeFilename(filename)
	if base == "" || base == "." {
		base = "attachment"
	}

	return "anonwall_" + uuid.NewString()[:8] + "_" + base
}

// sanitizeFilename strips path components and traversal attempts from a
// user-supplied name.
func sanitizeFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.ReplaceAll(base, "..", "")
	base = strings.ReplaceAll(base, "/", "_")
	base = strings.ReplaceAll(base, "\\", "_")

	return base
}
