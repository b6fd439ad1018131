package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	homedir "github.com/mitchellh/go-homedir"
)

// DefaultRepo is the remote repository holding the inference graphs and
// voice binaries.
const DefaultRepo = "onnx-community/Supertonic-TTS-2-ONNX"

const defaultBaseURL = "https://huggingface.co"

// ExpandPath resolves a leading ~ in user-supplied paths.
func ExpandPath(path string) (string, error) {
	return homedir.Expand(path)
}

// download fetches one repository file to dest. Writes go through a temp
// file in the destination directory so a partial download never
// masquerades as a complete asset.
func (m *Manager) download(ctx context.Context, remote, dest string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	url := fmt.Sprintf("%s/%s/resolve/main/%s", m.baseURL, m.repoID, remote)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %s", ErrDownloadFailed, url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating asset directory: %w", err)
	}

	tempPath := filepath.Join(filepath.Dir(dest), "."+uuid.NewString()+".part")
	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	start := time.Now()
	n, err := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return closeErr
	}

	if err := os.Rename(tempPath, dest); err != nil {
		os.Remove(tempPath)
		return err
	}

	m.logger.Info("downloaded asset",
		"file", remote,
		"size", humanize.Bytes(uint64(n)),
		"took", time.Since(start).Round(time.Millisecond))
	return nil
}
