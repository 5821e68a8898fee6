// Package artifacts downloads what a finished session left behind
package artifacts

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shehryarbajwa/browserkube-console/internal/logging"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// historyPageSize is the page size used when pulling a whole command log
const historyPageSize = 100

// API is what the bundler needs from the REST client
type API interface {
	Result(ctx context.Context, id string) (models.SessionDetails, error)
	SessionFile(ctx context.Context, id, fileName string) ([]byte, error)
	Commands(ctx context.Context, id, pageToken string, pageSize int) (models.CommandPage, error)
	Screenshots(ctx context.Context, id string) ([]string, error)
	TakeScreenshot(ctx context.Context, id string) error
}

// Manifest describes a bundle
type Manifest struct {
	BundleID  string                `json:"bundleId"`
	SessionID string                `json:"sessionId"`
	CreatedAt time.Time             `json:"createdAt"`
	Details   models.SessionDetails `json:"details"`
	Files     []string              `json:"files"`
	Commands  int                   `json:"commands"`
	Missing   []string              `json:"missing,omitempty"`
}

// Manager builds session bundles
type Manager struct {
	api API
	log zerolog.Logger
}

// NewManager creates an artifacts manager
func NewManager(api API) *Manager {
	return &Manager{api: api, log: logging.For("artifacts")}
}

// Bundle writes a tar.gz with the session's log file, video file, full command history and
// a manifest. Missing log or video files are recorded in the manifest, not treated as errors.
func (m *Manager) Bundle(ctx context.Context, id string, w io.Writer) (Manifest, error) {
	details, err := m.api.Result(ctx, id)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to fetch session details: %w", err)
	}

	manifest := Manifest{
		BundleID:  uuid.New().String(),
		SessionID: id,
		CreatedAt: time.Now().UTC(),
		Details:   details,
	}

	gzWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzWriter)

	for _, name := range []string{details.LogsRefAddr, details.VideoRefAddr} {
		if name == "" {
			continue
		}
		data, err := m.api.SessionFile(ctx, id, name)
		if err != nil {
			m.log.Warn().Err(err).Str("session_id", id).Str("file", name).Msg("⚠️ Session file unavailable")
			manifest.Missing = append(manifest.Missing, name)
			continue
		}
		entry := path.Base(name)
		if err := writeEntry(tarWriter, entry, data); err != nil {
			return Manifest{}, err
		}
		manifest.Files = append(manifest.Files, entry)
	}

	history, err := m.History(ctx, id)
	if err != nil {
		return Manifest{}, err
	}
	raw, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to encode commands: %w", err)
	}
	if err := writeEntry(tarWriter, "commands.json", raw); err != nil {
		return Manifest{}, err
	}
	manifest.Files = append(manifest.Files, "commands.json")
	manifest.Commands = len(history)

	raw, err = json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := writeEntry(tarWriter, "manifest.json", raw); err != nil {
		return Manifest{}, err
	}

	if err := tarWriter.Close(); err != nil {
		return Manifest{}, err
	}
	if err := gzWriter.Close(); err != nil {
		return Manifest{}, err
	}

	m.log.Info().
		Str("session_id", id).
		Strs("files", manifest.Files).
		Int("commands", manifest.Commands).
		Msg("📦 Session bundle written")
	return manifest, nil
}

// Save writes the bundle to dir/<id>.tar.gz and returns its path
func (m *Manager) Save(ctx context.Context, id, dir string) (string, Manifest, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", Manifest{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	target := filepath.Join(dir, fmt.Sprintf("%s.tar.gz", id))
	file, err := os.Create(target)
	if err != nil {
		return "", Manifest{}, err
	}
	manifest, err := m.Bundle(ctx, id, file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(target)
		return "", Manifest{}, err
	}
	return target, manifest, nil
}

// History pulls every page of a session's command log
func (m *Manager) History(ctx context.Context, id string) ([]models.Command, error) {
	var all []models.Command
	token := models.InitialPageToken
	seen := map[string]bool{}
	for token != "" {
		if seen[token] {
			return nil, fmt.Errorf("command log of %s repeats page token %q", id, token)
		}
		seen[token] = true

		page, err := m.api.Commands(ctx, id, token, historyPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch commands: %w", err)
		}
		all = append(all, page.Commands...)
		token = page.NewPageToken
	}
	return all, nil
}

// Screenshots lists the stored screenshots of a session
func (m *Manager) Screenshots(ctx context.Context, id string) ([]string, error) {
	return m.api.Screenshots(ctx, id)
}

// TakeScreenshot asks the farm to capture the session screen
func (m *Manager) TakeScreenshot(ctx context.Context, id string) error {
	if err := m.api.TakeScreenshot(ctx, id); err != nil {
		return fmt.Errorf("failed to take screenshot: %w", err)
	}
	m.log.Info().Str("session_id", id).Msg("📸 Screenshot requested")
	return nil
}

func writeEntry(tw *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

// Extract unpacks a bundle into target
func Extract(source, target string) error {
	file, err := os.Open(source)
	if err != nil {
		return err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		targetPath := filepath.Join(target, header.Name)
		if !strings.HasPrefix(targetPath, filepath.Clean(target)+string(os.PathSeparator)) {
			return fmt.Errorf("bundle entry escapes target: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return err
			}

			outFile, err := os.Create(targetPath)
			if err != nil {
				return err
			}

			if _, err := io.Copy(outFile, tarReader); err != nil {
				outFile.Close()
				return err
			}
			outFile.Close()
		}
	}

	return nil
}
