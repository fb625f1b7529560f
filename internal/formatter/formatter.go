// package formatter renders engine records for the terminal and exchanges dynamic playlist configs as YAML
package formatter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the export filename used when none is given.
const DefaultConfigFile = "plx_configs.yaml"

type configDocument struct {
	Configs []*models.DynamicPlaylistConfig `yaml:"configs"`
}

// ExportConfigs encodes configs as a YAML document with a top-level configs list.
func ExportConfigs(configs []*models.DynamicPlaylistConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(configDocument{Configs: configs}); err != nil {
		return nil, fmt.Errorf("failed to encode configs: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode configs: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportConfigs decodes a YAML document produced by [ExportConfigs]. A document holding a single
// config (no configs key) is accepted too. Every config is validated and its id cleared so it can be
// created fresh.
func ImportConfigs(data []byte) ([]*models.DynamicPlaylistConfig, error) {
	var doc configDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid config document: %v", shared.ErrInvalidInput, err)
	}

	if len(doc.Configs) == 0 {
		var single models.DynamicPlaylistConfig
		if err := yaml.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("%w: invalid config document: %v", shared.ErrInvalidInput, err)
		}
		if single.Name == "" && single.TargetPlaylistID == "" {
			return nil, fmt.Errorf("%w: document contains no configs", shared.ErrInvalidInput)
		}
		doc.Configs = []*models.DynamicPlaylistConfig{&single}
	}

	var errs []error
	for i, cfg := range doc.Configs {
		if cfg == nil {
			errs = append(errs, fmt.Errorf("config %d: %w: empty entry", i+1, shared.ErrValidation))
			continue
		}
		cfg.ID = ""
		if err := cfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config %d (%s): %w", i+1, cfg.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return doc.Configs, nil
}

// WriteConfigExport writes configs to path, defaulting to [DefaultConfigFile].
func WriteConfigExport(configs []*models.DynamicPlaylistConfig, path string) (string, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := ExportConfigs(configs)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// ReadConfigImport reads and decodes the configs in path.
func ReadConfigImport(path string) ([]*models.DynamicPlaylistConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ImportConfigs(data)
}

// ExportToCSV converts tracks to CSV with columns: URI, Title, Artist, Album, Release Date, Duration
func ExportToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"URI", "Title", "Artist", "Album", "Release Date", "Duration"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{
			track.URI,
			track.Title,
			track.Artist(),
			track.Album,
			track.ReleaseDate.String(),
			FormatDuration(track.DurationMS),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int) string {
	if ms <= 0 {
		return "-"
	}
	secs := ms / 1000
	return strconv.Itoa(secs/60) + ":" + fmt.Sprintf("%02d", secs%60)
}
