package session

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skyward-uas/gimbal-director/pkg/core"
)

// Export is the root JSON structure written by the memory backend.
type Export struct {
	Session  Info                 `json:"session"`
	EndTime  string               `json:"endTime"`
	Fixes    []core.AircraftState `json:"fixes"`
	Gimbal   []core.GimbalAngles  `json:"gimbal"`
	Targets  []core.TargetResult  `json:"targets"`
	Commands []commandEntry       `json:"commands"`
	Faults   []faultEntry         `json:"faults"`
}

// exportJSON writes the session to a (optionally gzipped) JSON file.
// Caller holds b.mu.
func (b *MemoryBackend) exportJSON() error {
	export := Export{
		Session:  *b.info,
		EndTime:  time.Now().Format(time.RFC3339),
		Fixes:    b.fixes,
		Gimbal:   b.gimbal,
		Targets:  b.targets,
		Commands: b.commands,
		Faults:   b.faults,
	}

	name := strings.ReplaceAll(b.info.ID, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	timestamp := b.info.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", name, timestamp)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func writeJSON(path string, data Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	return json.NewEncoder(gzWriter).Encode(data)
}
