package engine

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rytmilabs/rytmi"
	"gopkg.in/yaml.v3"
)

// ReadBeat parses a beat snapshot, accepting JSON or YAML, and validates it
// so a broken file never reaches the engine.
func ReadBeat(r io.Reader) (rytmi.Beat, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return rytmi.Beat{}, fmt.Errorf("read beat: %w", err)
	}
	var beat rytmi.Beat
	if errJSON := json.Unmarshal(b, &beat); errJSON != nil {
		beat = rytmi.Beat{}
		if errYaml := yaml.Unmarshal(b, &beat); errYaml != nil {
			return rytmi.Beat{}, fmt.Errorf("beat could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	if err := beat.Validate(); err != nil {
		return rytmi.Beat{}, fmt.Errorf("read beat: %w", err)
	}
	return beat, nil
}

// WriteBeat writes the beat snapshot as YAML. The layout is a developer
// convenience, not a stable format.
func WriteBeat(w io.Writer, beat rytmi.Beat) error {
	b, err := yaml.Marshal(&beat)
	if err != nil {
		return fmt.Errorf("write beat: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write beat: %w", err)
	}
	return nil
}
