package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"tia/internal/domain"
)

// Top-level sections of the persisted document.
const (
	SectionVersion      = "version"
	SectionDependencies = "dependencies"
	SectionFileDigests  = "file_digests"
	SectionTestDigests  = "test_digests"
	SectionOutcomes     = "outcomes"
)

type document struct {
	Version      int                       `json:"version"`
	Dependencies map[string][]string       `json:"dependencies"`
	FileDigests  map[string]string         `json:"file_digests"`
	TestDigests  map[string]string         `json:"test_digests"`
	Outcomes     map[string]domain.Outcome `json:"outcomes"`
}

// Encode serializes the state as the canonical version 1 document.
func Encode(s *State) ([]byte, error) {
	if s == nil {
		s = NewState()
	}
	doc := document{
		Version:      SchemaVersion,
		Dependencies: make(map[string][]string, len(s.Dependencies)),
		FileDigests:  nonNil(s.FileDigests),
		TestDigests:  nonNil(s.TestDigests),
		Outcomes:     nonNil(s.Outcomes),
	}
	for key, deps := range s.Dependencies {
		doc.Dependencies[key] = normalize(deps)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a persisted document. Absent sections are empty; a section
// that is present with the wrong shape fails with a *FormatError.
func Decode(data []byte) (*State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &FormatError{Err: err}
	}
	if raw == nil {
		return nil, &FormatError{Err: errors.New("document is not an object")}
	}

	if err := checkVersion(raw); err != nil {
		return nil, err
	}

	state := NewState()
	if err := decodeSection(raw, SectionDependencies, &state.Dependencies); err != nil {
		return nil, err
	}
	if err := decodeSection(raw, SectionFileDigests, &state.FileDigests); err != nil {
		return nil, err
	}
	if err := decodeSection(raw, SectionTestDigests, &state.TestDigests); err != nil {
		return nil, err
	}

	outcomes := make(map[string]string)
	if err := decodeSection(raw, SectionOutcomes, &outcomes); err != nil {
		return nil, err
	}
	for key, value := range outcomes {
		o, err := domain.ParseOutcome(value)
		if err != nil {
			return nil, &FormatError{Section: SectionOutcomes, Err: fmt.Errorf("%s: %w", key, err)}
		}
		state.Outcomes[key] = o
	}

	for key, deps := range state.Dependencies {
		state.Dependencies[key] = normalize(deps)
	}
	return state, nil
}

func checkVersion(raw map[string]json.RawMessage) error {
	msg, ok := raw[SectionVersion]
	if !ok {
		return &FormatError{Section: SectionVersion, Err: errors.New("missing schema version")}
	}
	var version int
	if err := json.Unmarshal(msg, &version); err != nil {
		return &FormatError{Section: SectionVersion, Err: err}
	}
	if version != SchemaVersion {
		return &FormatError{Section: SectionVersion, Err: fmt.Errorf("unsupported schema version %d", version)}
	}
	return nil
}

func decodeSection[T any](raw map[string]json.RawMessage, name string, dst *map[string]T) error {
	msg, ok := raw[name]
	if !ok {
		return nil
	}
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || msg[0] != '{' {
		return &FormatError{Section: name, Err: errors.New("expected an object")}
	}
	m := make(map[string]T)
	if err := json.Unmarshal(msg, &m); err != nil {
		return &FormatError{Section: name, Err: err}
	}
	*dst = m
	return nil
}

func nonNil[T any](m map[string]T) map[string]T {
	if m == nil {
		return make(map[string]T)
	}
	return m
}
