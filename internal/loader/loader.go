package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/stimline/internal/timeline"
)

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// ErrUnsupportedFormat is returned for files whose extension is not a known format.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Error codes reported by LoadError.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE evaluation failed
	ErrCodeDecode      = "E008" // Document does not match the timeline shape
	ErrCodeFormat      = "E009" // Unknown file extension
)

// LoadError is a document error with an optional source position.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
	Err     error
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DetectFormat returns the format implied by path's extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", &LoadError{
			Code:    ErrCodeFormat,
			Path:    path,
			Message: fmt.Sprintf("unknown extension %q (want .yaml, .yml, .json or .cue)", filepath.Ext(path)),
			Err:     ErrUnsupportedFormat,
		}
	}
}

// Decode parses data in the given format into v. name is used in
// error positions.
func Decode(data []byte, format Format, name string, v any) error {
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, v); err != nil {
			return &LoadError{Code: ErrCodeDecode, Path: name, Message: err.Error(), Err: err}
		}
		return nil
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(v); err != nil {
			return &LoadError{Code: ErrCodeDecode, Path: name, Message: err.Error(), Err: err}
		}
		return nil
	case FormatCUE:
		return decodeCUE(data, name, v)
	default:
		return &LoadError{Code: ErrCodeFormat, Path: name, Message: string(format), Err: ErrUnsupportedFormat}
	}
}

// DecodeFile reads path and decodes it by extension into v.
func DecodeFile(path string, v any) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &LoadError{Code: ErrCodeNotFound, Path: path, Message: "file not found", Err: err}
	}
	if err != nil {
		return &LoadError{Code: ErrCodeGeneric, Path: path, Message: err.Error(), Err: err}
	}
	return Decode(data, format, path, v)
}

// LoadTimeline reads an authored timeline document.
//
// The document is either a bare timeline ({steps: [...]}) or a task
// ({id, timeline: {steps: [...]}}), in which case the task's timeline is
// returned.
func LoadTimeline(path string) (timeline.Timeline, error) {
	var doc struct {
		timeline.Timeline `yaml:",inline"`
		Wrapped           *timeline.Timeline `json:"timeline" yaml:"timeline"`
	}
	if err := DecodeFile(path, &doc); err != nil {
		return timeline.Timeline{}, err
	}
	tl := doc.Timeline
	if doc.Wrapped != nil && len(tl.Steps) == 0 {
		tl = *doc.Wrapped
	}
	if tl.Steps == nil {
		tl.Steps = []timeline.AuthoredStep{}
	}
	return tl, nil
}

// LoadTask reads a task document. A task without an id takes the file
// name without its extension.
func LoadTask(path string) (timeline.Task, error) {
	var task timeline.Task
	if err := DecodeFile(path, &task); err != nil {
		return timeline.Task{}, err
	}
	if task.ID == "" {
		task.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if task.Timeline.Steps == nil {
		task.Timeline.Steps = []timeline.AuthoredStep{}
	}
	return task, nil
}
