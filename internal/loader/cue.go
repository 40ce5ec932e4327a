package loader

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// decodeCUE evaluates a single CUE file and decodes the concrete result.
//
// Definitions and hidden fields are dropped by the JSON export, so authors
// may factor shared trigger or config values into #Definitions.
func decodeCUE(data []byte, name string, v any) error {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(name))
	if err := value.Err(); err != nil {
		return cueError(name, "compiling CUE", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return cueError(name, "CUE value is not concrete", err)
	}

	raw, err := value.MarshalJSON()
	if err != nil {
		return cueError(name, "exporting CUE value", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &LoadError{Code: ErrCodeDecode, Path: name, Message: err.Error(), Err: err}
	}
	return nil
}

// cueError converts a CUE error into a LoadError carrying the first
// reported position.
func cueError(name, what string, err error) *LoadError {
	var pos token.Pos
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		pos = errs[0].Position()
	}
	return &LoadError{
		Code:    ErrCodeBuildFailed,
		Path:    name,
		Message: fmt.Sprintf("%s: %v", what, err),
		Pos:     pos,
		Err:     err,
	}
}
