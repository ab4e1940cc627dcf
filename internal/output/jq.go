package output

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/itchyny/gojq"
)

// CompileJQ parses and compiles a jq filter, reporting syntax errors as
// usage errors.
func CompileJQ(filter string) (*gojq.Code, error) {
	q, err := gojq.Parse(filter)
	if err != nil {
		return nil, ErrUsageHint(fmt.Sprintf("invalid --jq filter: %v", err), "See https://jqlang.org/manual/")
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, ErrUsageHint(fmt.Sprintf("invalid --jq filter: %v", err), "See https://jqlang.org/manual/")
	}
	return code, nil
}

// writeJQ runs the configured filter over v and prints each result on its
// own line. Strings are printed raw, like jq -r.
func (w *Writer) writeJQ(v any) error {
	code, err := CompileJQ(w.opts.JQ)
	if err != nil {
		return err
	}
	input, err := toJSONValue(v)
	if err != nil {
		return fmt.Errorf("encode for --jq: %w", err)
	}

	iter := code.Run(input)
	for {
		out, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := out.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				return nil
			}
			return &Error{Code: CodeUsage, Message: fmt.Sprintf("--jq: %v", err), Cause: err}
		}
		if s, ok := out.(string); ok {
			fmt.Fprintln(w.opts.Writer, s)
			continue
		}
		b, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("encode --jq result: %w", err)
		}
		fmt.Fprintln(w.opts.Writer, string(b))
	}
}
