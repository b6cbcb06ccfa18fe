package statsbomb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// streamArray decodes a root JSON array element by element into T and calls
// emit for each, so multi-megabyte event files are never held as a whole
// []map[string]any.
func streamArray[T any](ctx context.Context, r io.Reader, emit func(i int, v T) error) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("json: read first token: %w", err)
	}
	if tok != json.Delim('[') {
		return fmt.Errorf("json: expected array, got %v", tok)
	}

	for i := 0; dec.More(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var v T
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("json: element %d: %w", i, err)
		}
		if err := emit(i, v); err != nil {
			return err
		}
	}

	end, err := dec.Token()
	if err != nil {
		return fmt.Errorf("json: read array end: %w", err)
	}
	if end != json.Delim(']') {
		return fmt.Errorf("json: expected array end ']', got %v", end)
	}
	return nil
}
