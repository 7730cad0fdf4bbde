package common

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
)

// WriteJSON writes v to w as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %T as JSON: %w", v, err)
	}
	return nil
}

// PrintJSONOrExit writes v to stdout as indented JSON and exits on failure.
func PrintJSONOrExit(logger *logging.Logger, v interface{}) {
	if err := WriteJSON(os.Stdout, v); err != nil {
		logger.Error("failed to write output",
			"err", err,
		)
		os.Exit(1)
	}
}
