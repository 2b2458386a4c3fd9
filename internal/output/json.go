package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/revbot/internal/payload"
	"github.com/dshills/revbot/internal/review"
)

// WriteReviewJSON writes a ReviewOutput as indented JSON.
func WriteReviewJSON(w io.Writer, out review.ReviewOutput) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// WritePayload writes a review payload in its canonical encoding.
func WritePayload(w io.Writer, p payload.ReviewPayload) error {
	data, err := payload.Marshal(p)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
