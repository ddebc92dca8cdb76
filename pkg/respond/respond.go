package respond

import (
	"encoding/json"
	"io"
)

// JSON writes data as indented JSON followed by a newline.
func JSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
}

func Error(w io.Writer, body ErrorBody) error {
	return JSON(w, body)
}
