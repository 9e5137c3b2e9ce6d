package api

import (
	"bytes"
	"fmt"
	"mime/multipart"
)

// Multipart is a form-encoded request body carrying plain fields and file
// parts. The content type (with its boundary) comes from the encoder, never
// from a hand-set header.
type Multipart struct {
	Fields map[string]string
	Files  []File
}

// File is one uploaded file part.
type File struct {
	Field   string
	Name    string
	Content []byte
}

// encode renders the form. Each call produces a fresh boundary, so a
// replayed request re-encodes cleanly.
func (m *Multipart) encode() (string, []byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for field, value := range m.Fields {
		if err := w.WriteField(field, value); err != nil {
			return "", nil, fmt.Errorf("write field %q: %w", field, err)
		}
	}
	for _, f := range m.Files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return "", nil, fmt.Errorf("create file part %q: %w", f.Field, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return "", nil, fmt.Errorf("write file part %q: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", nil, fmt.Errorf("finish multipart body: %w", err)
	}
	return w.FormDataContentType(), buf.Bytes(), nil
}
