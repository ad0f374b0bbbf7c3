package transport

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// FormField is a plain multipart field.
type FormField struct {
	Name  string
	Value string
}

// FilePart is the binary part of a multipart form.
type FilePart struct {
	FieldName   string
	FileName    string
	ContentType string
	Content     []byte
}

// MultipartForm keeps fields in insertion order; the file part is written last.
type MultipartForm struct {
	Fields []FormField
	File   *FilePart
}

// Add appends a field.
func (f *MultipartForm) Add(name, value string) {
	f.Fields = append(f.Fields, FormField{Name: name, Value: value})
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Encode writes the form and returns it with its content type, boundary included.
func (f *MultipartForm) Encode() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, field := range f.Fields {
		if err := w.WriteField(field.Name, field.Value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", field.Name, err)
		}
	}

	if f.File != nil {
		contentType := f.File.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.File.FieldName), quoteEscaper.Replace(f.File.FileName)))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(f.File.Content); err != nil {
			return nil, "", fmt.Errorf("write file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
