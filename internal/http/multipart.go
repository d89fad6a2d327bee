package http

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"sort"

	"github.com/fivetwenty-io/apicore/pkg/apicore"
)

// BuildMultipart encodes fields and files as multipart/form-data and
// returns the body with its Content-Type.
func BuildMultipart(fields map[string]string, files ...apicore.FilePart) ([]byte, string, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		err := writer.WriteField(key, fields[key])
		if err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	for _, file := range files {
		part, err := writer.CreateFormFile(file.FieldName, file.FileName)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form file %s: %w", file.FileName, err)
		}

		_, err = io.Copy(part, file.Content)
		if err != nil {
			return nil, "", fmt.Errorf("failed to copy file %s: %w", file.FileName, err)
		}
	}

	err := writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}
