package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Form is a url-encoded form body.
type Form map[string]string

// Values converts the form to url.Values.
func (f Form) Values() url.Values {
	v := make(url.Values, len(f))
	for k, val := range f {
		v.Set(k, val)
	}
	return v
}

// MultipartFieldType distinguishes plain fields from file uploads.
type MultipartFieldType int

const (
	MultipartFieldValue MultipartFieldType = iota
	MultipartFieldFile
)

// MultipartField is one part of a multipart/form-data body.
type MultipartField struct {
	Type  MultipartFieldType
	Name  string
	Value string
	Path  string // file path for MultipartFieldFile
}

// Multipart is a multipart/form-data body. Relative file paths resolve
// against BaseDir and may not escape it.
type Multipart struct {
	Fields  []MultipartField
	BaseDir string
}

// ShouldCarryBody reports whether a method sends a request body.
// Unknown methods carry one.
func ShouldCarryBody(method string) bool {
	switch strings.ToUpper(method) {
	case "GET", "HEAD", "DELETE":
		return false
	}
	return true
}

// PrepareOutgoing leaves raw and form bodies untouched and serializes
// anything else to JSON text.
func PrepareOutgoing(data any) (any, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case string, []byte, io.Reader, Form, url.Values, *Multipart:
		return v, nil
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return string(encoded), nil
}

// encodeBody turns a prepared body into a reader. contentType is non-empty
// only when the encoding dictates it.
func encodeBody(prepared any) (body io.Reader, contentType string, err error) {
	switch v := prepared.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(v), "", nil
	case []byte:
		return bytes.NewReader(v), "", nil
	case Form:
		return strings.NewReader(v.Values().Encode()), "application/x-www-form-urlencoded", nil
	case url.Values:
		return strings.NewReader(v.Encode()), "application/x-www-form-urlencoded", nil
	case *Multipart:
		buf, ct, err := BuildMultipartBody(v.Fields, v.BaseDir)
		if err != nil {
			return nil, "", err
		}
		return buf, ct, nil
	case io.Reader:
		return v, "", nil
	}
	return nil, "", fmt.Errorf("unsupported body type %T", prepared)
}

// ParseIncoming decodes a response body according to its declared content
// type. It never fails: unreadable or malformed bodies become nil.
func ParseIncoming(headers *Headers, body io.Reader) any {
	if body == nil {
		return nil
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil
	}

	ct := strings.ToLower(headers.Get("Content-Type"))
	switch {
	case ct == "":
		if len(raw) == 0 {
			return nil
		}
		return string(raw)
	case strings.Contains(ct, "json"):
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil
		}
		return out
	case strings.Contains(ct, "text"), strings.Contains(ct, "xml"):
		return string(raw)
	case strings.Contains(ct, "octet-stream"):
		return raw
	}
	return string(raw)
}

// As decodes the raw JSON body of an envelope into T.
func As[T any](env *Envelope) (T, error) {
	var out T
	if env == nil || len(env.Body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(env.Body, &out); err != nil {
		return out, fmt.Errorf("decoding response body: %w", err)
	}
	return out, nil
}

// BuildMultipartBody creates a multipart form data body from multipart fields
func BuildMultipartBody(fields []MultipartField, baseDir string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, field := range fields {
		if field.Type == MultipartFieldFile {
			filePath := field.Path
			if !filepath.IsAbs(filePath) && baseDir != "" {
				filePath = filepath.Join(baseDir, filePath)
			}

			if err := validatePathWithinBase(filePath, baseDir); err != nil {
				return nil, "", err
			}

			file, err := os.Open(filePath)
			if err != nil {
				return nil, "", err
			}

			part, err := writer.CreateFormFile(field.Name, filepath.Base(filePath))
			if err != nil {
				file.Close()
				return nil, "", err
			}

			_, err = io.Copy(part, file)
			file.Close()
			if err != nil {
				return nil, "", err
			}
			continue
		}

		if err := writer.WriteField(field.Name, field.Value); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

// validatePathWithinBase checks that the resolved path stays within the base directory
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}

// ParseFormBody decodes a url-encoded body into a Form.
func ParseFormBody(body string) Form {
	result := make(Form)
	pairs := strings.Split(body, "&")
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			key, _ := url.QueryUnescape(kv[0])
			value, _ := url.QueryUnescape(kv[1])
			result[key] = value
		}
	}
	return result
}
