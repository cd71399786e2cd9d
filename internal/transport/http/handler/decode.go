package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/go-accounts-api/internal/domain"
)

const maxUploadSize = 10 << 20

// decodeJSON reads a JSON body into v. An empty body leaves v untouched so
// validation reports the missing fields.
func decodeJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("malformed request body: %w", domain.ErrInvalidFormat)
}

func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

func isForm(r *http.Request) bool {
	switch mediaType(r) {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		return true
	}
	return false
}

// parseForm parses either form encoding and collects the image uploads. The
// returned closer must be called once the uploads have been consumed.
func parseForm(r *http.Request) ([]domain.Upload, func(), error) {
	noop := func() {}
	if mediaType(r) != "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return nil, noop, fmt.Errorf("malformed form: %w", domain.ErrInvalidFormat)
		}
		return nil, noop, nil
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, noop, fmt.Errorf("malformed multipart form: %w", domain.ErrInvalidFormat)
	}
	var (
		uploads []domain.Upload
		files   []multipart.File
	)
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	for _, field := range []string{domain.UploadAvatar, domain.UploadCoverImage} {
		f, hdr, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			closeAll()
			return nil, noop, fmt.Errorf("read %s: %w", field, domain.ErrInvalidFormat)
		}
		files = append(files, f)
		uploads = append(uploads, domain.Upload{
			Field:       field,
			Filename:    hdr.Filename,
			ContentType: hdr.Header.Get("Content-Type"),
			Reader:      f,
		})
	}
	return uploads, closeAll, nil
}

// formValue returns nil when key was not submitted at all.
func formValue(form url.Values, key string) *string {
	vs, ok := form[key]
	if !ok || len(vs) == 0 {
		return nil
	}
	v := vs[0]
	return &v
}
