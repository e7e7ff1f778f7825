package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// envelope is the uniform success body: data payload, human-readable
// message, and a numeric code mirroring the HTTP status.
type envelope struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// failure is the uniform error body.
type failure struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, code int, data any, message string) {
	writeJSON(w, code, envelope{Data: data, Message: message, Code: code})
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	detail := ""
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		detail = "request_id=" + rid
	}
	writeJSON(w, code, failure{Message: msg, Detail: detail})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePaging(r *http.Request) (page, pageSize int, err error) {
	page, err = parsePositiveInt(r.URL.Query().Get("page"), 1, 1, 1<<30)
	if err != nil {
		return 0, 0, errors.New("page must be a positive integer")
	}
	pageSize, err = parsePositiveInt(r.URL.Query().Get("page_size"), 20, 1, 100)
	if err != nil {
		return 0, 0, errors.New("page_size must be between 1 and 100")
	}
	return page, pageSize, nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < min || val > max {
		return 0, errors.New("value out of range")
	}
	return val, nil
}
