package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/roster/internal/core"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100

	// maxBodySize caps JSON request bodies.
	maxBodySize = 1 << 20
)

// parseIntParam reads a positive integer query parameter, returning def
// when it is absent.
func parseIntParam(r *http.Request, name string, def int) (int, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return def, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", core.ErrInvalidInput, name)
	}
	return i, nil
}

// decodeStudent reads a StudentInput body. Unknown keys are ignored.
func decodeStudent(w http.ResponseWriter, r *http.Request) (core.StudentInput, error) {
	var in core.StudentInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&in); err != nil {
		if err == io.EOF {
			return in, fmt.Errorf("%w: empty request body", core.ErrInvalidInput)
		}
		return in, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return in, nil
}
