package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/mangrovewatch/mangrove/internal/rest/response"
	"github.com/uptrace/bunrouter"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, req bunrouter.Request, v any) error {
	body := http.MaxBytesReader(w, req.Body, MaxBodyBytes)
	defer body.Close()

	if err := sonic.ConfigDefault.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", response.ErrBadRequest, err)
	}
	return nil
}

// pathID parses the :id route parameter.
func pathID(req bunrouter.Request) (int64, error) {
	id, err := req.Params().Int64("id")
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", response.ErrBadRequest, req.Param("id"))
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(req bunrouter.Request, name string) (int, error) {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", response.ErrBadRequest, name, raw)
	}
	return value, nil
}

// queryFloat parses a required float query parameter.
func queryFloat(req bunrouter.Request, name string) (float64, error) {
	raw := req.URL.Query().Get(name)

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", response.ErrBadRequest, name, raw)
	}
	return value, nil
}

// pagination reads the page and limit query parameters.
func pagination(req bunrouter.Request) (page, limit int, err error) {
	if page, err = queryInt(req, "page"); err != nil {
		return 0, 0, err
	}
	if limit, err = queryInt(req, "limit"); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}
