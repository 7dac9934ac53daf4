package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shuttlecourt/league/internal/bracket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "league not found", err: fmt.Errorf("%w: x", bracket.ErrLeagueNotExist), expected: http.StatusNotFound},
		{name: "set not found", err: bracket.ErrSetNotExist, expected: http.StatusNotFound},
		{name: "tied score", err: bracket.ErrInvalidSetScore, expected: http.StatusBadRequest},
		{name: "empty bracket", err: bracket.ErrInvalidPlayerCount, expected: http.StatusBadRequest},
		{name: "locked bracket", err: bracket.ErrBracketLocked, expected: http.StatusConflict},
		{name: "finished match", err: fmt.Errorf("wrapped: %w", bracket.ErrMatchAlreadyFinished), expected: http.StatusConflict},
		{name: "unknown", err: errors.New("disk on fire"), expected: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, "request failed", tc.err)

			assert.Equal(t, tc.expected, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestInternalServerErrorHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	InternalServerError(rec, "query failed", errors.New("password=hunter2"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Autumn"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), r, &v))
	assert.Equal(t, "Autumn", v.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nickname":"x"}`))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), r, &v))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	assert.Error(t, DecodeJSON(httptest.NewRecorder(), r, &v))
}
