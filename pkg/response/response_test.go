package response

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Atlas/pkg/errors"
)

func TestErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", errors.ItineraryNotFound, http.StatusNotFound},
		{"forbidden", errors.ItineraryNotOwned, http.StatusForbidden},
		{"conflict", errors.ImportInProgress, http.StatusConflict},
		{"invalid state", errors.ItineraryNotForked, http.StatusBadRequest},
		{"invalid request", errors.InvalidRequest, http.StatusBadRequest},
		{"unauthorized", errors.Unauthorized, http.StatusUnauthorized},
		{"upstream", errors.UpstreamUnavailable, http.StatusBadGateway},
		{"wrapped definition", fmt.Errorf("load: %w", errors.POINotFound), http.StatusNotFound},
		{"validation failure", &errors.ValidationFailure{ErrorCode: errors.CodeEmptyName}, http.StatusUnprocessableEntity},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, errorToHTTPStatus(tc.err))
		})
	}
}

func TestErrorValidationFailureBody(t *testing.T) {
	c := app.NewContext(0)
	excerpt := "just some words"
	Error(context.Background(), c, &errors.ValidationFailure{
		ErrorCode:        errors.CodeEmptyOrUnstructured,
		Reason:           "no day markers",
		RawExcerpt:       &excerpt,
		SuggestedActions: []string{"add explicit day markers"},
	})

	require.Equal(t, http.StatusUnprocessableEntity, c.Response.StatusCode())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(c.Response.Body(), &body))
	assert.Equal(t, "EMPTY_OR_UNSTRUCTURED", body["error_code"])
	assert.Equal(t, "no day markers", body["reason"])
	assert.Equal(t, excerpt, body["raw_excerpt"])
	assert.Equal(t, []interface{}{"add explicit day markers"}, body["suggested_actions"])
	_, wrapped := body["error"]
	assert.False(t, wrapped)
}

func TestErrorDefinitionBody(t *testing.T) {
	c := app.NewContext(0)
	Error(context.Background(), c, errors.ImportInProgress)

	require.Equal(t, http.StatusConflict, c.Response.StatusCode())

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(c.Response.Body(), &body))
	assert.Equal(t, "IMPORT_IN_PROGRESS", body.Error.Code)
}

func TestErrorHidesInternalMessage(t *testing.T) {
	c := app.NewContext(0)
	Error(context.Background(), c, fmt.Errorf("pq: password authentication failed"))

	require.Equal(t, http.StatusInternalServerError, c.Response.StatusCode())

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(c.Response.Body(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.NotContains(t, body.Error.Message, "password")
}
