package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/route/param"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Atlas/internal/middleware"
	"Atlas/pkg/response"
)

func TestPathUUID(t *testing.T) {
	id := uuid.New()
	c := app.NewContext(0)
	c.Params = param.Params{{Key: "itinerary_id", Value: id.String()}}

	got, ok := pathUUID(context.Background(), c, "itinerary_id")
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestPathUUIDRejectsMalformed(t *testing.T) {
	c := app.NewContext(0)
	c.Params = param.Params{{Key: "itinerary_id", Value: "42"}}

	_, ok := pathUUID(context.Background(), c, "itinerary_id")
	require.False(t, ok)
	require.Equal(t, http.StatusBadRequest, c.Response.StatusCode())

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(c.Response.Body(), &body))
	assert.Equal(t, "INVALID_REQUEST", body.Error.Code)
	assert.Contains(t, body.Error.Message, "itinerary_id")
}

func TestCurrentUser(t *testing.T) {
	c := app.NewContext(0)
	_, ok := currentUser(context.Background(), c)
	require.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, c.Response.StatusCode())

	id := uuid.New()
	c = app.NewContext(0)
	c.Set(middleware.IdentityKey, id)
	got, ok := currentUser(context.Background(), c)
	require.True(t, ok)
	assert.Equal(t, id, got)
}

func TestLive(t *testing.T) {
	c := app.NewContext(0)
	Live(context.Background(), c)

	require.Equal(t, http.StatusOK, c.Response.StatusCode())
	assert.JSONEq(t, `{"data":{"status":"ok"}}`, string(c.Response.Body()))
}
