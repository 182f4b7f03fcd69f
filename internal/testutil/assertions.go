package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertStatusCode verifies the HTTP response status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertJSONResponse decodes JSON response into v
func AssertJSONResponse(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	err = json.Unmarshal(body, v)
	require.NoError(t, err, "failed to unmarshal response: %s", string(body))
}

// AssertMessage verifies status and the envelope message
func AssertMessage(t *testing.T, resp *http.Response, expectedStatus int, expectedMessage string) MessageResponse {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	var msg MessageResponse
	AssertJSONResponse(t, resp, &msg)
	assert.Equal(t, expectedMessage, msg.Message, "message mismatch")
	return msg
}

// AssertRefreshCookie verifies the refresh cookie attributes
func AssertRefreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()

	cookie := FindCookie(resp, "refreshToken")
	require.NotNil(t, cookie, "refresh cookie not set")
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly, "refresh cookie must be HttpOnly")
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.False(t, cookie.Expires.IsZero(), "refresh cookie must expire")
	return cookie
}
