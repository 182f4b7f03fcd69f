package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dom/autosalon/internal/domain"
	"github.com/dom/autosalon/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userSummary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	IsEmailConfirmed bool   `json:"isEmailConfirmed"`
}

func TestUserHandler_RequiresAdmin(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.Reset(t)

	user := testutil.NewUserBuilder().BuildAndLogin(t, ts)

	resp := testutil.Do(t, http.MethodGet, ts.APIURL("/users"), "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = testutil.Do(t, http.MethodGet, ts.APIURL("/users"), user.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = testutil.Do(t, http.MethodPost, ts.APIURL("/users/"+user.User.ID.String()+"/role"), user.AccessToken, map[string]string{"role": "Admin"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "users cannot promote themselves")
}

func TestUserHandler_Admin(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.Reset(t)

	admin := testutil.NewUserBuilder().WithName("Boss").WithRole(domain.RoleAdmin).BuildAndLogin(t, ts)
	member, password := testutil.NewUserBuilder().WithName("Member").Build(t, ts.DB.DB)

	t.Run("list", func(t *testing.T) {
		resp := testutil.Do(t, http.MethodGet, ts.APIURL("/users?limit=10"), admin.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var users []userSummary
		testutil.AssertJSONResponse(t, resp, &users)
		require.Len(t, users, 2)
		for _, u := range users {
			assert.NotEmpty(t, u.Role)
			assert.True(t, u.IsEmailConfirmed)
		}
	})

	t.Run("get", func(t *testing.T) {
		resp := testutil.Do(t, http.MethodGet, ts.APIURL("/users/"+member.ID.String()), admin.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got userSummary
		testutil.AssertJSONResponse(t, resp, &got)
		assert.Equal(t, "Member", got.Name)

		resp = testutil.Do(t, http.MethodGet, ts.APIURL("/users/not-a-uuid"), admin.AccessToken, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = testutil.Do(t, http.MethodGet, ts.APIURL("/users/"+uuid.New().String()), admin.AccessToken, nil)
		testutil.AssertMessage(t, resp, http.StatusNotFound, "User not found")
	})

	t.Run("update", func(t *testing.T) {
		resp := testutil.Do(t, http.MethodPut, ts.APIURL("/users/"+member.ID.String()), admin.AccessToken, map[string]string{
			"name": "Renamed", "email": member.Email, "role": "User",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got userSummary
		testutil.AssertJSONResponse(t, resp, &got)
		assert.Equal(t, "Renamed", got.Name)

		resp = testutil.Do(t, http.MethodPut, ts.APIURL("/users/"+member.ID.String()), admin.AccessToken, map[string]string{
			"name": "Renamed", "email": member.Email, "role": "Owner",
		})
		testutil.AssertMessage(t, resp, http.StatusBadRequest, "Role must be Admin or User")

		resp = testutil.Do(t, http.MethodPut, ts.APIURL("/users/"+member.ID.String()), admin.AccessToken, map[string]string{
			"name": "Renamed", "email": admin.User.Email,
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("change role", func(t *testing.T) {
		resp := testutil.Do(t, http.MethodPost, ts.APIURL("/users/"+member.ID.String()+"/role"), admin.AccessToken, map[string]string{"role": "Admin"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got userSummary
		testutil.AssertJSONResponse(t, resp, &got)
		assert.Equal(t, "Admin", got.Role)

		promoted := testutil.Login(t, ts, member, password)
		resp = testutil.Do(t, http.MethodGet, ts.APIURL("/users"), promoted.AccessToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, "promoted user reaches admin routes")

		resp = testutil.Do(t, http.MethodPost, ts.APIURL("/users/"+member.ID.String()+"/role"), admin.AccessToken, map[string]string{"role": "Owner"})
		testutil.AssertMessage(t, resp, http.StatusBadRequest, "Role must be Admin or User")
	})

	t.Run("activity", func(t *testing.T) {
		resp := testutil.Do(t, http.MethodGet, ts.APIURL("/users/activity?limit=5"), admin.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var events []domain.AuthEvent
		testutil.AssertJSONResponse(t, resp, &events)
		assert.NotEmpty(t, events)
		assert.LessOrEqual(t, len(events), 5)

		resp = testutil.Do(t, http.MethodGet, ts.APIURL("/users/activity?userId="+member.ID.String()), admin.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		testutil.AssertJSONResponse(t, resp, &events)
		for _, e := range events {
			require.NotNil(t, e.UserID)
			assert.Equal(t, member.ID, *e.UserID)
		}

		resp = testutil.Do(t, http.MethodGet, ts.APIURL("/users/activity?userId=nope"), admin.AccessToken, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("delete", func(t *testing.T) {
		resp := testutil.Do(t, http.MethodDelete, ts.APIURL("/users/"+member.ID.String()), admin.AccessToken, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = testutil.Do(t, http.MethodDelete, ts.APIURL("/users/"+member.ID.String()), admin.AccessToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestActivityStream(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.Reset(t)

	admin := testutil.NewUserBuilder().WithRole(domain.RoleAdmin).BuildAndLogin(t, ts)
	user, password := testutil.NewUserBuilder().Build(t, ts.DB.DB)

	client := testutil.NewWSClient(t, ts.WebSocketURL(admin.AccessToken))
	connected := client.ExpectConnected(2 * time.Second)
	assert.Equal(t, admin.User.ID.String(), connected.UserID)

	testutil.Login(t, ts, user, password)

	event := client.ExpectAuthEvent(domain.ActivityLoginSuccess, 2*time.Second)
	require.NotNil(t, event.UserID)
	assert.Equal(t, user.ID, *event.UserID)
}

func TestActivityStream_Rejections(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.Reset(t)

	user := testutil.NewUserBuilder().BuildAndLogin(t, ts)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"invalid token", "garbage", http.StatusUnauthorized},
		{"non admin", user.AccessToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := ts.APIURL("/ws/activity")
			if tt.token != "" {
				url += "?token=" + tt.token
			}
			resp := testutil.Do(t, http.MethodGet, url, "", nil)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
