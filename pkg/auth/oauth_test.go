package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthRefresher_Refresh(t *testing.T) {
	t.Run("posts refresh grant", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "cid", r.PostForm.Get("client_id"))
			assert.Equal(t, "rt", r.PostForm.Get("refresh_token"))
			assert.Equal(t, "sec", r.PostForm.Get("client_secret"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"new-at","token_type":"bearer","expires_in":21599}`))
		}))
		defer ts.Close()

		r := &OAuthRefresher{TokenURL: ts.URL, ClientID: "cid", ClientSecret: "sec"}
		tok, err := r.Refresh(context.Background(), "rt")
		require.NoError(t, err)
		assert.Equal(t, Token{Access: "new-at"}, tok)
	})

	t.Run("rotated refresh token, no secret", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			_, has := r.PostForm["client_secret"]
			assert.False(t, has)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"a2","refresh_token":"r2"}`))
		}))
		defer ts.Close()

		r := &OAuthRefresher{TokenURL: ts.URL, ClientID: "cid"}
		tok, err := r.Refresh(context.Background(), "rt")
		require.NoError(t, err)
		assert.Equal(t, Token{Access: "a2", Refresh: "r2"}, tok)
	})

	t.Run("non-200", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		}))
		defer ts.Close()

		r := &OAuthRefresher{TokenURL: ts.URL, ClientID: "cid"}
		_, err := r.Refresh(context.Background(), "rt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
		assert.Contains(t, err.Error(), "invalid_grant")
	})

	t.Run("bad json", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`not json`))
		}))
		defer ts.Close()

		r := &OAuthRefresher{TokenURL: ts.URL}
		_, err := r.Refresh(context.Background(), "rt")
		require.Error(t, err)
	})

	t.Run("refresh token echoed back is not a rotation", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"a3","refresh_token":"rt"}`))
		}))
		defer ts.Close()

		r := &OAuthRefresher{TokenURL: ts.URL, ClientID: "cid", Client: ts.Client()}
		tok, err := r.Refresh(context.Background(), "rt")
		require.NoError(t, err)
		assert.Equal(t, Token{Access: "a3"}, tok)
	})
}
