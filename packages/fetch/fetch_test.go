package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		fmt.Fprint(w, "hello bytes")
	}))
	defer server.Close()

	body, err := New(0, nil).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello bytes"), body)
}

func TestFetchBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := New(0, nil).Fetch(context.Background(), server.URL)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(&StatusError{Code: 400}))
	assert.True(t, IsClientError(&StatusError{Code: 404}))
	assert.True(t, IsClientError(fmt.Errorf("wrapped: %w", &StatusError{Code: 418})))
	assert.False(t, IsClientError(&StatusError{Code: 500}))
	assert.False(t, IsClientError(&StatusError{Code: 301}))
	assert.False(t, IsClientError(errors.New("connection reset")))
	assert.False(t, IsClientError(nil))
}
