package kms

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/bulkcrypt/internal/auth"
)

var testKey = KeyID{Project: "proj", Location: "global", KeyRing: "ring", Key: "key1"}

func newTestClient(baseURL string, retries int) *Client {
	return NewClient(baseURL, auth.NewStaticTokenSource("test-token"), 5*time.Second, retries, time.Millisecond)
}

func TestKeyID_ResourceName(t *testing.T) {
	assert.Equal(t,
		"projects/proj/locations/global/keyRings/ring/cryptoKeys/key1",
		testKey.ResourceName())
}

func TestEncrypt_Success(t *testing.T) {
	plaintext := base64.StdEncoding.EncodeToString([]byte("hello"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/"+testKey.ResourceName()+":encrypt", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req encryptRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, plaintext, req.Plaintext)

		json.NewEncoder(w).Encode(encryptResponse{
			Name:       testKey.ResourceName() + "/cryptoKeyVersions/1",
			Ciphertext: "Y2lwaGVy",
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	ct, err := c.Encrypt(context.Background(), testKey, plaintext)
	require.NoError(t, err)
	assert.Equal(t, "Y2lwaGVy", ct)
}

func TestEncrypt_EmptyCiphertextIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(encryptResponse{})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	_, err := c.Encrypt(context.Background(), testKey, "cGxhaW4=")
	require.ErrorIs(t, err, ErrorEmptyCiphertext)
}

func TestDecrypt_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+testKey.ResourceName()+":decrypt", r.URL.Path)

		var req decryptRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Y2lwaGVy", req.Ciphertext)

		json.NewEncoder(w).Encode(decryptResponse{Plaintext: "cGxhaW4="})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	pt, err := c.Decrypt(context.Background(), testKey, "Y2lwaGVy")
	require.NoError(t, err)
	assert.Equal(t, "cGxhaW4=", pt)
}

func TestCall_PermanentErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(errorResponse{Error: APIError{
			Code:    403,
			Message: "Permission denied on resource",
			Status:  "PERMISSION_DENIED",
		}})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 3)
	_, err := c.Encrypt(context.Background(), testKey, "cGxhaW4=")

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Code)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, int32(1), calls.Load(), "4xx responses must not be retried")
}

func TestCall_TransientErrorRetriedUntilSuccess(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(errorResponse{Error: APIError{
				Code:    503,
				Message: "backend unavailable",
				Status:  "UNAVAILABLE",
			}})
			return
		}
		json.NewEncoder(w).Encode(encryptResponse{Ciphertext: "Y2lwaGVy"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 5)
	ct, err := c.Encrypt(context.Background(), testKey, "cGxhaW4=")
	require.NoError(t, err)
	assert.Equal(t, "Y2lwaGVy", ct)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2)
	_, err := c.Encrypt(context.Background(), testKey, "cGxhaW4=")
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
}

func TestCall_ErrorPayloadWithoutStructure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	_, err := c.Encrypt(context.Background(), testKey, "cGxhaW4=")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
	assert.Contains(t, apiErr.Message, "not json")
}
