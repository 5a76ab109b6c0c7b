package registry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	orgmodels "profil/internal/organization/models"
	"profil/pkg/platform/sentinel"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAddress() *orgmodels.NotificationAddress {
	return &orgmodels.NotificationAddress{
		AddressType:      orgmodels.AddressTypeEmail,
		Domain:           "example.no",
		Address:          "post",
		FullAddress:      "post@example.no",
		NotificationName: "Hovedpostkasse",
	}
}

func TestDefine(t *testing.T) {
	var gotPath string
	var gotPayload AddressPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"boolResult": true,
			"addressId":  "reg-42",
			"status":     "OK",
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithLogger(discardLogger()))
	require.NoError(t, err)

	id, err := client.Define(context.Background(), testAddress())
	require.NoError(t, err)
	require.Equal(t, "reg-42", id)
	require.Equal(t, "/define", gotPath)
	require.Equal(t, "post", gotPayload.Address)
	require.Equal(t, "example.no", gotPayload.Domain)
}

func TestReplace(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{
			"boolResult": true,
			"addressId":  "reg-42",
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithLogger(discardLogger()))
	require.NoError(t, err)

	require.NoError(t, client.Replace(context.Background(), "reg-42", testAddress()))
	require.Equal(t, "/replace/reg-42", gotPath)
}

func TestRemoveSendsEmptyBody(t *testing.T) {
	var gotLen int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLen = r.ContentLength
		_ = json.NewEncoder(w).Encode(map[string]any{
			"boolResult": true,
			"addressId":  "reg-42",
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithLogger(discardLogger()))
	require.NoError(t, err)

	require.NoError(t, client.Remove(context.Background(), "reg-42"))
	require.LessOrEqual(t, gotLen, int64(0))
}

func TestRejectedWrite(t *testing.T) {
	t.Run("boolResult false", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"boolResult": false,
				"status":     "VALIDATION_FAILED",
				"details":    "domain not allowed",
			})
		}))
		defer srv.Close()

		client, err := NewClient(srv.URL, WithLogger(discardLogger()))
		require.NoError(t, err)

		_, err = client.Define(context.Background(), testAddress())
		require.ErrorIs(t, err, ErrRejected)
	})

	t.Run("missing addressId", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"boolResult": true})
		}))
		defer srv.Close()

		client, err := NewClient(srv.URL, WithLogger(discardLogger()))
		require.NoError(t, err)

		_, err = client.Define(context.Background(), testAddress())
		require.ErrorIs(t, err, ErrRejected)
	})
}

func TestServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, WithLogger(discardLogger()))
	require.NoError(t, err)

	_, err = client.Define(context.Background(), testAddress())
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestRequiresEndpoint(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
}
