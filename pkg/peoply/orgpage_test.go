package peoply

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrgUUID = "f47ac10b-58cc-4372-a567-0e02b2c3d479"

func orgPageHTML(script string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>Org</title></head>
<body>
<div id="__next">content</div>
%s
</body>
</html>`, script)
}

func nextDataScript(body string) string {
	return fmt.Sprintf(`<script id="__NEXT_DATA__" type="application/json">%s</script>`, body)
}

func TestResolveOrganizationID(t *testing.T) {
	t.Run("extracts the organization UUID", func(t *testing.T) {
		var gotUA, gotPath string
		page := orgPageHTML(nextDataScript(fmt.Sprintf(
			`{"props":{"pageProps":{"organization":{"id":"%s","name":"IFI ProgSys"}}}}`, testOrgUUID)))
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			gotPath = r.URL.Path
			_, _ = w.Write([]byte(page))
		}))
		defer server.Close()

		client := NewClientWithBaseURLs(server.URL, server.URL)
		id, err := client.ResolveOrganizationID(context.Background(), "ifi-progsys")
		require.NoError(t, err)
		assert.Equal(t, testOrgUUID, id)
		assert.Equal(t, "/orgs/ifi-progsys", gotPath)
		assert.Equal(t, browserUserAgent, gotUA)
	})

	t.Run("tolerates whitespace around the payload", func(t *testing.T) {
		page := orgPageHTML(nextDataScript(fmt.Sprintf(
			"\n\t  {\"props\":{\"pageProps\":{\"organization\":{\"id\":\"%s\"}}}}  \n", testOrgUUID)))
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(page))
		}))
		defer server.Close()

		client := NewClientWithBaseURLs(server.URL, server.URL)
		id, err := client.ResolveOrganizationID(context.Background(), "ifi-progsys")
		require.NoError(t, err)
		assert.Equal(t, testOrgUUID, id)
	})

	t.Run("missing script maps to ErrMetadataNotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(orgPageHTML(`<script type="application/json">{}</script>`)))
		}))
		defer server.Close()

		client := NewClientWithBaseURLs(server.URL, server.URL)
		_, err := client.ResolveOrganizationID(context.Background(), "ifi-progsys")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMetadataNotFound)
	})

	t.Run("empty script maps to ErrMetadataNotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(orgPageHTML(nextDataScript("   \n  "))))
		}))
		defer server.Close()

		client := NewClientWithBaseURLs(server.URL, server.URL)
		_, err := client.ResolveOrganizationID(context.Background(), "ifi-progsys")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMetadataNotFound)
	})

	t.Run("missing JSON path maps to ErrSchema", func(t *testing.T) {
		page := orgPageHTML(nextDataScript(`{"props":{"pageProps":{}}}`))
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(page))
		}))
		defer server.Close()

		client := NewClientWithBaseURLs(server.URL, server.URL)
		_, err := client.ResolveOrganizationID(context.Background(), "ifi-progsys")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("undecodable payload maps to ErrSchema", func(t *testing.T) {
		page := orgPageHTML(nextDataScript(`{"props": not json`))
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(page))
		}))
		defer server.Close()

		client := NewClientWithBaseURLs(server.URL, server.URL)
		_, err := client.ResolveOrganizationID(context.Background(), "ifi-progsys")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("non-UUID organization id maps to ErrSchema", func(t *testing.T) {
		page := orgPageHTML(nextDataScript(
			`{"props":{"pageProps":{"organization":{"id":"not-a-uuid"}}}}`))
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(page))
		}))
		defer server.Close()

		client := NewClientWithBaseURLs(server.URL, server.URL)
		_, err := client.ResolveOrganizationID(context.Background(), "ifi-progsys")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("HTTP 404 maps to ErrHTTP", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewClientWithBaseURLs(server.URL, server.URL)
		_, err := client.ResolveOrganizationID(context.Background(), "no-such-org")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrHTTP)
	})

	t.Run("unreachable frontend maps to ErrTransport", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		server.Close()

		client := NewClientWithBaseURLs(server.URL, server.URL)
		_, err := client.ResolveOrganizationID(context.Background(), "ifi-progsys")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTransport)
	})
}
