package peoply

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/net/html"
)

// nextData mirrors the slice of the Next.js page payload the resolver
// needs: props.pageProps.organization.id.
type nextData struct {
	Props struct {
		PageProps struct {
			Organization struct {
				ID string `json:"id"`
			} `json:"organization"`
		} `json:"pageProps"`
	} `json:"props"`
}

// ResolveOrganizationID scrapes the organization's public page and
// extracts its stable UUID from the embedded __NEXT_DATA__ script.
//
// Called exactly once per process lifetime, at engine startup; any
// failure here is fatal to the engine.
func (c *Client) ResolveOrganizationID(ctx context.Context, orgName string) (string, error) {
	endpoint := c.baseURL + "/orgs/" + orgName

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: GET /orgs/%s: %v", ErrTransport, orgName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: GET /orgs/%s returned %d", ErrHTTP, orgName, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: parse organization page: %v", ErrTransport, err)
	}

	id, err := extractOrganizationID(doc)
	if err != nil {
		return "", err
	}

	c.logger.Info("Resolved organization", "org", orgName, "org_id", id)
	return id, nil
}

func extractOrganizationID(doc *goquery.Document) (string, error) {
	sel := doc.Find(`script#__NEXT_DATA__[type="application/json"]`)
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: no __NEXT_DATA__ script element", ErrMetadataNotFound)
	}
	if node := sel.Get(0); node.Type != html.ElementNode {
		return "", fmt.Errorf("%w: __NEXT_DATA__ matched a %v node", ErrNotATag, node.Type)
	}

	raw := sel.Text()
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: __NEXT_DATA__ script is empty", ErrMetadataNotFound)
	}

	var data nextData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		// The script text occasionally carries stray whitespace or BOM
		// bytes; retry once on the trimmed form before giving up.
		if retryErr := json.Unmarshal([]byte(strings.TrimSpace(raw)), &data); retryErr != nil {
			return "", fmt.Errorf("%w: decode __NEXT_DATA__: %v", ErrSchema, err)
		}
	}

	id := data.Props.PageProps.Organization.ID
	if id == "" {
		return "", fmt.Errorf("%w: props.pageProps.organization.id is absent", ErrSchema)
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: organization id %q is not a UUID", ErrSchema, id)
	}
	return id, nil
}
