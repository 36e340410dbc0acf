package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PolicySource fetches the remote policy index (a JSON array, or an
// object with a "policies" array).
type PolicySource struct {
	URL    string
	Client *http.Client
	now    func() time.Time
}

type policyRecord struct {
	ID                 json.RawMessage `json:"id"`
	Name               string          `json:"name"`
	CategoryName       string          `json:"category_name"`
	AuthorName         string          `json:"author_name"`
	ApplicabilityGroup string          `json:"applicability_group_name"`
	TextPreview        string          `json:"text_preview"`
	URLDirect          string          `json:"policystat_url_direct"`
	URLLatest          string          `json:"policystat_url_latest"`
	URLGuest           string          `json:"policystat_url_guest_access"`
}

func NewPolicySource(url string, timeout time.Duration) *PolicySource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PolicySource{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (s *PolicySource) Fetch(ctx context.Context) ([]Document, error) {
	if s.Client == nil {
		return nil, errors.New("policy source: http client is nil")
	}
	if strings.TrimSpace(s.URL) == "" {
		return nil, ErrNoSource
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("policy source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("policy source: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("policy source: read body: %w", err)
	}

	records, err := decodePolicies(body)
	if err != nil {
		return nil, fmt.Errorf("policy source: %w", err)
	}

	now := s.now()
	out := make([]Document, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		out = append(out, Document{
			ID:                 rawID(r.ID),
			Title:              r.Name,
			Category:           r.CategoryName,
			Author:             r.AuthorName,
			ApplicabilityGroup: r.ApplicabilityGroup,
			Text:               r.TextPreview,
			URL:                firstNonEmpty(r.URLDirect, r.URLLatest, r.URLGuest),
			RefreshedAt:        now,
		})
	}
	return out, nil
}

func decodePolicies(body []byte) ([]policyRecord, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var list []policyRecord
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var wrapped struct {
		Policies []policyRecord `json:"policies"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Policies, nil
}

func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
