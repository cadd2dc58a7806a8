package notify

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/lookout-monitor/lookout/internal/core/constants"
	"github.com/lookout-monitor/lookout/internal/core/domain"
)

// messagePlaceholder is replaced with the rendered alert text wherever it
// appears in the payload template, including inside nested maps and lists.
const messagePlaceholder = "$MSG"

// renderedRequest is one webhook delivery ready to send.
type renderedRequest struct {
	URL         string
	Method      string
	ContentType string
	Body        []byte
}

// render substitutes the message into the payload template and serialises it
// according to the configured payload type.
func render(cfg *domain.WebhookConfig, message string) (renderedRequest, error) {
	req := renderedRequest{
		URL:    cfg.URL,
		Method: strings.ToUpper(cfg.Method),
	}
	if req.Method == "" {
		req.Method = "POST"
	}

	payload := substitute(cfg.Payload, message)

	switch cfg.PayloadType {
	case domain.PayloadTypeForm:
		values, err := flatten(payload)
		if err != nil {
			return renderedRequest{}, err
		}
		req.ContentType = constants.ContentTypeForm
		req.Body = []byte(values.Encode())

	case domain.PayloadTypeParam:
		values, err := flatten(payload)
		if err != nil {
			return renderedRequest{}, err
		}
		separator := "?"
		if strings.Contains(cfg.URL, "?") {
			separator = "&"
		}
		req.URL = cfg.URL + separator + values.Encode()

	case domain.PayloadTypeJSON, "":
		body, err := json.Marshal(payload)
		if err != nil {
			return renderedRequest{}, fmt.Errorf("encode webhook payload: %w", err)
		}
		req.ContentType = constants.ContentTypeJSON
		req.Body = body

	default:
		return renderedRequest{}, fmt.Errorf("unknown webhook payload type %q", cfg.PayloadType)
	}

	return req, nil
}

// substitute deep-copies the template, replacing the placeholder in every
// string value it finds on the way down.
func substitute(value any, message string) any {
	switch v := value.(type) {
	case string:
		return strings.ReplaceAll(v, messagePlaceholder, message)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[key] = substitute(inner, message)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = substitute(inner, message)
		}
		return out
	case nil:
		return map[string]any{"text": message}
	default:
		return v
	}
}

// flatten turns the top level of the payload into form values. Scalars are
// stringified, nested structures are carried as compact JSON. Keys are sorted
// so the encoding is deterministic for tests and receiver-side dedup.
func flatten(payload any) (url.Values, error) {
	asMap, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("form payloads need a map template, got %T", payload)
	}

	keys := make([]string, 0, len(asMap))
	for key := range asMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, key := range keys {
		switch inner := asMap[key].(type) {
		case string:
			values.Set(key, inner)
		case nil:
			values.Set(key, "")
		case map[string]any, []any:
			encoded, err := json.Marshal(inner)
			if err != nil {
				return nil, fmt.Errorf("encode webhook field %q: %w", key, err)
			}
			values.Set(key, string(encoded))
		default:
			values.Set(key, fmt.Sprint(inner))
		}
	}
	return values, nil
}
