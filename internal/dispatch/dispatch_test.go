package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradmak/aixos/internal/config"
	"github.com/tradmak/aixos/internal/domain"
	aixos_errors "github.com/tradmak/aixos/pkg/errors"
)

func TestExtractOutputShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"object output", `{"output":"hello"}`, "hello"},
		{"object reply", `{"reply":"hi"}`, "hi"},
		{"object text", `{"text":"yo"}`, "yo"},
		{"output wins over text", `{"output":"a","text":"b"}`, "a"},
		{"array first element", `[{"output":"first"},{"output":"second"}]`, "first"},
		{"array reply", `[{"reply":"from array"}]`, "from array"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractOutput([]byte(tc.raw))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestExtractOutputFailures(t *testing.T) {
	for _, raw := range []string{`{}`, `[]`, `{"unrelated":"x"}`, `not json`, `[{"unrelated":"x"}]`} {
		_, err := extractOutput([]byte(raw))
		require.ErrorIs(t, err, aixos_errors.ErrDispatchFailed, raw)
	}
}

func TestRelaySendDisabledSettings(t *testing.T) {
	relay := NewRelay(config.DispatchConfig{})

	err := relay.Send(context.Background(), EmailJob{}, domain.EmailSettings{Enabled: false})
	require.ErrorIs(t, err, aixos_errors.ErrDispatchFailed)
}

func TestRelaySendNoTransportConfigured(t *testing.T) {
	relay := NewRelay(config.DispatchConfig{})

	err := relay.Send(context.Background(), EmailJob{}, domain.EmailSettings{Enabled: true})
	require.ErrorIs(t, err, aixos_errors.ErrDispatchFailed)
}

func TestRelayWebhookDelivery(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	relay := NewRelay(config.DispatchConfig{})
	err := relay.Send(context.Background(), EmailJob{
		To:       []string{"contact@example.com"},
		Subject:  "Welcome",
		BodyText: "Hello there",
	}, domain.EmailSettings{
		Enabled:          true,
		FromName:         "AIXOS Support",
		FromEmail:        "support@example.com",
		WebhookURL:       srv.URL,
		WebhookAuthToken: "secret-token",
	})

	require.NoError(t, err)
	require.Equal(t, "Bearer secret-token", gotAuth)
	require.Equal(t, "Welcome", gotBody["subject"])
	require.Equal(t, "AIXOS Support", gotBody["from_name"])
}

func TestRelayWebhookNon2xxIsDispatchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	relay := NewRelay(config.DispatchConfig{})
	err := relay.Send(context.Background(), EmailJob{}, domain.EmailSettings{
		Enabled:    true,
		WebhookURL: srv.URL,
	})

	require.ErrorIs(t, err, aixos_errors.ErrDispatchFailed)
}

func TestWebhooksChatReplyParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		require.Equal(t, "sess-1", req["sessionId"])
		_, _ = w.Write([]byte(`[{"output":"automated answer"}]`))
	}))
	defer srv.Close()

	hooks := NewWebhooks(config.DispatchConfig{ChatWebhookURL: srv.URL})
	reply, err := hooks.ChatReply(context.Background(), "sess-1", "what are your hours?")

	require.NoError(t, err)
	require.Equal(t, "automated answer", reply)
}

func TestWebhooksUnconfiguredURL(t *testing.T) {
	hooks := NewWebhooks(config.DispatchConfig{})

	_, err := hooks.ChatReply(context.Background(), "sess-1", "hi")
	require.Error(t, err)
}
