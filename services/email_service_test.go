package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"nomadHubAPI/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendWelcome(t *testing.T) {
	var (
		gotAuth string
		gotPath string
		payload map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	svc := NewEmailService(config.SendGrid{
		APIKey:    "SG.test",
		APIHost:   server.URL,
		FromEmail: "welcome@nomad-hub.com",
		FromName:  "НОМАД ХАБ",
	})

	err := svc.SendWelcome(context.Background(), WelcomeEmail{
		Email:     "ivan@example.com",
		Name:      "Ivan <script>",
		PromoCode: "NOMAD1A2B3C4D",
		ChatLink:  "https://t.me/test_chat",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer SG.test", gotAuth)
	assert.Equal(t, "/v3/mail/send", gotPath)

	from := payload["from"].(map[string]any)
	assert.Equal(t, "welcome@nomad-hub.com", from["email"])

	personalizations := payload["personalizations"].([]any)
	require.Len(t, personalizations, 1)
	p := personalizations[0].(map[string]any)
	assert.Equal(t, welcomeSubject, p["subject"])
	to := p["to"].([]any)[0].(map[string]any)
	assert.Equal(t, "ivan@example.com", to["email"])

	content := payload["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "text/html", content["type"])
	html := content["value"].(string)
	assert.Contains(t, html, "NOMAD1A2B3C4D")
	assert.Contains(t, html, `href="https://t.me/test_chat"`)
	assert.Contains(t, html, "Ivan &lt;script&gt;")
}

func TestSendWelcome_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"message":"invalid key"}]}`))
	}))
	defer server.Close()

	svc := NewEmailService(config.SendGrid{APIKey: "bad", APIHost: server.URL, FromEmail: "a@b.c"})

	err := svc.SendWelcome(context.Background(), WelcomeEmail{Email: "x@y.z", Name: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestSendWelcome_NotConfigured(t *testing.T) {
	svc := NewEmailService(config.SendGrid{})

	err := svc.SendWelcome(context.Background(), WelcomeEmail{Email: "x@y.z"})
	assert.ErrorIs(t, err, ErrEmailNotConfigured)
}
