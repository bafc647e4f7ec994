package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nomadHubAPI/internal/apperr"
	"nomadHubAPI/internal/config"
	"nomadHubAPI/internal/types/partner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAirtableServer(t *testing.T, handler http.HandlerFunc) config.Airtable {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return config.Airtable{
		Token:     "pat_test",
		BaseID:    "appBase",
		TableName: "Partners",
		APIURL:    server.URL,
	}
}

func validPartnerRequest() *partner.CreatePartnerRequest {
	return &partner.CreatePartnerRequest{
		Name:        "Coffee Lab",
		Description: "Specialty coffee",
		Category:    "Еда",
		Offer:       "-10%",
		PromoCode:   "NOMADCOFFEE",
		URL:         "https://coffee.test",
	}
}

func TestListPartners(t *testing.T) {
	cfg := newAirtableServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer pat_test", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Path, "/appBase/Partners")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"records": [
			{"id": "rec1", "createdTime": "2026-01-01T00:00:00.000Z", "fields": {
				"Name": "Coffee Lab", "Description": "Specialty coffee", "Category": "Еда",
				"Offer": "-10%", "PromoCode": "NOMADCOFFEE", "URL": "https://coffee.test",
				"Logo": [{"url": "https://cdn.test/logo.png", "filename": "logo.png"}]
			}},
			{"id": "rec2", "createdTime": "2026-01-02T00:00:00.000Z", "fields": {"Name": "Gym"}}
		]}`))
	})

	svc := NewPartnerService(cfg, zap.NewNop())
	partners, err := svc.ListPartners(context.Background())
	require.NoError(t, err)
	require.Len(t, partners, 2)

	assert.Equal(t, partner.Partner{
		ID:          "rec1",
		Name:        "Coffee Lab",
		Logo:        "https://cdn.test/logo.png",
		Description: "Specialty coffee",
		Category:    "Еда",
		Offer:       "-10%",
		PromoCode:   "NOMADCOFFEE",
		URL:         "https://coffee.test",
	}, partners[0])

	assert.Equal(t, partner.Partner{ID: "rec2", Name: "Gym", Category: partner.DefaultCategory}, partners[1])
}

func TestListPartners_NotConfigured(t *testing.T) {
	svc := NewPartnerService(config.Airtable{TableName: "Partners"}, zap.NewNop())

	_, err := svc.ListPartners(context.Background())
	assert.ErrorIs(t, err, ErrPartnersNotConfigured)
}

func TestListPartners_UpstreamError(t *testing.T) {
	cfg := newAirtableServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"type": "AUTHENTICATION_REQUIRED"}}`))
	})

	svc := NewPartnerService(cfg, zap.NewNop())
	_, err := svc.ListPartners(context.Background())
	assert.Error(t, err)
}

func TestCreatePartner(t *testing.T) {
	var sent map[string]any
	cfg := newAirtableServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &sent))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"records": [{"id": "recNew", "createdTime": "2026-03-15T12:00:00.000Z", "fields": {"Name": "Coffee Lab"}}]}`))
	})

	svc := NewPartnerService(cfg, zap.NewNop())
	req := validPartnerRequest()
	req.Logo = "https://cdn.test/logo.png"

	record, err := svc.CreatePartner(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "recNew", record.ID)
	assert.Equal(t, "2026-03-15T12:00:00.000Z", record.CreatedTime)
	assert.Equal(t, "Coffee Lab", record.Fields["Name"])

	records := sent["records"].([]any)
	require.Len(t, records, 1)
	fields := records[0].(map[string]any)["fields"].(map[string]any)
	assert.Equal(t, "NOMADCOFFEE", fields["PromoCode"])
	assert.Equal(t, []any{map[string]any{"url": "https://cdn.test/logo.png"}}, fields["Logo"])
}

func TestCreatePartner_WithoutLogo(t *testing.T) {
	var sent map[string]any
	cfg := newAirtableServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &sent)
		w.Write([]byte(`{"records": [{"id": "recNew", "fields": {}}]}`))
	})

	svc := NewPartnerService(cfg, zap.NewNop())
	_, err := svc.CreatePartner(context.Background(), validPartnerRequest())
	require.NoError(t, err)

	fields := sent["records"].([]any)[0].(map[string]any)["fields"].(map[string]any)
	assert.NotContains(t, fields, "Logo")
}

func TestCreatePartner_Validation(t *testing.T) {
	svc := NewPartnerService(config.Airtable{}, zap.NewNop())

	tests := []struct {
		name   string
		mutate func(*partner.CreatePartnerRequest)
		want   string
	}{
		{"name first", func(r *partner.CreatePartnerRequest) { r.Name = ""; r.URL = "" }, "Поле name обязательно"},
		{"description", func(r *partner.CreatePartnerRequest) { r.Description = "" }, "Поле description обязательно"},
		{"promo code", func(r *partner.CreatePartnerRequest) { r.PromoCode = "" }, "Поле promoCode обязательно"},
		{"url", func(r *partner.CreatePartnerRequest) { r.URL = "" }, "Поле url обязательно"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validPartnerRequest()
			tt.mutate(req)

			_, err := svc.CreatePartner(context.Background(), req)

			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			assert.Equal(t, tt.want, appErr.Message)
		})
	}
}

func TestCreatePartner_NotConfigured(t *testing.T) {
	svc := NewPartnerService(config.Airtable{}, zap.NewNop())

	_, err := svc.CreatePartner(context.Background(), validPartnerRequest())

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindConfig, appErr.Kind)
	assert.Equal(t, "Airtable не настроен", appErr.Message)
}

func TestCreatePartner_UpstreamFailure(t *testing.T) {
	cfg := newAirtableServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": {"type": "INVALID_VALUE_FOR_COLUMN"}}`))
	})

	svc := NewPartnerService(cfg, zap.NewNop())
	_, err := svc.CreatePartner(context.Background(), validPartnerRequest())

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindUpstream, appErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Equal(t, "Ошибка при добавлении в Airtable", appErr.Message)
}

func slowAirtable(t *testing.T) config.Airtable {
	return newAirtableServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
			w.Write([]byte(`{"records": []}`))
		}
	})
}

func TestListPartners_HonoursDeadline(t *testing.T) {
	svc := NewPartnerService(slowAirtable(t), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.ListPartners(ctx)

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCreatePartner_HonoursDeadline(t *testing.T) {
	svc := NewPartnerService(slowAirtable(t), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.CreatePartner(ctx, validPartnerRequest())

	assert.True(t, apperr.IsKind(err, apperr.KindUpstream))
	assert.Less(t, time.Since(start), time.Second)
}
