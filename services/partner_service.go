package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"nomadHubAPI/internal/apperr"
	"nomadHubAPI/internal/config"
	"nomadHubAPI/internal/types/partner"

	"github.com/go-playground/validator/v10"
	"github.com/mehanizm/airtable"
	"go.uber.org/zap"
)

// ErrPartnersNotConfigured is returned when the Airtable token or base is unset.
var ErrPartnersNotConfigured = errors.New("airtable is not configured")

type PartnerService struct {
	table    *airtable.Table
	validate *validator.Validate
	log      *zap.Logger
}

func NewPartnerService(cfg config.Airtable, log *zap.Logger) *PartnerService {
	s := &PartnerService{
		validate: newPartnerValidator(),
		log:      log.Named("partners"),
	}

	if !cfg.Configured() {
		s.log.Warn("Airtable credentials missing, partner directory disabled")
		return s
	}

	client := airtable.NewClient(cfg.Token)
	if cfg.APIURL != "" {
		if err := client.SetBaseURL(cfg.APIURL); err != nil {
			s.log.Warn("invalid AIRTABLE_API_URL, using default", zap.Error(err))
		}
	}
	s.table = client.GetTable(cfg.BaseID, cfg.TableName)

	return s
}

func newPartnerValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ListPartners returns every partner in the directory with missing optional
// fields normalised.
func (s *PartnerService) ListPartners(ctx context.Context) ([]partner.Partner, error) {
	if s.table == nil {
		return nil, ErrPartnersNotConfigured
	}
	records, err := s.table.GetRecords().DoContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}

	partners := make([]partner.Partner, 0, len(records.Records))
	for _, record := range records.Records {
		partners = append(partners, partnerFromFields(record.ID, record.Fields))
	}

	return partners, nil
}

// CreatePartner validates req and writes it as a new Airtable record.
func (s *PartnerService) CreatePartner(ctx context.Context, req *partner.CreatePartnerRequest) (*partner.Record, error) {
	if err := s.validatePartner(req); err != nil {
		return nil, err
	}
	if s.table == nil {
		return nil, apperr.Config("Airtable не настроен")
	}
	fields := map[string]any{
		partner.FieldName:        req.Name,
		partner.FieldDescription: req.Description,
		partner.FieldCategory:    req.Category,
		partner.FieldOffer:       req.Offer,
		partner.FieldPromoCode:   req.PromoCode,
		partner.FieldURL:         req.URL,
	}
	if req.Logo != "" {
		fields[partner.FieldLogo] = []any{map[string]any{"url": req.Logo}}
	}

	created, err := s.table.AddRecordsContext(ctx, &airtable.Records{
		Records: []*airtable.Record{{Fields: fields}},
	})
	if err != nil {
		s.log.Error("failed to add partner", zap.String("name", req.Name), zap.Error(err))
		return nil, apperr.Upstream(http.StatusInternalServerError, "Ошибка при добавлении в Airtable", err)
	}
	if created == nil || len(created.Records) == 0 {
		return nil, apperr.Upstream(http.StatusInternalServerError, "Ошибка при добавлении в Airtable", errors.New("empty response"))
	}

	record := created.Records[0]
	s.log.Info("partner added", zap.String("id", record.ID), zap.String("name", req.Name))

	return &partner.Record{
		ID:          record.ID,
		CreatedTime: record.CreatedTime,
		Fields:      record.Fields,
	}, nil
}

// validatePartner reports the first missing required field in form order.
func (s *PartnerService) validatePartner(req *partner.CreatePartnerRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return apperr.Validation(fmt.Sprintf("Поле %s обязательно", fieldErrs[0].Field()))
	}
	return apperr.Validation(err.Error())
}

func partnerFromFields(id string, fields map[string]any) partner.Partner {
	return partner.Partner{
		ID:          id,
		Name:        textField(fields, partner.FieldName, ""),
		Logo:        logoURL(fields),
		Description: textField(fields, partner.FieldDescription, ""),
		Category:    textField(fields, partner.FieldCategory, partner.DefaultCategory),
		Offer:       textField(fields, partner.FieldOffer, ""),
		PromoCode:   textField(fields, partner.FieldPromoCode, ""),
		URL:         textField(fields, partner.FieldURL, ""),
	}
}

func textField(fields map[string]any, key, fallback string) string {
	value, ok := fields[key]
	if !ok || value == nil {
		return fallback
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// logoURL reads the first attachment's url from the Logo field.
func logoURL(fields map[string]any) string {
	attachments, ok := fields[partner.FieldLogo].([]any)
	if !ok || len(attachments) == 0 {
		return ""
	}
	first, ok := attachments[0].(map[string]any)
	if !ok {
		return ""
	}
	url, _ := first["url"].(string)
	return url
}
