package middleware

import (
	"net/http"
	"strings"
)

// CORSPolicy is the preflight answer for one endpoint.
type CORSPolicy struct {
	Methods []string
	Headers []string
}

var (
	AddPartnerCORS = CORSPolicy{Methods: []string{"POST", "OPTIONS"}, Headers: []string{"Content-Type", AdminPasswordHeader}}
	AdminCORS      = CORSPolicy{Methods: []string{"GET", "POST", "OPTIONS"}, Headers: []string{"Content-Type", "Authorization"}}
	PartnersCORS   = CORSPolicy{Methods: []string{"GET", "POST", "OPTIONS"}, Headers: []string{"Content-Type", "X-User-Id"}}
	PaymentCORS    = CORSPolicy{Methods: []string{"POST", "OPTIONS"}, Headers: []string{"Content-Type"}}
)

// Preflight answers OPTIONS with 200 and an empty body before anything else
// in the chain runs, including auth.
func Preflight(policy CORSPolicy) func(http.Handler) http.Handler {
	methods := strings.Join(policy.Methods, ", ")
	headers := strings.Join(policy.Headers, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusOK)
		})
	}
}
