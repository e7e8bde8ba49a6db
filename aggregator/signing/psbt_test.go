package signing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"frostcustody/config"
)

func TestSignPSBTRejectsMalformedPacket(t *testing.T) {
	agg := New(config.AggregatorConfig{})
	_, err := agg.SignPSBT(context.Background(), "not a real psbt", []string{"pass"})
	if err == nil {
		t.Fatal("expected an error for a malformed psbt")
	}
}

func TestPSBTHandlerRejectsMissingFields(t *testing.T) {
	agg := New(config.AggregatorConfig{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sign/psbt", jsonBody(t, map[string]any{
		"psbt": "", "passphrases": []string{},
	}))
	agg.PSBTHandler()(rec, req)
	if rec.Code == http.StatusOK {
		t.Fatalf("expected a non-200 status for an empty psbt/passphrases, got %d", rec.Code)
	}
}
