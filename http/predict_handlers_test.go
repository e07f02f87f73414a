package http

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"mpgserve/ml"
)

func postForm(handler http.Handler, form url.Values, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func postAPI(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestPredictFormScenarios(t *testing.T) {
	handler, _ := newTestServer(t, ml.NewLoadedStore(testParams, "test"))

	tests := []struct {
		weight string
		mpg    float64
		band   string
		color  string
	}{
		{"3000", 23.2, "medium", "orange"},
		{"5000", 7.8, "low", "red"},
		{"1500", 34.75, "high", "green"},
	}
	for _, tt := range tests {
		t.Run(tt.weight, func(t *testing.T) {
			rr := postForm(handler, url.Values{"weight": {tt.weight}}, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			payload := decodeBody(t, rr)
			if payload["success"] != true {
				t.Fatalf("prediction failed: %v", payload)
			}
			if payload["predicted_mpg"] != tt.mpg {
				t.Errorf("predicted_mpg = %v, want %v", payload["predicted_mpg"], tt.mpg)
			}
			if payload["band"] != tt.band || payload["color"] != tt.color {
				t.Errorf("band/color = %v/%v, want %s/%s", payload["band"], payload["color"], tt.band, tt.color)
			}
			info, ok := payload["model_info"].(map[string]interface{})
			if !ok || info["intercept"] != 46.3 || info["coefficient"] != -0.0077 {
				t.Errorf("unexpected model_info: %v", payload["model_info"])
			}
		})
	}
}

func TestPredictFormFailures(t *testing.T) {
	handler, _ := newTestServer(t, ml.NewLoadedStore(testParams, "test"))

	tests := []struct {
		name string
		form url.Values
		kind string
		text string
	}{
		{"missing", url.Values{}, "invalid_input", "valid vehicle weight"},
		{"not a number", url.Values{"weight": {"heavy"}}, "invalid_input", "valid vehicle weight"},
		{"zero", url.Values{"weight": {"0"}}, "invalid_input", "greater than 0"},
		{"negative", url.Values{"weight": {"-10"}}, "invalid_input", "greater than 0"},
		{"too heavy", url.Values{"weight": {"12000"}}, "out_of_range", "10,000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postForm(handler, tt.form, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			payload := decodeBody(t, rr)
			if payload["success"] != false || payload["kind"] != tt.kind {
				t.Fatalf("unexpected payload: %v", payload)
			}
			if msg, _ := payload["error"].(string); !strings.Contains(msg, tt.text) {
				t.Errorf("error %q does not mention %q", msg, tt.text)
			}
		})
	}
}

func TestPredictFormMultipart(t *testing.T) {
	handler, _ := newTestServer(t, ml.NewLoadedStore(testParams, "test"))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("weight", "3000"); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/predict", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	payload := decodeBody(t, rr)
	if payload["success"] != true || payload["predicted_mpg"] != 23.2 {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestPredictFormHTMLFragment(t *testing.T) {
	handler, h := newTestServer(t, ml.NewLoadedStore(testParams, "test"))

	rr := postForm(handler, url.Values{"weight": {"3000"}}, "text/html")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rr.Body.String()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	if got := doc.Find(".result strong.orange").Text(); got != "23.20" {
		t.Errorf("predicted MPG cell = %q, want 23.20", got)
	}
	if got := doc.Find(".result p.orange").Text(); got != "Medium fuel efficiency" {
		t.Errorf("label = %q", got)
	}
	if h.Renderer.CachedFragments() != 1 {
		t.Errorf("expected one cached fragment, got %d", h.Renderer.CachedFragments())
	}

	again := postForm(handler, url.Values{"weight": {"3000"}}, "text/html")
	if again.Body.String() != body {
		t.Error("cached fragment differs from the first render")
	}

	rr = postForm(handler, url.Values{"weight": {"<b>"}}, "text/html")
	doc, err = goquery.NewDocumentFromReader(rr.Body)
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	if doc.Find(".result.error").Length() != 1 || doc.Find("b").Length() != 0 {
		t.Errorf("unexpected error fragment: %s", rr.Body.String())
	}
}

func TestPredictAcceptingBothGetsJSON(t *testing.T) {
	handler, _ := newTestServer(t, ml.NewLoadedStore(testParams, "test"))

	rr := postForm(handler, url.Values{"weight": {"3000"}}, "text/html, application/json")
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON, got %q", ct)
	}
}

func TestPredictAPI(t *testing.T) {
	handler, _ := newTestServer(t, ml.NewLoadedStore(testParams, "test"))

	tests := []struct {
		name string
		body string
		mpg  float64
	}{
		{"number", `{"weight": 3000}`, 23.2},
		{"numeric string", `{"weight": "3000"}`, 23.2},
		{"above form limit", `{"weight": 12000}`, -46.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postAPI(handler, tt.body)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			payload := decodeBody(t, rr)
			if payload["success"] != true || payload["predicted_mpg"] != tt.mpg {
				t.Fatalf("unexpected payload: %v", payload)
			}
			if _, ok := payload["interpretation"]; ok {
				t.Error("API response must not carry an interpretation")
			}
		})
	}
}

func TestPredictAPIFailures(t *testing.T) {
	handler, _ := newTestServer(t, ml.NewLoadedStore(testParams, "test"))

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"weight":`},
		{"empty body", ``},
		{"missing weight", `{}`},
		{"non-numeric", `{"weight": "abc"}`},
		{"boolean", `{"weight": true}`},
		{"negative", `{"weight": -1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postAPI(handler, tt.body)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			payload := decodeBody(t, rr)
			if payload["success"] != false || payload["kind"] != "invalid_input" {
				t.Fatalf("unexpected payload: %v", payload)
			}
		})
	}
}

func TestPredictWithoutModel(t *testing.T) {
	handler, _ := newTestServer(t, ml.NewModelStore())

	for _, rr := range []*httptest.ResponseRecorder{
		postForm(handler, url.Values{"weight": {"3000"}}, ""),
		postAPI(handler, `{"weight": 3000}`),
	} {
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		payload := decodeBody(t, rr)
		if payload["success"] != false || payload["kind"] != "model_unavailable" {
			t.Fatalf("unexpected payload: %v", payload)
		}
	}
}

func TestPredictMethodNotAllowed(t *testing.T) {
	handler, _ := newTestServer(t, ml.NewLoadedStore(testParams, "test"))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/predict", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
