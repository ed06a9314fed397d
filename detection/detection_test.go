package detection

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAggregateMostFrequentLabel(t *testing.T) {
	boxes := []Box{
		{Label: "Early Blight", Confidence: 0.9},
		{Label: "Leaf Mold", Confidence: 0.8},
		{Label: "Early Blight", Confidence: 0.7},
	}

	report := Aggregate(boxes)
	if report.Diagnosis != "Early Blight" {
		t.Errorf("expected most frequent label, got %q", report.Diagnosis)
	}
	if report.Counts["Early Blight"] != 2 || report.Counts["Leaf Mold"] != 1 {
		t.Errorf("unexpected counts %v", report.Counts)
	}
}

func TestAggregateNoBoxesIsHealthy(t *testing.T) {
	report := Aggregate(nil)
	if report.Diagnosis != HealthyDiagnosis {
		t.Errorf("expected %q for empty detection, got %q", HealthyDiagnosis, report.Diagnosis)
	}
}

func TestAggregateTieKeepsFirstLabel(t *testing.T) {
	boxes := []Box{
		{Label: "Leaf Mold"},
		{Label: "Early Blight"},
	}
	report := Aggregate(boxes)
	if report.Diagnosis != "Leaf Mold" {
		t.Errorf("expected tie to resolve to first label, got %q", report.Diagnosis)
	}
}

func TestSystemContextMentionsDiagnosis(t *testing.T) {
	report := Aggregate([]Box{{Label: "Early Blight"}})
	ctx := report.SystemContext()
	if !strings.Contains(ctx, "Early Blight") {
		t.Errorf("system context missing diagnosis: %q", ctx)
	}
}

func TestHTTPDetector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(4 << 20); err != nil {
			t.Fatalf("expected multipart upload: %v", err)
		}
		if _, _, err := r.FormFile("image"); err != nil {
			t.Fatalf("missing image part: %v", err)
		}
		json.NewEncoder(w).Encode(detectResponse{Boxes: []Box{
			{Label: "Early Blight", Confidence: 0.92},
		}})
	}))
	defer server.Close()

	detector := NewHTTPDetector(server.URL)
	report, err := detector.Detect(context.Background(), []byte("fake-image"))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if report.Diagnosis != "Early Blight" {
		t.Errorf("unexpected diagnosis %q", report.Diagnosis)
	}
}

func TestHTTPDetectorErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	detector := NewHTTPDetector(server.URL)
	if _, err := detector.Detect(context.Background(), []byte("x")); err == nil {
		t.Error("expected error for non-200 vision response")
	}
}
