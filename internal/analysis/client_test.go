package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raine/skinalyzer-bot/internal/intake"
	"github.com/raine/skinalyzer-bot/internal/remote"
)

const acneResponse = `{
	"disease": "Acne",
	"confidence": 92,
	"probabilities": {"Acne": 92, "Eczema": 3, "Fungal Infection": 2, "Healthy": 3},
	"tips": "Use non-comedogenic products and wash your face twice a day."
}`

func testImage() *intake.StagedImage {
	return &intake.StagedImage{
		ID:       "img-1",
		FileName: "photo.jpg",
		MimeType: "image/jpeg",
		Data:     []byte{0xFF, 0xD8, 0xFF, 0xE0},
	}
}

func newTestClient(url string) *Client {
	return NewClient(remote.Options{BaseURL: url, Timeout: 5 * time.Second})
}

func TestAnalyze_Success(t *testing.T) {
	var req *http.Request
	var uploaded []byte
	var uploadedName, uploadedType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req = r
		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		uploaded, _ = io.ReadAll(file)
		uploadedName = header.Filename
		uploadedType = header.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, acneResponse)
	}))
	defer ts.Close()

	result, err := newTestClient(ts.URL).Analyze(context.Background(), testImage())
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/analyze", req.URL.Path)
	assert.NotEmpty(t, req.Header.Get(remote.RequestIDHeader))
	assert.Equal(t, testImage().Data, uploaded)
	assert.Equal(t, "photo.jpg", uploadedName)
	assert.Equal(t, "image/jpeg", uploadedType)

	assert.Equal(t, "Acne", result.Label)
	assert.Equal(t, 92.0, result.ConfidencePercent)
	assert.Equal(t, Probabilities{
		{Class: "Acne", Percent: 92},
		{Class: "Eczema", Percent: 3},
		{Class: "Fungal Infection", Percent: 2},
		{Class: "Healthy", Percent: 3},
	}, result.Probabilities)
	assert.Contains(t, result.Tips, "non-comedogenic")
}

func TestAnalyze_NoImageMakesNoRequest(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Analyze(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoImage)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestAnalyze_Failures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"bad request", http.StatusBadRequest, `{"error":"No image uploaded"}`},
		{"malformed json", http.StatusOK, `{"disease":`},
		{"missing disease", http.StatusOK, `{"confidence": 50, "probabilities": {}}`},
		{"missing confidence", http.StatusOK, `{"disease": "Acne", "probabilities": {}}`},
		{"missing probabilities", http.StatusOK, `{"disease": "Acne", "confidence": 50}`},
		{"confidence out of range", http.StatusOK, `{"disease": "Acne", "confidence": 150, "probabilities": {}}`},
		{"probabilities not an object", http.StatusOK, `{"disease": "Acne", "confidence": 50, "probabilities": [1,2]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer ts.Close()

			_, err := newTestClient(ts.URL).Analyze(context.Background(), testImage())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRequestFailed)

			var rf *RequestFailedError
			require.True(t, errors.As(err, &rf))
			assert.NotEmpty(t, rf.Reason)
		})
	}
}

func TestAnalyze_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := newTestClient(url).Analyze(context.Background(), testImage())
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestAnalyze_OneRequestPerCall(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.Analyze(context.Background(), testImage())
	assert.Error(t, err)
	_, err = client.Analyze(context.Background(), testImage())
	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestProbabilities_RoundTripKeepsOrder(t *testing.T) {
	var p Probabilities
	require.NoError(t, json.Unmarshal([]byte(`{"Healthy": 1.5, "Acne": 98.5}`), &p))
	assert.Equal(t, "Healthy", p[0].Class)
	assert.Equal(t, "Acne", p[1].Class)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Healthy": 1.5, "Acne": 98.5}`, string(out))
	assert.Equal(t, `{"Healthy":1.5,"Acne":98.5}`, string(out))
}

func TestAnalyze_ClassPercentsUsedVerbatim(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"disease": "Acne", "confidence": 90, "probabilities": {"Acne": 120, "Healthy": -20}}`)
	}))
	defer ts.Close()

	res, err := newTestClient(ts.URL).Analyze(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, Probabilities{{Class: "Acne", Percent: 120}, {Class: "Healthy", Percent: -20}}, res.Probabilities)
}
