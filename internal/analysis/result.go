package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// ClassProbability is one entry of the per-class probability mapping.
type ClassProbability struct {
	Class   string
	Percent float64
}

// Probabilities keeps the class order the service returned.
type Probabilities []ClassProbability

// UnmarshalJSON decodes a JSON object while preserving key order.
func (p *Probabilities) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("probabilities: expected object, got %v", tok)
	}

	out := Probabilities{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		class, _ := keyTok.(string)

		var percent float64
		if err := dec.Decode(&percent); err != nil {
			return fmt.Errorf("probabilities: value for %q: %w", class, err)
		}
		out = append(out, ClassProbability{Class: class, Percent: percent})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*p = out
	return nil
}

// MarshalJSON encodes the entries as a JSON object in order.
func (p Probabilities) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Class)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(e.Percent)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is the decoded analysis of one staged image.
type Result struct {
	Label             string
	ConfidencePercent float64
	Probabilities     Probabilities
	Tips              string
}

// analyzeResponse is the wire format of POST /analyze. Pointers tell missing
// fields apart from zero values.
type analyzeResponse struct {
	Disease       *string        `json:"disease"`
	Confidence    *float64       `json:"confidence"`
	Probabilities *Probabilities `json:"probabilities"`
	Tips          string         `json:"tips"`
}

func decodeResult(body []byte) (*Result, error) {
	var resp analyzeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if resp.Disease == nil || *resp.Disease == "" {
		return nil, fmt.Errorf("response missing disease")
	}
	if resp.Confidence == nil {
		return nil, fmt.Errorf("response missing confidence")
	}
	if c := *resp.Confidence; math.IsNaN(c) || c < 0 || c > 100 {
		return nil, fmt.Errorf("confidence out of range: %v", c)
	}
	if resp.Probabilities == nil {
		return nil, fmt.Errorf("response missing probabilities")
	}

	return &Result{
		Label:             *resp.Disease,
		ConfidencePercent: *resp.Confidence,
		Probabilities:     *resp.Probabilities,
		Tips:              resp.Tips,
	}, nil
}
