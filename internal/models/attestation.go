package models

import "encoding/json"

// SigningAlgo selects the key a model replica signs completions with.
type SigningAlgo string

const (
	SigningAlgoECDSA   SigningAlgo = "ecdsa"
	SigningAlgoED25519 SigningAlgo = "ed25519"
)

// ParseSigningAlgo validates s. The empty string selects ecdsa.
func ParseSigningAlgo(s string) (SigningAlgo, bool) {
	switch SigningAlgo(s) {
	case "":
		return SigningAlgoECDSA, true
	case SigningAlgoECDSA, SigningAlgoED25519:
		return SigningAlgo(s), true
	default:
		return "", false
	}
}

// AttestationReport is what a private model replica returns from
// /attestation/report. EventLog and Info are passed through untouched.
type AttestationReport struct {
	SigningAddress  string              `json:"signing_address"`
	IntelQuote      string              `json:"intel_quote"`
	NvidiaPayload   string              `json:"nvidia_payload"`
	RequestNonce    string              `json:"request_nonce,omitempty"`
	EventLog        json.RawMessage     `json:"event_log,omitempty"`
	Info            json.RawMessage     `json:"info,omitempty"`
	AllAttestations []AttestationReport `json:"all_attestations,omitempty"`
}

// Flatten returns the single-replica attestations carried by r: its own
// AllAttestations when present, otherwise r itself. Nested lists are dropped.
func (r AttestationReport) Flatten() []AttestationReport {
	if len(r.AllAttestations) == 0 {
		r.AllAttestations = nil
		return []AttestationReport{r}
	}
	out := make([]AttestationReport, 0, len(r.AllAttestations))
	for _, a := range r.AllAttestations {
		a.AllAttestations = nil
		out = append(out, a)
	}
	return out
}

// GatewayAttestation is the quote produced by the gateway's own TEE.
type GatewayAttestation struct {
	RequestNonce string          `json:"request_nonce"`
	IntelQuote   string          `json:"intel_quote"`
	EventLog     json.RawMessage `json:"event_log,omitempty"`
	Info         json.RawMessage `json:"info,omitempty"`
}

// MergedAttestation is the response of /v1/attestation/report.
type MergedAttestation struct {
	AttestationReport
	GatewayAttestation *GatewayAttestation `json:"gateway_attestation,omitempty"`
}
