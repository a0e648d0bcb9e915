package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSigningAlgo(t *testing.T) {
	tests := []struct {
		in     string
		want   SigningAlgo
		wantOK bool
	}{
		{"", SigningAlgoECDSA, true},
		{"ecdsa", SigningAlgoECDSA, true},
		{"ed25519", SigningAlgoED25519, true},
		{"rsa", "", false},
		{"ECDSA", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseSigningAlgo(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestAttestationReportFlatten(t *testing.T) {
	single := AttestationReport{SigningAddress: "0xa"}
	assert.Equal(t, []AttestationReport{single}, single.Flatten())

	nested := AttestationReport{
		SigningAddress: "0xa",
		AllAttestations: []AttestationReport{
			{SigningAddress: "0xa"},
			{SigningAddress: "0xb", AllAttestations: []AttestationReport{{SigningAddress: "0xc"}}},
		},
	}
	flat := nested.Flatten()
	require.Len(t, flat, 2)
	assert.Equal(t, "0xa", flat[0].SigningAddress)
	assert.Equal(t, "0xb", flat[1].SigningAddress)
	assert.Nil(t, flat[1].AllAttestations)
}

func TestMergedAttestationJSON(t *testing.T) {
	merged := MergedAttestation{
		AttestationReport: AttestationReport{
			SigningAddress:  "0xa",
			IntelQuote:      "quote",
			NvidiaPayload:   "{}",
			Info:            json.RawMessage(`{"app_id":"x"}`),
			AllAttestations: []AttestationReport{{SigningAddress: "0xa"}},
		},
		GatewayAttestation: &GatewayAttestation{RequestNonce: "00", IntelQuote: "gw"},
	}

	data, err := json.Marshal(merged)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "0xa", raw["signing_address"])
	assert.Contains(t, raw, "all_attestations")
	assert.Contains(t, raw, "gateway_attestation")
	assert.Equal(t, "x", raw["info"].(map[string]any)["app_id"])
}
