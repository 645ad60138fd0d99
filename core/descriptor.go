package core

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const ConnectionTypeLooker = "looker"

// ConnectionDescriptor is the caller-submitted shape for registering an
// external instance. ClientSecret is plaintext on arrival and must only ever
// leave the orchestrator as a vault envelope.
type ConnectionDescriptor struct {
	URL              string
	Port             int
	ClientID         string
	ClientSecret     string
	OrganizationName string
	Type             string
}

// NormalizedDescriptor is the validated form the orchestrator works with.
type NormalizedDescriptor struct {
	UniqueIdentifier string
	DisplayName      string
	Port             int
	ClientID         string
	ClientSecret     string
	OrganizationName string
	Type             string
}

// Normalize validates the descriptor fail-fast and derives the canonical
// unique identifier (absolute http/https URL, trailing slashes stripped) and
// a display name from the host component.
func (d ConnectionDescriptor) Normalize() (NormalizedDescriptor, error) {
	raw := strings.TrimSpace(d.URL)
	if raw == "" {
		return NormalizedDescriptor{}, fmt.Errorf("core: instance url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return NormalizedDescriptor{}, fmt.Errorf("core: invalid instance url: %w", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return NormalizedDescriptor{}, fmt.Errorf("core: invalid instance url %q: absolute http or https required", raw)
	}
	if parsed.Host == "" {
		return NormalizedDescriptor{}, fmt.Errorf("core: invalid instance url %q: host is required", raw)
	}
	if strings.TrimSpace(d.ClientID) == "" {
		return NormalizedDescriptor{}, fmt.Errorf("core: client id is required")
	}
	if d.ClientSecret == "" {
		return NormalizedDescriptor{}, fmt.Errorf("core: client secret is required")
	}
	if d.Port < 0 || d.Port > 65535 {
		return NormalizedDescriptor{}, fmt.Errorf("core: invalid port %d", d.Port)
	}

	identifier := strings.TrimRight(raw, "/")
	connectionType := strings.ToLower(strings.TrimSpace(d.Type))
	if connectionType == "" {
		connectionType = ConnectionTypeLooker
	}

	return NormalizedDescriptor{
		UniqueIdentifier: identifier,
		DisplayName:      displayNameForHost(connectionType, parsed.Hostname()),
		Port:             d.Port,
		ClientID:         strings.TrimSpace(d.ClientID),
		ClientSecret:     d.ClientSecret,
		OrganizationName: strings.TrimSpace(d.OrganizationName),
		Type:             connectionType,
	}, nil
}

func (d NormalizedDescriptor) HasOrganizationName() bool {
	return d.OrganizationName != ""
}

func displayNameForHost(connectionType, host string) string {
	label := strings.TrimSpace(host)
	if label == "" {
		label = "instance"
	}
	switch connectionType {
	case ConnectionTypeLooker:
		return "Looker - " + label
	default:
		return connectionType + " - " + label
	}
}

// credentialBundle is the plaintext payload encrypted into
// Connection.EncryptedCredentials.
type credentialBundle struct {
	URL          string `json:"url"`
	Port         int    `json:"port,omitempty"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// EncodeCredentialBundle serializes the secret material of a normalized
// descriptor prior to vault encryption.
func EncodeCredentialBundle(d NormalizedDescriptor) ([]byte, error) {
	payload := credentialBundle{
		URL:          d.UniqueIdentifier,
		Port:         d.Port,
		ClientID:     d.ClientID,
		ClientSecret: d.ClientSecret,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("core: encode credential bundle: %w", err)
	}
	return encoded, nil
}

// CredentialBundle is the decrypted view of a connection's secret material.
type CredentialBundle struct {
	URL          string `json:"url"`
	Port         int    `json:"port,omitempty"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func DecodeCredentialBundle(payload []byte) (CredentialBundle, error) {
	if len(payload) == 0 {
		return CredentialBundle{}, fmt.Errorf("core: credential bundle is empty")
	}
	decoded := CredentialBundle{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return CredentialBundle{}, fmt.Errorf("core: decode credential bundle: %w", err)
	}
	return CredentialBundle{
		URL:          strings.TrimSpace(decoded.URL),
		Port:         decoded.Port,
		ClientID:     strings.TrimSpace(decoded.ClientID),
		ClientSecret: decoded.ClientSecret,
	}, nil
}
