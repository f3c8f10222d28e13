package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Summarize reads type, issuer and subject from a presented credential. The
// credential may be a JSON-LD object or a JWT (as a JSON string). Signatures
// are not checked here; that is the agent's job.
func Summarize(raw json.RawMessage) Summary {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Summary{}
	}
	if trimmed[0] == '"' {
		var token string
		if err := json.Unmarshal(trimmed, &token); err != nil {
			return Summary{}
		}
		return summarizeJWT(token)
	}
	var doc map[string]any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Summary{}
	}
	return summarizeDocument(doc)
}

func summarizeJWT(token string) Summary {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Summary{}
	}
	var s Summary
	if vc, ok := claims["vc"].(map[string]any); ok {
		s = summarizeDocument(vc)
	}
	if s.Issuer == "" {
		s.Issuer, _ = claims["iss"].(string)
	}
	if s.Subject == "" {
		s.Subject, _ = claims["sub"].(string)
	}
	return s
}

func summarizeDocument(doc map[string]any) Summary {
	s := Summary{
		Type:   credentialType(doc["type"]),
		Issuer: idOf(doc["issuer"]),
	}
	if subject, ok := doc["credentialSubject"]; ok {
		s.Subject = idOf(subject)
	} else {
		s.Subject, _ = doc["subject"].(string)
	}
	return s
}

// credentialType picks the most specific type, skipping the generic
// VerifiableCredential entry.
func credentialType(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var fallback string
		for _, item := range t {
			name, _ := item.(string)
			if name == "" {
				continue
			}
			if !strings.EqualFold(name, "VerifiableCredential") {
				return name
			}
			fallback = name
		}
		return fallback
	default:
		return ""
	}
}

func idOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		id, _ := t["id"].(string)
		return id
	default:
		return ""
	}
}
