package models

import (
	"bytes"
	"encoding/json"
	"strings"

	dErrors "civicid/pkg/domain-errors"
)

// Message is one parsed webhook item: a ConnectionMessage, a CredentialMessage
// or an UnknownMessage.
type Message interface {
	// Raw is the message exactly as delivered.
	Raw() json.RawMessage
	isMessage()
}

// ConnectionMessage moves a connection along the state machine.
type ConnectionMessage struct {
	ID   string
	Kind string
	// Keys are tried in order to find the stored exchange.
	Keys     []string
	Target   State
	TheirDID string
	raw      json.RawMessage
}

func (m ConnectionMessage) Raw() json.RawMessage { return m.raw }
func (ConnectionMessage) isMessage() {}

// CredentialMessage reports progress of a credential exchange.
type CredentialMessage struct {
	ID       string
	Kind     string
	RecordID string
	State    string
	raw      json.RawMessage
}

func (m CredentialMessage) Raw() json.RawMessage { return m.raw }
func (CredentialMessage) isMessage() {}

// UnknownMessage is anything else. It is logged and dropped.
type UnknownMessage struct {
	Reason string
	raw    json.RawMessage
}

func (m UnknownMessage) Raw() json.RawMessage { return m.raw }
func (UnknownMessage) isMessage() {}

// wireMessage covers both DIDComm plaintext messages ({id, piuri|type, from, thid})
// and agent event notifications ({type, data:{...}}).
type wireMessage struct {
	ID    string          `json:"id"`
	PIURI string          `json:"piuri"`
	Type  string          `json:"type"`
	From  string          `json:"from"`
	ThID  string          `json:"thid"`
	PThID string          `json:"pthid"`
	Data  *wireEventData  `json:"data"`
	Body  json.RawMessage `json:"body"`
}

type wireEventData struct {
	ConnectionID  string `json:"connectionId"`
	RecordID      string `json:"recordId"`
	ThID          string `json:"thid"`
	State         string `json:"state"`
	ProtocolState string `json:"protocolState"`
	TheirDID      string `json:"theirDid"`
}

// Agent connection states and the machine state they map onto.
var eventConnectionStates = map[string]State{
	"ConnectionRequestReceived":  StateRequestReceived,
	"ConnectionResponsePending":  StateRequestReceived,
	"ConnectionResponseSent":     StateActive,
	"ConnectionResponseReceived": StateCompleted,
	"ProblemReportSent":          StateError,
	"ProblemReportReceived":      StateError,
}

// ParseEnvelope splits a webhook body into messages. The body may be a single
// message, an array of messages or an object with a "messages" array.
func ParseEnvelope(body []byte) ([]Message, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "webhook body is empty")
	}

	var items []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid webhook body")
		}
	case '{':
		var wrapper struct {
			Messages []json.RawMessage `json:"messages"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid webhook body")
		}
		if wrapper.Messages != nil {
			items = wrapper.Messages
		} else {
			items = []json.RawMessage{trimmed}
		}
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "webhook body must be a JSON object or array")
	}

	msgs := make([]Message, 0, len(items))
	for _, item := range items {
		msgs = append(msgs, ParseMessage(item))
	}
	return msgs, nil
}

// ParseMessage classifies a single raw message. It never fails; anything it
// cannot interpret becomes an UnknownMessage.
func ParseMessage(raw json.RawMessage) Message {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return UnknownMessage{Reason: "not a JSON object", raw: raw}
	}
	if w.Data != nil && w.PIURI == "" {
		return parseEvent(w, raw)
	}
	return parseDIDComm(w, raw)
}

func parseDIDComm(w wireMessage, raw json.RawMessage) Message {
	kind := w.PIURI
	if kind == "" {
		kind = w.Type
	}
	lower := strings.ToLower(kind)
	switch {
	case strings.Contains(lower, "issue-credential"):
		return CredentialMessage{ID: w.ID, Kind: kind, raw: raw}
	case strings.Contains(lower, "connections") || strings.Contains(lower, "didexchange"):
		msg := ConnectionMessage{
			ID:     w.ID,
			Kind:   kind,
			Keys:   nonEmpty(w.ThID, w.PThID, w.ID),
			Target: didcommTarget(lower),
			raw:    raw,
		}
		// The response is ours; its sender is our own peer DID.
		if !strings.HasSuffix(lower, "/response") {
			msg.TheirDID = w.From
		}
		return msg
	case kind == "":
		return UnknownMessage{Reason: "message has no type", raw: raw}
	default:
		return UnknownMessage{Reason: "unsupported protocol " + kind, raw: raw}
	}
}

func didcommTarget(piuri string) State {
	switch {
	case strings.HasSuffix(piuri, "/response"):
		return StateActive
	case strings.HasSuffix(piuri, "/ack"), strings.HasSuffix(piuri, "/complete"):
		return StateCompleted
	case strings.HasSuffix(piuri, "/problem-report"):
		return StateError
	default:
		return StateRequestReceived
	}
}

func parseEvent(w wireMessage, raw json.RawMessage) Message {
	d := w.Data
	lower := strings.ToLower(w.Type)
	switch {
	case strings.Contains(lower, "credential"):
		state := d.ProtocolState
		if state == "" {
			state = d.State
		}
		return CredentialMessage{ID: w.ID, Kind: w.Type, RecordID: d.RecordID, State: state, raw: raw}
	case strings.Contains(lower, "connection"):
		state := d.State
		if state == "" {
			state = d.ProtocolState
		}
		target, ok := eventConnectionStates[state]
		if !ok {
			return UnknownMessage{Reason: "ignored connection state " + state, raw: raw}
		}
		return ConnectionMessage{
			ID:       w.ID,
			Kind:     w.Type + "/" + state,
			Keys:     nonEmpty(d.ThID, d.ConnectionID),
			Target:   target,
			TheirDID: d.TheirDID,
			raw:      raw,
		}
	default:
		return UnknownMessage{Reason: "unsupported event " + w.Type, raw: raw}
	}
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
