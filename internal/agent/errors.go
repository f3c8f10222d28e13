package agent

import (
	"errors"
	"fmt"

	dErrors "civicid/pkg/domain-errors"
)

// AgentError is a non-2xx response from the Identity Agent.
type AgentError struct {
	Op     string
	Status int
	Body   string
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("identity agent %s: status %d: %s", e.Op, e.Status, e.Body)
}

// TransportError means the Identity Agent could not be reached or its
// response could not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("identity agent %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsAgentError reports whether err carries an upstream error response.
func IsAgentError(err error) bool {
	var ae *AgentError
	return errors.As(err, &ae)
}

// IsTransportError reports whether err is a reachability failure.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ToDomainError maps client failures onto agent_error / agent_unavailable.
// Services call it so handlers never see raw client errors.
func ToDomainError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ae *AgentError
	if errors.As(err, &ae) {
		return dErrors.WithDetails(
			dErrors.Wrap(err, dErrors.CodeAgentError, msg),
			map[string]any{"upstreamStatus": ae.Status},
		)
	}
	if IsTransportError(err) {
		return dErrors.Wrap(err, dErrors.CodeAgentUnavailable, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
