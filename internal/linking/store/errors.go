package store

import (
	"fmt"

	"civicid/pkg/platform/sentinel"
)

// Collision errors name the uniqueness key that refused a link. Both match
// sentinel.ErrAlreadyUsed.
var (
	ErrUserAlreadyLinked = fmt.Errorf("%w: user already linked", sentinel.ErrAlreadyUsed)
	ErrDIDAlreadyLinked  = fmt.Errorf("%w: did already linked", sentinel.ErrAlreadyUsed)
)
