package connections

import (
	"errors"
	"fmt"

	ierrors "github.com/jrsteele09/go-sso-connect/internal/errors"
)

var (
	ErrDuplicateConnection = errors.New("connection already registered")
	ErrConnectionNotFound  = fmt.Errorf("connection %w", ierrors.ErrNotFound)
	ErrInvalidProfile      = errors.New("invalid connection profile")
)
