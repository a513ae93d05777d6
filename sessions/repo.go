package sessions

import (
	"fmt"

	ierrors "github.com/jrsteele09/go-sso-connect/internal/errors"
)

var ErrSelectionNotFound = fmt.Errorf("selection %w", ierrors.ErrNotFound)

type Repo interface {
	Upsert(selection Selection) error
	Get(scope string) (Selection, error)
	Delete(scope string) error
	List() ([]Selection, error)
}
