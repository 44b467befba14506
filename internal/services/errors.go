package services

import (
	"errors"

	"github.com/mrlokans/shelfsync/internal/entities"
)

func isNotFound(err error) bool {
	return errors.Is(err, entities.ErrNotFound)
}
