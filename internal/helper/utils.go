package helper

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateUUID creates a random unique UUID string, used for session IDs.
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	return id.String(), nil
}
