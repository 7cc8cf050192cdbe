package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type IDType string

const (
	IDTypeBatch   IDType = "batch"
	IDTypeCommand IDType = "cmd"
)

var validIDTypes = map[IDType]bool{
	IDTypeBatch:   true,
	IDTypeCommand: true,
}

var idRegex = regexp.MustCompile(`^(batch|cmd)_[0-9]{10}_[0-9a-f]{8}$`)

// GenerateID builds a sortable identifier: type prefix, unix timestamp, and
// a short random suffix.
func GenerateID(idType IDType) (string, error) {
	if !validIDTypes[idType] {
		return "", fmt.Errorf("invalid ID type: %s", idType)
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%010d_%s", idType, time.Now().Unix(), suffix), nil
}

// ValidateID reports whether id matches the generated format.
func ValidateID(id string) bool {
	return idRegex.MatchString(id)
}
