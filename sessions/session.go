package sessions

import (
	"strings"
	"time"
)

// GlobalScope is the scope key of the connection used when no feature pin applies.
const GlobalScope = "global"

const featurePrefix = "feature:"

// FeatureScope returns the scope key of a feature pin.
func FeatureScope(feature string) string {
	return featurePrefix + feature
}

// FeatureOf returns the feature name of a feature scope key.
func FeatureOf(scope string) (string, bool) {
	if !strings.HasPrefix(scope, featurePrefix) {
		return "", false
	}
	return strings.TrimPrefix(scope, featurePrefix), true
}

// Selection records which connection is active for a scope.
type Selection struct {
	Scope        string    `yaml:"scope"`
	ConnectionID string    `yaml:"connectionId"`
	UpdatedAt    time.Time `yaml:"updatedAt"`
}
