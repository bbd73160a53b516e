package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Platform identifies a game-distribution platform.
// The well-known ones are listed below but any non-empty id is accepted,
// so manifest-backed libraries can register their own.
type Platform string

const (
	PlatformSteam       Platform = "steam"
	PlatformEpic        Platform = "epic"
	PlatformGOG         Platform = "gog"
	PlatformXbox        Platform = "xbox"
	PlatformPlayStation Platform = "playstation"
)

func (p Platform) String() string { return string(p) }

// ParsePlatform normalizes a platform id ("  Steam " -> "steam").
func ParsePlatform(raw string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(raw)))
	if p == "" {
		return "", fmt.Errorf("empty platform id")
	}
	return p, nil
}

// CanonicalKey folds a display name into the registry key of a game:
// surrounding whitespace is trimmed and the result is case-folded.
//
// This is a name heuristic: "Doom" and "DOOM (1993)" stay distinct and
// regional/remastered titles sharing a name are merged.
func CanonicalKey(displayName string) string {
	// A Caser is stateful, build one per call.
	return cases.Fold().String(strings.TrimSpace(displayName))
}
