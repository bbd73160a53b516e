package domain

// PlatformBinding ties a canonical game to its platform-native id.
type PlatformBinding struct {
	Platform Platform `json:"platform"`
	NativeID string   `json:"nativeAppId"`
}

// Installation is a platform's local install of a game.
// It is replaced wholesale on every rescan of that platform.
type Installation struct {
	Platform       Platform `json:"platform"`
	InstallPath    string   `json:"installPath"`
	ExecutablePath string   `json:"executablePath"`
	AppID          string   `json:"appId"`
	Version        string   `json:"version"`
	SizeBytes      int64    `json:"sizeBytes"`
}

// GameIdentity is the deduplicated, cross-platform view of one game.
//
// Key is unique across the registry. Bindings keep insertion order (the
// platform the game was first sighted on comes first) and hold at most one
// entry per platform. ActivePlatform is empty or one of the bound platforms.
type GameIdentity struct {
	Key            string                    `json:"key"`
	Name           string                    `json:"name"`
	Bindings       []PlatformBinding         `json:"bindings"`
	Installations  map[Platform]Installation `json:"installations"`
	ActivePlatform Platform                  `json:"activePlatform,omitempty"`
}

// Binding returns the binding for p, if any.
func (g *GameIdentity) Binding(p Platform) (PlatformBinding, bool) {
	for _, b := range g.Bindings {
		if b.Platform == p {
			return b, true
		}
	}
	return PlatformBinding{}, false
}

// IsBound reports whether the game has a binding on p.
func (g *GameIdentity) IsBound(p Platform) bool {
	_, ok := g.Binding(p)
	return ok
}

// Platforms returns the bound platforms in binding order.
func (g *GameIdentity) Platforms() []Platform {
	out := make([]Platform, 0, len(g.Bindings))
	for _, b := range g.Bindings {
		out = append(out, b.Platform)
	}
	return out
}

// Clone returns a deep copy safe to hand out of a locked store.
func (g *GameIdentity) Clone() *GameIdentity {
	c := &GameIdentity{
		Key:            g.Key,
		Name:           g.Name,
		Bindings:       make([]PlatformBinding, len(g.Bindings)),
		Installations:  make(map[Platform]Installation, len(g.Installations)),
		ActivePlatform: g.ActivePlatform,
	}
	copy(c.Bindings, g.Bindings)
	for p, inst := range g.Installations {
		c.Installations[p] = inst
	}
	return c
}
