package manifest

import "github.com/MrSnakeDoc/gamedeck/internal/adapter/oauth"

// File is the root of a platform manifest.
type File struct {
	Platform string        `yaml:"platform"`
	Token    string        `yaml:"token,omitempty"`
	OAuth    *oauth.Config `yaml:"oauth,omitempty"`
	Launch   LaunchProps   `yaml:"launch,omitempty"`

	Installed []InstalledProps `yaml:"installed"`
	Owned     []OwnedProps     `yaml:"owned"`
}

// LaunchProps selects how games are started. URI wins over the executable;
// "{id}" in URI is replaced by the native app id.
type LaunchProps struct {
	URI  string   `yaml:"uri,omitempty"`
	Args []string `yaml:"args,omitempty"`
}

// InstalledProps is one installed game.
type InstalledProps struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	AppName string `yaml:"app_name,omitempty"`
	Path    string `yaml:"path"`
	Exe     string `yaml:"exe,omitempty"`
	Size    int64  `yaml:"size,omitempty"`
	Version string `yaml:"version,omitempty"`
}

// OwnedProps is one game of the account library.
type OwnedProps struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Content []string `yaml:"content,omitempty"`
}
