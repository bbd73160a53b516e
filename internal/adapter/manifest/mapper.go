package manifest

import (
	"strings"

	"github.com/MrSnakeDoc/gamedeck/internal/adapter"
)

// mapInstalled converts manifest entries to scan items. Entries without an
// id are skipped; name checks are left to the registry.
func mapInstalled(props []InstalledProps) []adapter.InstalledItem {
	items := make([]adapter.InstalledItem, 0, len(props))
	for _, p := range props {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			continue
		}
		items = append(items, adapter.InstalledItem{
			NativeAppID: id,
			DisplayName: p.Name,
			AppName:     p.AppName,
			InstallPath: p.Path,
			ExePathHint: p.Exe,
			SizeBytes:   p.Size,
			Version:     p.Version,
		})
	}
	return items
}

func mapOwned(props []OwnedProps) []adapter.OwnedItem {
	items := make([]adapter.OwnedItem, 0, len(props))
	for _, p := range props {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			continue
		}
		items = append(items, adapter.OwnedItem{
			NativeAppID: id,
			DisplayName: p.Name,
			ContentIDs:  p.Content,
		})
	}
	return items
}
