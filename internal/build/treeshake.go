package build

import "github.com/conneroisu/iconsprite/internal/scanner"

// FilterToUsed keeps the icons whose derived identifier is in used. An
// empty used set returns icons unchanged: a scan that found nothing must
// not produce an empty sprite.
func FilterToUsed(icons []Icon, used scanner.IdentifierSet, prefix string) []Icon {
	if len(used) == 0 {
		return icons
	}

	kept := make([]Icon, 0, len(icons))
	for _, icon := range icons {
		if used.Has(SymbolID(icon.Path, prefix)) {
			kept = append(kept, icon)
		}
	}
	return kept
}
