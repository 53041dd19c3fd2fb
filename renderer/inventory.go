package renderer

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/sitewalk/models"
	"golang.org/x/net/html"
)

// Selectors are compiled once at init; a malformed selector is a
// programming error, not a runtime condition.
var (
	selButtons     = cascadia.MustCompile(`button, input[type='button'], input[type='submit']`)
	selLinks       = cascadia.MustCompile(`a[href]`)
	selInputs      = cascadia.MustCompile(`input[type='text'], input[type='password'], input[type='email'], input[type='number'], input[type='search'], textarea`)
	selSelects     = cascadia.MustCompile(`select`)
	selCheckboxes  = cascadia.MustCompile(`input[type='checkbox']`)
	selRadios      = cascadia.MustCompile(`input[type='radio']`)
	selClickables  = cascadia.MustCompile(`[onclick], [role='button'], [role='link'], [role='menuitem'], [class*='btn']`)
	selIframes     = cascadia.MustCompile(`iframe`)
	selTabs        = cascadia.MustCompile(`[role='tab']`)
	selMenus       = cascadia.MustCompile(`[role='menu'], [role='menubar']`)
	selTooltips    = cascadia.MustCompile(`[title], [data-tooltip], [aria-describedby]`)
	selModals      = cascadia.MustCompile(`[role='dialog'], [class*='modal']`)
	selExpandables = cascadia.MustCompile(`[aria-expanded], [data-toggle], .accordion, .collapse`)
)

// BuildInventory counts interactive elements in rendered HTML by
// category. Unparseable input yields an empty inventory; the page
// record still gets created.
func BuildInventory(rawHTML string) models.ElementInventory {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return models.ElementInventory{}
	}

	return models.ElementInventory{
		Buttons:     len(selButtons.MatchAll(root)),
		Links:       len(selLinks.MatchAll(root)),
		Inputs:      len(selInputs.MatchAll(root)),
		Selects:     len(selSelects.MatchAll(root)),
		Checkboxes:  len(selCheckboxes.MatchAll(root)),
		Radios:      len(selRadios.MatchAll(root)),
		Clickables:  len(selClickables.MatchAll(root)),
		Iframes:     len(selIframes.MatchAll(root)),
		Tabs:        len(selTabs.MatchAll(root)),
		Menus:       len(selMenus.MatchAll(root)),
		Tooltips:    len(selTooltips.MatchAll(root)),
		Modals:      len(selModals.MatchAll(root)),
		Expandables: len(selExpandables.MatchAll(root)),
	}
}
