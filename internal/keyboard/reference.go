package keyboard

import (
	"fmt"
	"sort"
	"strings"
)

var referenceLayouts = map[string]string{
	"colemak": `
		  wfpg jluy
		arstd hneio
		zxcv    mkbq`,
	"alphabetical": `
		  abcd efgh
		ijklm nopqr
		stuv    wxyz`,
}

// ReferenceLayout resolves a built-in layout name, or parses the argument
// as a literal 26-letter ordering when no built-in matches.
func ReferenceLayout(nameOrKeys string) (Layout, error) {
	if keys, ok := referenceLayouts[strings.ToLower(strings.TrimSpace(nameOrKeys))]; ok {
		return FromFixedMapping(keys)
	}
	layout, err := FromFixedMapping(nameOrKeys)
	if err != nil {
		return Layout{}, fmt.Errorf("unknown reference layout (known: %s): %w", strings.Join(ReferenceLayoutNames(), ","), err)
	}
	return layout, nil
}

func ReferenceLayoutNames() []string {
	names := make([]string, 0, len(referenceLayouts))
	for name := range referenceLayouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
