package wizard

import (
	"fmt"
	"strings"
)

// Render substitutes {key} placeholders in tmpl with values from vars.
// Values are formatted with fmt.Sprint. Placeholders with no matching
// key are left intact so that partially-bound templates stay readable
// in logs and repair prompts.
func Render(tmpl string, vars map[string]any) string {
	if len(vars) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", fmt.Sprint(v))
	}
	return out
}
