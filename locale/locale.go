// Package locale embeds the dialog templates and intent samples shipped with
// the skill, one directory per language.
package locale

import "embed"

//go:embed */*.dialog */*.intent
var FS embed.FS

const DefaultLang = "en-us"
