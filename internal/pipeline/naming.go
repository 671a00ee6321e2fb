package pipeline

import (
	"fmt"
	"path"
	"strings"

	"github.com/UnendingLoop/PicDeck/internal/model"
)

const fallbackBase = "image"

// BaseName strips directories and the extension from a source file name.
// legacy truncates at the first dot instead of the last one.
func BaseName(fileName string, legacy bool) string {
	name := path.Base(strings.ReplaceAll(fileName, `\`, "/"))

	var base string
	if legacy {
		base, _, _ = strings.Cut(name, ".")
	} else {
		base = strings.TrimSuffix(name, path.Ext(name))
	}

	if base == "" || base == "/" || base == "." {
		return fallbackBase
	}
	return base
}

// TemplateSlug lowercases the template name and drops every whitespace run.
func TemplateSlug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "")
}

func outputName(base string, tpl model.Template, ext string) string {
	return fmt.Sprintf("%s.%s.%dx%d.%s", base, TemplateSlug(tpl.Name), tpl.Width, tpl.Height, ext)
}

// OutputNames names every job deterministically in job order. A name already taken
// gets "-2", "-3", ... appended to its base so that archive entries never overwrite each other.
func OutputNames(jobs []model.Job, ext string, legacy bool) []string {
	names := make([]string, len(jobs))
	used := make(map[string]bool, len(jobs))

	for i, j := range jobs {
		base := BaseName(j.Source.Name, legacy)
		name := outputName(base, j.Template, ext)
		for n := 2; used[name]; n++ {
			name = outputName(fmt.Sprintf("%s-%d", base, n), j.Template, ext)
		}
		used[name] = true
		names[i] = name
	}

	return names
}
