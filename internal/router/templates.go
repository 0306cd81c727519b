package router

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"inkwell/internal/utils"

	"github.com/gin-contrib/multitemplate"
)

// TemplateFuncs is shared by every page template.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"dict": func(values ...interface{}) (map[string]interface{}, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("invalid dict call")
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				dict[key] = values[i+1]
			}
			return dict, nil
		},
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
		"timeAgo": timeAgo,
		"date": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"eq": func(a, b interface{}) bool {
			return a == b
		},
		"gt": func(a, b int) bool {
			return a > b
		},
		"safeHTML": func(s string) template.HTML {
			return template.HTML(s)
		},
		"stripHTML": func(s string) string {
			return utils.ExtractText(s)
		},
		"urlquery": func(s string) string {
			return url.QueryEscape(s)
		},
		"markdown":      utils.RenderMarkdown,
		"renderComment": utils.RenderComment,
	}
}

func timeAgo(t interface{}) string {
	var timeVal time.Time
	switch v := t.(type) {
	case time.Time:
		timeVal = v
	case *time.Time:
		if v == nil {
			return ""
		}
		timeVal = *v
	default:
		return ""
	}

	seconds := int(time.Since(timeVal).Seconds())
	if seconds < 60 {
		return "刚刚"
	} else if seconds < 3600 {
		return fmt.Sprintf("%d分钟前", seconds/60)
	} else if seconds < 86400 {
		return fmt.Sprintf("%d小时前", seconds/3600)
	} else if seconds < 2592000 {
		return fmt.Sprintf("%d天前", seconds/86400)
	} else if seconds < 31536000 {
		return fmt.Sprintf("%d个月前", seconds/2592000)
	}
	return fmt.Sprintf("%d年前", seconds/31536000)
}

// LoadTemplates registers every file under views/ by its relative path,
// e.g. "blog/list.html", each combined with the shared layouts, includes and
// components.
func LoadTemplates(templatesDir string) (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()

	var shared []string
	for _, dir := range []string{"layouts", "includes", "components"} {
		files, err := filepath.Glob(filepath.Join(templatesDir, dir, "*.html"))
		if err != nil {
			return nil, err
		}
		shared = append(shared, files...)
	}

	assemble := func(view string) []string {
		files := make([]string, 0, len(shared)+1)
		files = append(files, shared...)
		return append(files, view)
	}

	funcMap := TemplateFuncs()
	viewsDir := filepath.Join(templatesDir, "views")
	err := filepath.WalkDir(viewsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		rel, err := filepath.Rel(viewsDir, path)
		if err != nil {
			return err
		}
		r.AddFromFilesFuncs(filepath.ToSlash(rel), funcMap, assemble(path)...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load templates from %s: %w", templatesDir, err)
	}
	return r, nil
}
