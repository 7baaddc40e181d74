// Package parse turns raw command output into untyped string-keyed rows.
// It is a two-stage facade: a TextFSM template stage (custom overrides first,
// then the bundled template set) and a per-domain regex fallback. Producing
// zero rows is never an error here; normalization and typing happen in
// pkg/normalize.
package parse

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirikothe/gotextfsm"

	"github.com/nettally/nettally/pkg/platform"
	"github.com/nettally/nettally/pkg/util"
)

//go:embed templates/*.textfsm
var builtinTemplates embed.FS

// Parser resolves templates and runs the two-stage parse.
type Parser struct {
	// TemplateDir optionally points at an on-disk directory of override
	// templates. Registry override paths are resolved against it; when
	// empty, overrides are read from the bundled set.
	TemplateDir string
}

// Parse runs the facade for one (template platform, command) pair.
// Returned rows have lowercase keys and string values.
func (p *Parser) Parse(templatePlatform string, cmd platform.Command, output string) []map[string]string {
	if tpl, ok := p.loadTemplate(templatePlatform, cmd); ok {
		rows, err := runTemplate(tpl, output)
		if err != nil {
			util.Debugf("parse: template %s/%s failed: %v", templatePlatform, cmd, err)
		} else if len(rows) > 0 {
			return rows
		}
	}

	rows := regexFallback(cmd, output)
	if len(rows) == 0 {
		util.Debugf("parse: no rows for %s/%s (%d bytes of output)", templatePlatform, cmd, len(output))
	}
	return rows
}

// loadTemplate finds the template body for a platform/command pair. Custom
// overrides from the platform registry win over the bundled templates.
func (p *Parser) loadTemplate(templatePlatform string, cmd platform.Command) (string, bool) {
	if path, ok := platform.CustomTemplate(templatePlatform, cmd); ok {
		if p.TemplateDir != "" {
			if body, err := os.ReadFile(filepath.Join(p.TemplateDir, filepath.Base(path))); err == nil {
				return string(body), true
			}
		}
		if body, err := builtinTemplates.ReadFile(path); err == nil {
			return string(body), true
		}
	}

	name := fmt.Sprintf("templates/%s_%s.textfsm", templatePlatform, cmd)
	if body, err := builtinTemplates.ReadFile(name); err == nil {
		return string(body), true
	}
	return "", false
}

// runTemplate executes a TextFSM template and flattens the output to
// string-valued rows. List values are joined with commas.
func runTemplate(template, output string) ([]map[string]string, error) {
	fsm := gotextfsm.TextFSM{}
	if err := fsm.ParseString(template); err != nil {
		return nil, fmt.Errorf("template parse: %w", err)
	}

	parser := gotextfsm.ParserOutput{}
	if err := parser.ParseTextString(output, fsm, true); err != nil {
		return nil, fmt.Errorf("template run: %w", err)
	}

	rows := make([]map[string]string, 0, len(parser.Dict))
	for _, record := range parser.Dict {
		row := make(map[string]string, len(record))
		for k, v := range record {
			key := strings.ToLower(k)
			switch val := v.(type) {
			case string:
				row[key] = strings.TrimSpace(val)
			case []string:
				row[key] = strings.Join(val, ",")
			default:
				row[key] = strings.TrimSpace(fmt.Sprint(val))
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// regexFallback dispatches to the stricter per-domain regex parsers for the
// domains that have one. Other commands simply yield no rows.
func regexFallback(cmd platform.Command, output string) []map[string]string {
	switch cmd {
	case platform.CmdLLDPNeighbors:
		return fallbackLLDP(output)
	case platform.CmdCDPNeighbors:
		return fallbackCDP(output)
	case platform.CmdMACTable:
		return fallbackMACTable(output)
	default:
		return nil
	}
}
