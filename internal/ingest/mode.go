package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/passbi/od_dashboard/internal/models"
)

// TableSource is one OD table file bound to its mode
type TableSource struct {
	Mode models.Mode
	Path string
}

var (
	coletivoWords   = wordSet("COLETIVO", "ONIBUS", "ÔNIBUS", "PUBLICO", "PÚBLICO", "PUBLIC", "TRANSIT", "BUS")
	individualWords = wordSet("INDIVIDUAL", "AUTO", "AUTOMOVEL", "AUTOMÓVEL", "CARRO", "CAR", "PRIVADO", "PRIVATE")
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// InferMode determines the transport mode from a table label or file name.
// Whole words are matched, so "matriz_od_coletivo" is Coletivo but "Carga" is
// not Individual. A label matching no keyword is its own mode.
func InferMode(label string) models.Mode {
	words := strings.FieldsFunc(strings.ToUpper(label), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, w := range words {
		if _, ok := coletivoWords[w]; ok {
			return models.ModeColetivo
		}
		if _, ok := individualWords[w]; ok {
			return models.ModeIndividual
		}
	}

	return models.Mode(strings.TrimSpace(label))
}

// ParseTableList parses "Mode=path" entries separated by commas.
// An entry without "Mode=" infers its mode from the file name.
func ParseTableList(list string) ([]TableSource, error) {
	var sources []TableSource
	seen := make(map[models.Mode]string)

	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		var source TableSource
		if label, path, ok := strings.Cut(entry, "="); ok {
			source = TableSource{Mode: InferMode(label), Path: strings.TrimSpace(path)}
		} else {
			base := strings.TrimSuffix(filepath.Base(entry), filepath.Ext(entry))
			source = TableSource{Mode: InferMode(base), Path: entry}
		}

		if source.Mode == "" || source.Path == "" {
			return nil, fmt.Errorf("invalid table entry %q", entry)
		}
		if prev, dup := seen[source.Mode]; dup {
			return nil, fmt.Errorf("mode %s declared twice (%s, %s)", source.Mode, prev, source.Path)
		}
		seen[source.Mode] = source.Path

		sources = append(sources, source)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no OD tables configured")
	}

	return sources, nil
}
