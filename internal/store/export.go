package store

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned by Export for formats other than json and yaml
var ErrUnknownFormat = eris.New("store: unknown export format")

// Export writes every stored claim to w as JSON or YAML
func (s *Store) Export(ctx context.Context, w io.Writer, format string) error {
	claims, err := s.LoadClaims(ctx)
	if err != nil {
		return err
	}

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(claims), "store: encode json")
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(claims); err != nil {
			return eris.Wrap(err, "store: encode yaml")
		}
		return eris.Wrap(enc.Close(), "store: close yaml encoder")
	default:
		return eris.Wrapf(ErrUnknownFormat, "%q", format)
	}
}
