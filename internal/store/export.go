// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ExportJSON writes every stored paper to w as indented JSON, in the
// same presentation order Load uses.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	records, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if records == nil {
		records = []Record{}
	}

	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding papers: %w", err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}
