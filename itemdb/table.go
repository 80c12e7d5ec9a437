// Package itemdb loads the optional weapon-category lookup table used
// only by the Snapshot Projector to resolve an equipped item id to a
// human-readable category (spec.md §6 environment input). The core
// never extracts this table from game assets itself — that is out of
// scope (spec.md §1 Non-goals); it only loads an externally-provided
// file.
package itemdb

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Table maps an equipped item id to its weapon category label.
type Table map[uint32]string

// Load reads a two-column CSV file (`item_id,category`) from path. A
// blank path yields an empty, non-nil Table so callers can treat it
// uniformly with a loaded one. No third-party CSV or config-file
// library appears anywhere in the retrieved example pack for this kind
// of flat lookup file, so stdlib encoding/csv is used directly.
func Load(path string) (Table, error) {
	t := make(Table)
	if path == "" {
		return t, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "itemdb: open")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	r.TrimLeadingSpace = true

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "itemdb: parse")
		}

		id, err := strconv.ParseUint(rec[0], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "itemdb: invalid item id %q", rec[0])
		}
		t[uint32(id)] = rec[1]
	}

	return t, nil
}
