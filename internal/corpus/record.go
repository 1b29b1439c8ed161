package corpus

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
)

// Columns names the headers that carry the four semantic fields. Matching is
// case-insensitive and ignores surrounding whitespace.
type Columns struct {
	Code       string
	Name       string
	Procedure  string
	Speciality string
}

// DefaultColumns matches the package list exports the service ships with.
func DefaultColumns() Columns {
	return Columns{
		Code:       "PACKAGE CODE",
		Name:       "PACKAGE NAME",
		Procedure:  "Procedure",
		Speciality: "SPECIALITY",
	}
}

func (c Columns) withDefaults() Columns {
	d := DefaultColumns()
	if strings.TrimSpace(c.Code) == "" {
		c.Code = d.Code
	}
	if strings.TrimSpace(c.Name) == "" {
		c.Name = d.Name
	}
	if strings.TrimSpace(c.Procedure) == "" {
		c.Procedure = d.Procedure
	}
	if strings.TrimSpace(c.Speciality) == "" {
		c.Speciality = d.Speciality
	}
	return c
}

// Record is one row of the reference corpus.
type Record struct {
	Code       string
	Name       string
	Procedure  string
	Speciality string
	// Extra holds every column that is not one of the semantic four, keyed by header.
	Extra map[string]string
	// Source is the file path or (redacted) DSN the row was loaded from.
	Source string

	search string
}

// HasCode reports whether the record can be deduplicated and selected.
func (r Record) HasCode() bool {
	return r.Code != ""
}

// SearchText is the folded name/procedure/speciality string keywords are matched against.
func (r Record) SearchText() string {
	if r.search == "" {
		return buildSearchText(r)
	}
	return r.search
}

func (r *Record) index() {
	r.search = buildSearchText(*r)
}

func buildSearchText(r Record) string {
	return Fold(r.Name + " " + r.Procedure + " " + r.Speciality)
}

// JSON keys used when a record is shown to the model.
const (
	KeyCode       = "package_code"
	KeyName       = "package_name"
	KeyProcedure  = "procedure"
	KeySpeciality = "speciality"
	KeySource     = "_source"
)

var reservedKeys = map[string]struct{}{
	KeyCode: {}, KeyName: {}, KeyProcedure: {}, KeySpeciality: {}, KeySource: {},
}

// MarshalJSON writes the semantic fields under stable keys first, then the extra
// columns in sorted order, then the provenance tag.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(k, v string) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return nil
	}

	for _, kv := range [][2]string{
		{KeyCode, r.Code},
		{KeyName, r.Name},
		{KeyProcedure, r.Procedure},
		{KeySpeciality, r.Speciality},
	} {
		if err := write(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		if _, reserved := reservedKeys[k]; !reserved {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := write(k, r.Extra[k]); err != nil {
			return nil, err
		}
	}

	if r.Source != "" {
		if err := write(KeySource, r.Source); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// headerIndex resolves the semantic columns against a header row.
type headerIndex struct {
	code, name, procedure, speciality int
}

func resolveHeader(header []string, cols Columns) headerIndex {
	idx := headerIndex{code: -1, name: -1, procedure: -1, speciality: -1}
	match := func(h, want string) bool {
		return strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(want))
	}
	for i, h := range header {
		switch {
		case idx.code < 0 && match(h, cols.Code):
			idx.code = i
		case idx.name < 0 && match(h, cols.Name):
			idx.name = i
		case idx.procedure < 0 && match(h, cols.Procedure):
			idx.procedure = i
		case idx.speciality < 0 && match(h, cols.Speciality):
			idx.speciality = i
		}
	}
	return idx
}

// buildRecords turns a header plus rows into records tagged with source.
// Rows with no non-empty cell are dropped.
func buildRecords(header []string, rows [][]string, source string, cols Columns) []Record {
	idx := resolveHeader(header, cols)
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		rec := Record{Source: source, Extra: make(map[string]string)}
		for i, cell := range row {
			if i >= len(header) {
				break
			}
			cell = cleanCell(cell)
			switch i {
			case idx.code:
				rec.Code = cell
			case idx.name:
				rec.Name = cell
			case idx.procedure:
				rec.Procedure = cell
			case idx.speciality:
				rec.Speciality = cell
			default:
				key := header[i]
				if key == "" || cell == "" {
					continue
				}
				if _, dup := rec.Extra[key]; !dup {
					rec.Extra[key] = cell
				}
			}
		}
		rec.index()
		out = append(out, rec)
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
