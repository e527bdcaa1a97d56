package migration

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io/fs"
	"path"
	"strings"

	"github.com/golang-migrate/migrate/v4/source"
)

const scriptExt = ".sql"

// Migration is a versioned script resolved from migrations location
type Migration struct {
	Version     uint
	Description string
	Script      string
	Checksum    int64
	SQL         string
}

// Resolve reads up scripts from dir of fsys and returns them in ascending version order.
// Down scripts and files which don't follow <version>_<description>.up.sql naming are skipped.
func Resolve(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations location %s - %w", dir, err)
	}

	scripts := source.NewMigrations()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		m, err := source.DefaultParse(e.Name())
		if err != nil {
			continue
		}

		if m.Direction != source.Up || !strings.EqualFold(path.Ext(m.Raw), scriptExt) {
			continue
		}

		if !scripts.Append(m) {
			return nil, fmt.Errorf("%w: version %d is defined by more than one script", ErrDuplicateVersion, m.Version)
		}
	}

	resolved := make([]Migration, 0)
	for version, ok := scripts.First(); ok; version, ok = scripts.Next(version) {
		m, found := scripts.Up(version)
		if !found {
			continue
		}

		body, err := fs.ReadFile(fsys, path.Join(dir, m.Raw))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration script %s - %w", m.Raw, err)
		}

		resolved = append(resolved, Migration{
			Version:     m.Version,
			Description: strings.ReplaceAll(m.Identifier, "_", " "),
			Script:      m.Raw,
			Checksum:    Checksum(body),
			SQL:         string(body),
		})
	}
	return resolved, nil
}

// Checksum calculates CRC32 of script content. Line endings are normalized,
// so the same script checked out on different platforms has the same checksum.
func Checksum(script []byte) int64 {
	normalized := bytes.ReplaceAll(script, []byte("\r\n"), []byte("\n"))
	return int64(crc32.ChecksumIEEE(normalized))
}
