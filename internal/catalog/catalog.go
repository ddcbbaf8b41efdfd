// Package catalog reads certificates and keys out of an existing certkit
// SQLite catalog so they can be scanned alongside files.
package catalog

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Item is one PEM document stored in the catalog, addressed by a virtual
// path: "db:cert:<serial>" for certificates and "db:key:<ski>" for keys.
type Item struct {
	Path string
	Data []byte
}

// certRow maps the columns read from the certificates table.
type certRow struct {
	SerialNumber string `db:"serial_number"`
	PEM          []byte `db:"pem"`
}

// keyRow maps the columns read from the keys table.
type keyRow struct {
	SubjectKeyIdentifier string `db:"subject_key_identifier"`
	KeyData              []byte `db:"key_data"`
}

// Load opens the catalog at dbPath read-only and returns its certificates
// followed by its keys, each in insertion order. The file is never written.
func Load(dbPath string) ([]Item, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", dbPath, err)
	}

	dsn := (&url.URL{Scheme: "file", Opaque: dbPath, RawQuery: "mode=ro"}).String()
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", dbPath, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	var certs []certRow
	if err := db.Select(&certs, "SELECT serial_number, pem FROM certificates ORDER BY rowid"); err != nil {
		return nil, fmt.Errorf("reading certificates from %s: %w", dbPath, err)
	}
	var keys []keyRow
	if err := db.Select(&keys, "SELECT subject_key_identifier, key_data FROM keys ORDER BY rowid"); err != nil {
		return nil, fmt.Errorf("reading keys from %s: %w", dbPath, err)
	}

	items := make([]Item, 0, len(certs)+len(keys))
	for _, c := range certs {
		items = append(items, Item{Path: "db:cert:" + c.SerialNumber, Data: c.PEM})
	}
	for _, k := range keys {
		items = append(items, Item{Path: "db:key:" + k.SubjectKeyIdentifier, Data: k.KeyData})
	}

	slog.Info("loaded catalog", "path", dbPath, "certificates", len(certs), "keys", len(keys))
	return items, nil
}
