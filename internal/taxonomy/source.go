// Package taxonomy resolves search-hit accessions to taxon ids and lineages,
// from a local copy of the NCBI taxonomy or from the NCBI EUtils service.
package taxonomy

import (
	"context"
	"errors"
	"strings"

	"github.com/hyperjump/brocc/internal/taxon"
)

// ErrNotFound is returned when an accession or taxon id is unknown to a source.
var ErrNotFound = errors.New("not found")

// Source resolves accessions and taxon ids. Lineages are ordered broadest first.
type Source interface {
	TaxonID(ctx context.Context, accession string) (string, error)
	Lineage(ctx context.Context, taxonID string) ([]taxon.Entry, error)
}

// Unversion strips the trailing ".N" version from an accession.
func Unversion(accession string) string {
	if i := strings.LastIndexByte(accession, '.'); i >= 0 {
		return accession[:i]
	}
	return accession
}
