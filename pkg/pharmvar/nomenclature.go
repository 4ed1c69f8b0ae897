package pharmvar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pgx-consensus-server/internal/domain"
)

// BuildNomenclature fetches allele definitions for the requested genes
// and assembles them into a nomenclature table. When genes is empty,
// every gene known to PharmVar is included.
//
// Legacy allele names become synonyms pointing at the canonical
// designation, and sub-allele names (e.g. *4.021) resolve through the
// store's suffix fallback rather than explicit synonym entries.
func (c *Client) BuildNomenclature(ctx context.Context, genes []string) (*domain.NomenclatureTable, error) {
	if len(genes) == 0 {
		listed, err := c.GetGenes(ctx)
		if err != nil {
			return nil, err
		}
		for _, g := range listed {
			genes = append(genes, g.Symbol)
		}
	}

	table := &domain.NomenclatureTable{
		Version: fmt.Sprintf("pharmvar-%s", time.Now().UTC().Format("2006-01-02")),
		Source:  "pharmvar",
		Genes:   make(map[string]domain.GeneNomenclature, len(genes)),
	}

	for _, gene := range genes {
		symbol := strings.ToUpper(strings.TrimSpace(gene))
		alleles, err := c.GetGeneAlleles(ctx, symbol)
		if err != nil {
			return nil, err
		}

		entry := domain.GeneNomenclature{
			Gene:     symbol,
			Alleles:  make(map[string]domain.AlleleDefinition),
			Synonyms: make(map[string]string),
		}

		for _, allele := range alleles {
			name := normalizeAlleleName(symbol, allele.AlleleName)
			if name == "" {
				continue
			}
			entry.Alleles[name] = domain.AlleleDefinition{
				Name:       name,
				PharmVarID: allele.PharmVarID,
			}
			for _, legacy := range allele.LegacyNames {
				if synonym := normalizeAlleleName(symbol, legacy); synonym != "" && synonym != name {
					entry.Synonyms[synonym] = name
				}
			}
		}

		c.logger.WithFields(logrus.Fields{
			"gene":     symbol,
			"alleles":  len(entry.Alleles),
			"synonyms": len(entry.Synonyms),
		}).Info("Built gene nomenclature")

		table.Genes[symbol] = entry
	}

	return table, nil
}

// normalizeAlleleName strips the gene prefix PharmVar includes in allele
// names ("CYP2D6*4" -> "*4") and upper-cases the remainder.
func normalizeAlleleName(gene, name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(strings.ToUpper(name), gene)
	if !strings.HasPrefix(name, "*") {
		return ""
	}
	return name
}
