package checksum

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"wayback-news/internal/scraper"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateSnapshotHash hashes an extraction result.
// Formula: SHA256(source|timestep|link1|title1|link2|title2...)
func (g *Generator) GenerateSnapshotHash(source, timestep string, articles []scraper.Article) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(source))
	sb.WriteString("|")
	sb.WriteString(timestep)
	for _, a := range articles {
		sb.WriteString("|")
		sb.WriteString(a.Link)
		sb.WriteString("|")
		sb.WriteString(a.Title)
	}

	hash := sha256.Sum256([]byte(sb.String()))

	return fmt.Sprintf("%x", hash)
}

func (g *Generator) VerifySnapshotHash(expectedHash, source, timestep string, articles []scraper.Article) bool {
	computed := g.GenerateSnapshotHash(source, timestep, articles)
	return computed == expectedHash
}
