// Package badge renders award badges as SVG and uploads them to the object
// store. The SVG body is a pure function of the award fields: re-rendering
// the same award must produce byte-identical output so concurrent uploads
// for one award converge on the same blob.
package badge

import (
	"fmt"
	"strings"

	"github.com/hoopcentral/achievements-worker/internal/canonjson"
	"github.com/hoopcentral/achievements-worker/internal/models"
)

// Palette is the color scheme applied per tier.
type Palette struct {
	Background string
	Accent     string
	Text       string
}

var tierPalettes = map[string]Palette{
	"Bronze":    {Background: "#2b1d0e", Accent: "#cd7f32", Text: "#f5e7d0"},
	"Silver":    {Background: "#1c1f26", Accent: "#c0c0c0", Text: "#f0f2f5"},
	"Gold":      {Background: "#241c04", Accent: "#ffd700", Text: "#fff8dc"},
	"Platinum":  {Background: "#101820", Accent: "#e5e4e2", Text: "#f7f9fb"},
	"Legendary": {Background: "#1a0b24", Accent: "#b366ff", Text: "#f3e8ff"},
}

var neutralPalette = Palette{Background: "#14161a", Accent: "#6b7280", Text: "#e5e7eb"}

// PaletteFor returns the palette for a tier, falling back to a neutral
// scheme for unknown tiers.
func PaletteFor(tier string) Palette {
	if p, ok := tierPalettes[tier]; ok {
		return p
	}
	return neutralPalette
}

// Render produces the deterministic SVG body for an award. Every string that
// reaches the markup goes through escapeXML, so a hostile title cannot break
// out of its text element.
func Render(a *models.Award) ([]byte, error) {
	p := PaletteFor(a.Tier)

	// Identifying fields only; the embedded block is what downstream
	// consumers hash to verify provenance.
	meta, err := canonjson.Marshal(map[string]any{
		"award_id":   a.AwardID,
		"player_id":  a.PlayerID,
		"rule_id":    a.RuleID,
		"scope_key":  a.ScopeKey,
		"level":      a.Level,
		"tier":       a.Tier,
		"title":      a.Title,
		"awarded_at": a.AwardedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
	if err != nil {
		return nil, fmt.Errorf("badge metadata: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="400" height="240" viewBox="0 0 400 240">`)
	fmt.Fprintf(&sb, `<rect width="400" height="240" rx="16" fill="%s"/>`, p.Background)
	fmt.Fprintf(&sb, `<rect x="8" y="8" width="384" height="224" rx="12" fill="none" stroke="%s" stroke-width="3"/>`, p.Accent)
	fmt.Fprintf(&sb, `<circle cx="200" cy="78" r="34" fill="none" stroke="%s" stroke-width="4"/>`, p.Accent)
	fmt.Fprintf(&sb, `<path d="M200 56l6.5 13.5 14.5 2-10.5 10.5 2.5 14.5-13-7-13 7 2.5-14.5L179 71.5l14.5-2z" fill="%s"/>`, p.Accent)
	fmt.Fprintf(&sb, `<text x="200" y="146" text-anchor="middle" font-family="Georgia, serif" font-size="22" fill="%s">%s</text>`,
		p.Text, escapeXML(a.Title))
	fmt.Fprintf(&sb, `<text x="200" y="174" text-anchor="middle" font-family="Georgia, serif" font-size="14" fill="%s">%s</text>`,
		p.Accent, escapeXML(a.Tier))
	fmt.Fprintf(&sb, `<text x="200" y="200" text-anchor="middle" font-family="Georgia, serif" font-size="12" fill="%s">%s</text>`,
		p.Text, escapeXML(a.AwardedAt.UTC().Format("January 2, 2006")))
	fmt.Fprintf(&sb, `<text x="200" y="222" text-anchor="middle" font-family="Georgia, serif" font-size="10" fill="%s">%s</text>`,
		p.Text, escapeXML(a.Issuer))
	fmt.Fprintf(&sb, `<metadata>%s</metadata>`, escapeXML(string(meta)))
	sb.WriteString(`</svg>`)

	return []byte(sb.String()), nil
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

func escapeXML(s string) string {
	return xmlReplacer.Replace(s)
}
