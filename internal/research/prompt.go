package research

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/marketintel/internal/model"
	"github.com/sells-group/marketintel/pkg/anthropic"
)

// maxPromptChars caps how much scraped markdown is sent for extraction.
const maxPromptChars = 30000

const extractionSystem = `You are a competitive intelligence analyst. You extract structured
company profiles from website content. Respond with JSON only, no prose.`

func extractionPrompt(companyURL, markdown string) string {
	if len(markdown) > maxPromptChars {
		markdown = markdown[:maxPromptChars]
	}
	return fmt.Sprintf(`Extract a structured profile of the company at %s from its website content below.

Return a single JSON object with exactly these keys:
{
  "company_name": "official company or product name",
  "description": "one-sentence description of what they sell",
  "pricing_tiers": [{"name": "tier name", "price": "price exactly as written, e.g. $49/mo or Custom", "features": ["included feature", "..."]}],
  "feature_list": ["product capability", "..."],
  "recent_news": [{"title": "...", "summary": "...", "url": "...", "date": "YYYY-MM-DD or empty"}],
  "swot": {"strengths": ["..."], "weaknesses": ["..."], "opportunities": ["..."], "threats": ["..."]}
}

Rules:
- Copy prices verbatim from the page. Never invent or convert prices.
- Omit nothing you can support from the content; use empty arrays for sections the pages do not cover.
- Output only the JSON object.

Website content:
%s`, companyURL, markdown)
}

// rawProfile mirrors the JSON shape the extraction prompt asks for.
type rawProfile struct {
	CompanyName  string `json:"company_name"`
	Description  string `json:"description"`
	PricingTiers []struct {
		Name     string   `json:"name"`
		Price    string   `json:"price"`
		Features []string `json:"features"`
	} `json:"pricing_tiers"`
	FeatureList []string `json:"feature_list"`
	RecentNews  []struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
		URL     string `json:"url"`
		Date    string `json:"date"`
	} `json:"recent_news"`
	SWOT struct {
		Strengths     []string `json:"strengths"`
		Weaknesses    []string `json:"weaknesses"`
		Opportunities []string `json:"opportunities"`
		Threats       []string `json:"threats"`
	} `json:"swot"`
}

func parseProfile(text, companyURL string) (*model.EntityProfile, error) {
	var raw rawProfile
	if err := json.Unmarshal([]byte(anthropic.StripCodeFence(text)), &raw); err != nil {
		return nil, eris.Wrap(err, "research: unmarshal profile")
	}

	p := &model.EntityProfile{
		Name:        strings.TrimSpace(raw.CompanyName),
		URL:         companyURL,
		Description: strings.TrimSpace(raw.Description),
		Features:    raw.FeatureList,
	}
	if p.Name == "" {
		p.Name = model.CompanyNameFromURL(companyURL)
	}

	for _, t := range raw.PricingTiers {
		if strings.TrimSpace(t.Name) == "" {
			continue
		}
		p.PricingTiers = append(p.PricingTiers, model.PricingTier{
			Name:     strings.TrimSpace(t.Name),
			Price:    strings.TrimSpace(t.Price),
			Features: t.Features,
		})
	}
	for _, n := range raw.RecentNews {
		if strings.TrimSpace(n.Title) == "" {
			continue
		}
		p.News = append(p.News, model.NewsItem{
			Title:   strings.TrimSpace(n.Title),
			Summary: n.Summary,
			URL:     n.URL,
			Date:    n.Date,
		})
	}
	if len(raw.SWOT.Strengths)+len(raw.SWOT.Weaknesses)+len(raw.SWOT.Opportunities)+len(raw.SWOT.Threats) > 0 {
		p.SWOT = &model.SWOTAnalysis{
			Strengths:     raw.SWOT.Strengths,
			Weaknesses:    raw.SWOT.Weaknesses,
			Opportunities: raw.SWOT.Opportunities,
			Threats:       raw.SWOT.Threats,
		}
	}
	return p, nil
}
