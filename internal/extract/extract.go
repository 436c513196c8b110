// Package extract reads company facts and profile links out of scraped
// pages. It works on rendered HTML when a browser produced the page and on
// plain text when a reader API did.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xconmik/buildata-automation/internal/model"
	"github.com/xconmik/buildata-automation/internal/scrape"
)

var (
	employeesRe   = regexp.MustCompile(`(?i)(\d+[KM]?\+?)[ \t]*Employees`)
	employeesLbl  = regexp.MustCompile(`(?i)Employees:\s*([\d,]+\+?)`)
	phoneRe       = regexp.MustCompile(`(?i)Phone(?: Number)?:?[ \t]*\n?[ \t]*(\+?\d[\d \t().-]{5,}\d)`)
	headquartersR = regexp.MustCompile(`(?i)Headquarters:?[ \t]*\n?[ \t]*([^\n]+)`)
	revenueRe     = regexp.MustCompile(`(?i)Revenue:?[ \t]*\n?[ \t]*(\$[\d,.]+[ \t]*(?:Thousand|Million|Billion|Trillion|[KMBT])?)`)
	zipRe         = regexp.MustCompile(`\b\d{4,6}\b`)
	emailRe       = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	textLinkRe    = regexp.MustCompile(`https?://[^\s)\]"'<>]+`)
)

// Extractor is the default scrape.Extractor. Host restricts links to one
// profile site.
type Extractor struct {
	Host string
}

// New returns an Extractor for zoominfo.com profiles.
func New() *Extractor {
	return &Extractor{Host: "zoominfo.com"}
}

var _ scrape.Extractor = (*Extractor)(nil)

// Facts returns whatever fields kind's page type carries. Search pages other
// than the email search yield an empty record.
func (e *Extractor) Facts(kind scrape.PageKind, p scrape.Page) model.FactRecord {
	doc := parse(p.HTML)
	switch kind {
	case scrape.PageProfile:
		return profileFacts(doc, pageText(doc, p))
	case scrape.PageDirectory:
		return model.FactRecord{ZipCode: directoryZip(doc, pageText(doc, p))}
	case scrape.PageEmailSearch:
		return model.FactRecord{Email: pageEmail(doc, pageText(doc, p))}
	default:
		return model.FactRecord{}
	}
}

// Link picks the profile link from a search results page. Company profile
// paths are preferred for the profile search and directory paths for the
// directory search; otherwise the first link to Host is used.
func (e *Extractor) Link(kind scrape.PageKind, p scrape.Page) model.LinkRecord {
	var prefer func(string) bool
	switch kind {
	case scrape.PageProfileSearch:
		prefer = func(u string) bool { return strings.Contains(u, "/c/") || strings.Contains(u, "/company/") }
	case scrape.PageDirectorySearch:
		prefer = func(u string) bool {
			u = strings.ToLower(u)
			return strings.Contains(u, "employee") || strings.Contains(u, "directory")
		}
	default:
		return model.LinkRecord{}
	}

	var candidates []string
	for _, u := range e.links(p) {
		if strings.Contains(strings.ToLower(u), e.host()) {
			candidates = append(candidates, u)
		}
	}
	for _, u := range candidates {
		if prefer(u) {
			return model.LinkRecord{URL: u}
		}
	}
	if len(candidates) > 0 {
		return model.LinkRecord{URL: candidates[0]}
	}
	return model.LinkRecord{}
}

func (e *Extractor) host() string {
	if e.Host == "" {
		return "zoominfo.com"
	}
	return strings.ToLower(e.Host)
}

func (e *Extractor) links(p scrape.Page) []string {
	if doc := parse(p.HTML); doc != nil {
		return anchors(doc, p.URL)
	}
	return textLinkRe.FindAllString(p.Text, -1)
}

func pageText(doc *goquery.Document, p scrape.Page) string {
	if strings.TrimSpace(p.Text) != "" {
		return p.Text
	}
	return lines(doc)
}

func profileFacts(doc *goquery.Document, txt string) model.FactRecord {
	var f model.FactRecord

	if doc != nil {
		if m := employeesRe.FindStringSubmatch(text(doc.Find(".company-header-subtitle").First())); m != nil {
			f.Employees = m[1]
		}
		labels := doc.Find("h3.icon-label, div.icon-label")
		f.Phone = labelContent(labels, "Phone Number")
		f.Headquarters = labelContent(labels, "Headquarters")
		f.Revenue = labelContent(labels, "Revenue")
		f.Industry = industry(doc, labels)
	}

	if f.Employees == "" {
		f.Employees = firstGroup(txt, employeesRe, employeesLbl)
	}
	if f.Phone == "" {
		f.Phone = firstGroup(txt, phoneRe)
	}
	if f.Headquarters == "" {
		f.Headquarters = firstGroup(txt, headquartersR)
	}
	if f.Revenue == "" {
		f.Revenue = firstGroup(txt, revenueRe)
	}
	return f
}

// labelContent returns the span.content next to the first label containing
// name, searched within the label's parent.
func labelContent(labels *goquery.Selection, name string) string {
	var out string
	labels.EachWithBreak(func(_ int, l *goquery.Selection) bool {
		if !strings.Contains(text(l), name) {
			return true
		}
		if span := l.Parent().Find("span.content").First(); span.Length() > 0 {
			out = text(span)
			return false
		}
		return true
	})
	return out
}

const chipsSelector = "#company-chips-wrapper"

func industry(doc *goquery.Document, labels *goquery.Selection) string {
	var out string
	labels.EachWithBreak(func(_ int, l *goquery.Selection) bool {
		if !strings.EqualFold(text(l), "industry") {
			return true
		}
		wrapper := l.Parent().Find(chipsSelector).First()
		if wrapper.Length() == 0 {
			wrapper = doc.Find(chipsSelector).First()
		}
		var names []string
		wrapper.Find("a.record-link, a.link").Each(func(_ int, a *goquery.Selection) {
			if t := text(a); t != "" {
				names = append(names, t)
			}
		})
		if len(names) > 0 {
			out = strings.Join(names, ", ")
			return false
		}
		return true
	})
	if out != "" {
		return out
	}
	return text(doc.Find(chipsSelector).First())
}

// directoryZip takes the last 4-6 digit run of the directory subtitle,
// which reads like "... employees located in Springfield, IL 62704".
func directoryZip(doc *goquery.Document, txt string) string {
	var src string
	if doc != nil {
		src = text(doc.Find("p.subTitle").First())
	} else {
		for _, line := range strings.Split(txt, "\n") {
			if strings.Contains(strings.ToLower(line), "employees") {
				src = line
				break
			}
		}
	}
	all := zipRe.FindAllString(src, -1)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

func pageEmail(doc *goquery.Document, txt string) string {
	if doc != nil {
		var found string
		doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href := a.AttrOr("href", "")
			if strings.HasPrefix(strings.ToLower(href), "mailto:") {
				found = emailRe.FindString(href)
			}
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return emailRe.FindString(txt)
}

func firstGroup(s string, res ...*regexp.Regexp) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(s); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v
			}
		}
	}
	return ""
}
