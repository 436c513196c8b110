package model

import (
	"strings"
	"time"
)

// FactRecord is the best-effort output of scraping one external profile.
// Every field is optional; an empty record means nothing was found.
type FactRecord struct {
	Phone        string `json:"phone,omitempty"`
	Headquarters string `json:"headquarters,omitempty"`
	Employees    string `json:"employees,omitempty"`
	Revenue      string `json:"revenue,omitempty"`
	Industry     string `json:"industry,omitempty"`
	Email        string `json:"email,omitempty"`
	Street       string `json:"street,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zip_code,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
}

// IsEmpty reports whether no data field is set. SourceURL alone does not
// count as data.
func (f FactRecord) IsEmpty() bool {
	for _, v := range []string{
		f.Phone, f.Headquarters, f.Employees, f.Revenue, f.Industry,
		f.Email, f.Street, f.City, f.State, f.ZipCode,
	} {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Merge returns f with every blank field filled from other.
func (f FactRecord) Merge(other FactRecord) FactRecord {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return FactRecord{
		Phone:        pick(f.Phone, other.Phone),
		Headquarters: pick(f.Headquarters, other.Headquarters),
		Employees:    pick(f.Employees, other.Employees),
		Revenue:      pick(f.Revenue, other.Revenue),
		Industry:     pick(f.Industry, other.Industry),
		Email:        pick(f.Email, other.Email),
		Street:       pick(f.Street, other.Street),
		City:         pick(f.City, other.City),
		State:        pick(f.State, other.State),
		ZipCode:      pick(f.ZipCode, other.ZipCode),
		SourceURL:    pick(f.SourceURL, other.SourceURL),
	}
}

// CacheEntry is a stored FactRecord with the time it was produced.
type CacheEntry struct {
	StoredAt time.Time
	Facts    FactRecord
}

// LinkRecord is a profile link found on a search results page.
type LinkRecord struct {
	URL string `json:"url,omitempty"`
}
