package form

import (
	"strings"

	"github.com/xconmik/buildata-automation/internal/model"
	"github.com/xconmik/buildata-automation/internal/normalize"
)

// Order is the sequence fields are written in. The three checked fields
// come first because each is followed by its check button.
var Order = []FieldID{
	FieldEmail, FieldWebsite, FieldContactLink,
	FieldCompany, FieldCompanyLinkedIn, FieldEmployeeRange, FieldRevenueRange,
	FieldSICCode, FieldNAICSCode, FieldIndustry, FieldSubIndustry,
	FieldEmployeeVerify, FieldIndustryVerify, FieldRevenueVerify,
	FieldFirstName, FieldLastName, FieldTitle,
	FieldSeniority, FieldDepartment, FieldFunction, FieldSpecialty,
	FieldPhoneCode, FieldPhone,
	FieldStreet, FieldCity, FieldState, FieldZipCode, FieldCountry,
	FieldComments,
}

// Payload is the form-ready value of every field for one lead. Missing
// values are "".
type Payload map[FieldID]string

// BuildPayload merges the lead's CSV fields with its scraped facts into form
// values. Scraped values win for phone, address, ranges and email; CSV
// values fill whatever scraping left blank.
func BuildPayload(l model.Lead) Payload {
	p := make(Payload, len(Order))
	f := l.Facts

	first, last := l.Get(model.FieldFirstName), l.Get(model.FieldLastName)
	if first == "" && last == "" {
		first, last = normalize.SplitName(l.Get(model.FieldPersonName))
	}

	p[FieldEmail] = firstOf(l.Email, f.Email, l.Get(model.FieldEmail))
	p[FieldWebsite] = normalize.WebsiteURL(l.Get(model.FieldDomain))
	p[FieldContactLink] = l.Get(model.FieldContactLink)

	p[FieldCompany] = l.CompanyName()
	p[FieldCompanyLinkedIn] = normalize.LinkedInAboutURL(l.Get(model.FieldCompanyLinkedIn))
	p[FieldEmployeeRange] = l.Get(model.FieldEmployeeRange)
	if b, ok := normalize.ClassifyEmployees(f.Employees); ok {
		p[FieldEmployeeRange] = b.Value()
	}
	p[FieldRevenueRange] = l.Get(model.FieldRevenueRange)
	if b, ok := normalize.ClassifyRevenue(f.Revenue); ok {
		p[FieldRevenueRange] = b.Value()
	}
	p[FieldSICCode] = l.Get(model.FieldSICCode)
	p[FieldNAICSCode] = l.Get(model.FieldNAICSCode)
	p[FieldIndustry] = firstOf(l.Get(model.FieldIndustry), primaryIndustry(f.Industry))
	p[FieldSubIndustry] = l.Get(model.FieldSubIndustry)

	verify := firstOf(f.SourceURL, l.Get(model.FieldProfileURL))
	p[FieldEmployeeVerify] = firstOf(l.Get(model.FieldEmployeeVerifyURL), verify)
	p[FieldIndustryVerify] = firstOf(l.Get(model.FieldIndustryVerifyURL), verify)
	p[FieldRevenueVerify] = firstOf(l.Get(model.FieldRevenueVerifyURL), verify)

	title := l.Get(model.FieldTitle)
	p[FieldFirstName] = first
	p[FieldLastName] = last
	p[FieldTitle] = title
	p[FieldSeniority] = firstOf(l.Get(model.FieldSeniority), normalize.InferSeniority(title))
	p[FieldDepartment] = firstOf(l.Get(model.FieldDepartment), normalize.InferDepartment(title))
	p[FieldFunction] = l.Get(model.FieldFunction)
	p[FieldSpecialty] = l.Get(model.FieldSpecialty)

	p[FieldPhoneCode], p[FieldPhone] = normalize.SplitPhone(
		firstOf(f.Phone, l.Get(model.FieldPhone)), l.Get(model.FieldPhoneCode))

	addr := normalize.ParseAddress(f.Headquarters, normalize.Address{
		Street: f.Street, City: f.City, State: f.State, ZipCode: f.ZipCode,
	})
	p[FieldStreet] = firstOf(addr.Street, l.Get(model.FieldStreet))
	p[FieldCity] = firstOf(addr.City, l.Get(model.FieldCity))
	p[FieldState] = firstOf(addr.State, l.Get(model.FieldState))
	p[FieldZipCode] = normalize.ZipDigits(firstOf(addr.ZipCode, l.Get(model.FieldZipCode)))
	p[FieldCountry] = l.Get(model.FieldCountry)
	p[FieldComments] = l.Get(model.FieldComments)

	return p
}

// primaryIndustry returns the first of a comma separated industry list.
func primaryIndustry(s string) string {
	first, _, _ := strings.Cut(s, ",")
	return strings.TrimSpace(first)
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
