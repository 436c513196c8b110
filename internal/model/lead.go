package model

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Field is a canonical logical field name for a lead. CSV headers are mapped
// onto fields once, at ingestion, through an AliasTable.
type Field string

const (
	FieldCompany           Field = "company"
	FieldDomain            Field = "domain"
	FieldPersonName        Field = "person_name"
	FieldFirstName         Field = "first_name"
	FieldLastName          Field = "last_name"
	FieldTitle             Field = "title"
	FieldEmail             Field = "email"
	FieldContactLink       Field = "contact_link"
	FieldCompanyLinkedIn   Field = "company_linkedin"
	FieldReferenceCompany  Field = "reference_company"
	FieldCampaign          Field = "campaign"
	FieldIndustry          Field = "industry"
	FieldSubIndustry       Field = "sub_industry"
	FieldSeniority         Field = "seniority"
	FieldDepartment        Field = "department"
	FieldFunction          Field = "function"
	FieldSpecialty         Field = "specialty"
	FieldSICCode           Field = "sic_code"
	FieldNAICSCode         Field = "naics_code"
	FieldEmployeeRange     Field = "employee_range"
	FieldRevenueRange      Field = "revenue_range"
	FieldPhone             Field = "phone"
	FieldPhoneCode         Field = "phone_code"
	FieldStreet            Field = "street"
	FieldCity              Field = "city"
	FieldState             Field = "state"
	FieldZipCode           Field = "zip_code"
	FieldCountry           Field = "country"
	FieldComments          Field = "comments"
	FieldProfileURL        Field = "profile_url"
	FieldEmployeeVerifyURL Field = "employee_verification_url"
	FieldIndustryVerifyURL Field = "industry_verification_url"
	FieldRevenueVerifyURL  Field = "revenue_verification_url"
)

// AliasTable maps each canonical field to the CSV headers that may carry it,
// in priority order. The first non-empty header wins.
type AliasTable map[Field][]string

// DefaultAliases is the built-in header alias table. Headers are matched
// exactly first and then case-insensitively.
func DefaultAliases() AliasTable {
	return AliasTable{
		FieldCompany:           {"Company", "company", "Company Name", "COMPANY NAME", "Column_5_Text"},
		FieldDomain:            {"Domain or Website", "domain", "Domain", "Website", "links"},
		FieldPersonName:        {"First Name, Last Name", "firstNameLastName", "Name", "Column_2_Text"},
		FieldFirstName:         {"First Name", "firstName"},
		FieldLastName:          {"Last Name", "lastName"},
		FieldTitle:             {"Title", "title", "Job Title", "Column_3_Text"},
		FieldEmail:             {"Email Address", "email", "Email"},
		FieldContactLink:       {"Contact Link", "contactLinkedIn", "Column_4_URL"},
		FieldCompanyLinkedIn:   {"Company Linkedin URL", "companyLinkedIn", "LinkedIn Company"},
		FieldReferenceCompany:  {"Reference Company", "referenceCompany", "Buildata Company", "Matched Company"},
		FieldCampaign:          {"Campaign", "campaign", "Campaign Name"},
		FieldIndustry:          {"Industry", "industry", "Column_8_Text"},
		FieldSubIndustry:       {"Sub Industry", "subIndustry"},
		FieldSeniority:         {"Seniority", "seniority"},
		FieldDepartment:        {"Department", "department"},
		FieldFunction:          {"Function", "function"},
		FieldSpecialty:         {"Specialty", "specialty"},
		FieldSICCode:           {"SIC Code", "sicCode"},
		FieldNAICSCode:         {"NAICS Code", "naicsCode"},
		FieldEmployeeRange:     {"Employee Range", "employeeRange"},
		FieldRevenueRange:      {"Revenue Range", "revenueRange"},
		FieldPhone:             {"Phone", "phone"},
		FieldPhoneCode:         {"Phone Code", "phoneCode"},
		FieldStreet:            {"Street Address", "address"},
		FieldCity:              {"City", "city"},
		FieldState:             {"State", "state"},
		FieldZipCode:           {"Zip", "zipCode", "zip"},
		FieldCountry:           {"Country", "country", "Column_7_Text"},
		FieldComments:          {"Comments", "comments"},
		FieldProfileURL:        {"ZoomInfo URL", "zoomInfoUrl"},
		FieldEmployeeVerifyURL: {"Employee Size Verification Link"},
		FieldIndustryVerifyURL: {"Industry Verification Link"},
		FieldRevenueVerifyURL:  {"Naics/Sic/Revenue Verification Link", "Revenue Verification Link"},
	}
}

// Extend appends extra aliases after the existing ones for each field.
func (t AliasTable) Extend(extra AliasTable) AliasTable {
	out := make(AliasTable, len(t)+len(extra))
	for f, names := range t {
		out[f] = append([]string(nil), names...)
	}
	for f, names := range extra {
		out[f] = append(out[f], names...)
	}
	return out
}

// LoadAliasFile reads a YAML document of the form
//
//	company: ["Account", "Org Name"]
//	domain: ["URL"]
//
// and returns it as an AliasTable.
func LoadAliasFile(path string) (AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "model: read alias file")
	}
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "model: parse alias file")
	}
	out := make(AliasTable, len(raw))
	for k, v := range raw {
		out[Field(strings.TrimSpace(k))] = v
	}
	return out, nil
}

// Resolve maps a raw CSV row onto canonical fields.
func (t AliasTable) Resolve(raw map[string]string) map[Field]string {
	folded := make(map[string]string, len(raw))
	for k, v := range raw {
		folded[strings.ToLower(strings.TrimSpace(k))] = v
	}

	out := make(map[Field]string, len(t))
	for field, names := range t {
		for _, name := range names {
			v, ok := raw[name]
			if !ok {
				v = folded[strings.ToLower(name)]
			}
			if v = strings.TrimSpace(v); v != "" {
				out[field] = v
				break
			}
		}
	}
	return out
}

// Lead is one input record: the raw CSV bag plus canonical fields and the
// values derived while the lead moves through the pipeline.
type Lead struct {
	Index  int               `json:"index"`
	Raw    map[string]string `json:"raw"`
	Fields map[Field]string  `json:"fields"`

	ResolvedCompany string     `json:"resolved_company,omitempty"`
	Campaign        string     `json:"campaign,omitempty"`
	Facts           FactRecord `json:"facts"`
	Email           string     `json:"email,omitempty"`
}

// NewLead builds a Lead from a raw row using the given alias table.
func NewLead(index int, raw map[string]string, aliases AliasTable) Lead {
	return Lead{
		Index:  index,
		Raw:    raw,
		Fields: aliases.Resolve(raw),
	}
}

// Get returns the canonical value for f, or "".
func (l Lead) Get(f Field) string {
	return l.Fields[f]
}

// CompanyName returns the resolved company name when present, otherwise the
// CSV value.
func (l Lead) CompanyName() string {
	if l.ResolvedCompany != "" {
		return l.ResolvedCompany
	}
	return l.Get(FieldCompany)
}

// Headers returns the sorted raw headers, used for debugging output.
func (l Lead) Headers() []string {
	keys := make([]string, 0, len(l.Raw))
	for k := range l.Raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
