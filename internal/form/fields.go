package form

import (
	"github.com/rotisserie/eris"
)

// FieldID is a logical destination form field.
type FieldID string

const (
	FieldEmail           FieldID = "email"
	FieldWebsite         FieldID = "website"
	FieldContactLink     FieldID = "contact_link"
	FieldCompany         FieldID = "company"
	FieldCompanyLinkedIn FieldID = "company_linkedin"
	FieldEmployeeRange   FieldID = "employee_range"
	FieldRevenueRange    FieldID = "revenue_range"
	FieldSICCode         FieldID = "sic_code"
	FieldNAICSCode       FieldID = "naics_code"
	FieldIndustry        FieldID = "industry"
	FieldSubIndustry     FieldID = "sub_industry"
	FieldEmployeeVerify  FieldID = "employee_verification_link"
	FieldIndustryVerify  FieldID = "industry_verification_link"
	FieldRevenueVerify   FieldID = "revenue_verification_link"
	FieldFirstName       FieldID = "first_name"
	FieldLastName        FieldID = "last_name"
	FieldTitle           FieldID = "title"
	FieldSeniority       FieldID = "seniority"
	FieldDepartment      FieldID = "department"
	FieldFunction        FieldID = "function"
	FieldSpecialty       FieldID = "specialty"
	FieldPhoneCode       FieldID = "phone_code"
	FieldPhone           FieldID = "phone"
	FieldStreet          FieldID = "street"
	FieldCity            FieldID = "city"
	FieldState           FieldID = "state"
	FieldZipCode         FieldID = "zip_code"
	FieldCountry         FieldID = "country"
	FieldComments        FieldID = "comments"
)

// Kind tells the setter how to write a field.
type Kind int

const (
	KindText Kind = iota
	KindSelect
)

// Spec locates one field on the page.
type Spec struct {
	Selector string
	Kind     Kind
}

// Action is a form button, identified by its visible text.
type Action string

const (
	ActionCheckEmail         Action = "Check Email"
	ActionCheckSuppression   Action = "Check Suppression"
	ActionCheckDuplicates    Action = "Check Duplicates"
	ActionLoadSpecifications Action = "Load Specifications"
	ActionModalOK            Action = "OK"
	ActionSubmit             Action = "Submit"
)

var (
	// ErrFieldNotFound means the field's element is not on the page.
	ErrFieldNotFound = eris.New("form: field not found")
	// ErrNoOption means a select has no option matching the value.
	ErrNoOption = eris.New("form: no matching option")
	// ErrButtonNotFound means an action button is not on the page.
	ErrButtonNotFound = eris.New("form: button not found")
)

func groupSelect(label string) string {
	return `div.form-group:has(label[for="` + label + `"]) select.form-control, ` +
		`div.form-group:has(label[for="` + label + `"]) select.form-select, select#` + label
}

// DefaultSpecs maps each field to its selector on the destination form.
func DefaultSpecs() map[FieldID]Spec {
	return map[FieldID]Spec{
		FieldEmail:           {`input#emailaddress`, KindText},
		FieldWebsite:         {`input#website`, KindText},
		FieldContactLink:     {`input#contactlink`, KindText},
		FieldCompany:         {`input#company`, KindText},
		FieldCompanyLinkedIn: {`input#companylinkedinurl`, KindText},
		FieldEmployeeRange:   {groupSelect("employeerange"), KindSelect},
		FieldRevenueRange:    {groupSelect("revenuerange"), KindSelect},
		FieldSICCode:         {`input#siccode`, KindText},
		FieldNAICSCode:       {`input#naicscode`, KindText},
		FieldIndustry:        {groupSelect("industry"), KindSelect},
		FieldSubIndustry:     {groupSelect("subindustry"), KindSelect},
		FieldEmployeeVerify:  {`input#employeesizeverificationlink`, KindText},
		FieldIndustryVerify:  {`input#industryverificationurl`, KindText},
		FieldRevenueVerify:   {`input#revenueverificationurl`, KindText},
		FieldFirstName:       {`input#firstname`, KindText},
		FieldLastName:        {`input#lastname`, KindText},
		FieldTitle:           {`input#title`, KindText},
		FieldSeniority:       {groupSelect("seniority"), KindSelect},
		FieldDepartment:      {groupSelect("department"), KindSelect},
		FieldFunction:        {groupSelect("function"), KindSelect},
		FieldSpecialty:       {groupSelect("specialty"), KindSelect},
		FieldPhoneCode:       {groupSelect("countrycode"), KindSelect},
		FieldPhone:           {`input[name="ContactDto.Phone_work"]`, KindText},
		FieldStreet:          {`input#streetaddress`, KindText},
		FieldCity:            {`input#city`, KindText},
		FieldState:           {`input#state`, KindText},
		FieldZipCode:         {`input#zip`, KindText},
		FieldCountry:         {groupSelect("country"), KindSelect},
		FieldComments:        {`textarea#comments`, KindText},
	}
}

// WithSelectors returns specs with the selectors in overrides replaced.
// Unknown field ids are ignored.
func WithSelectors(specs map[FieldID]Spec, overrides map[string]string) map[FieldID]Spec {
	out := make(map[FieldID]Spec, len(specs))
	for id, s := range specs {
		out[id] = s
	}
	for id, sel := range overrides {
		if s, ok := out[FieldID(id)]; ok && sel != "" {
			s.Selector = sel
			out[FieldID(id)] = s
		}
	}
	return out
}
