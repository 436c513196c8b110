package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xconmik/buildata-automation/internal/company"
	"github.com/xconmik/buildata-automation/internal/dropdown"
	"github.com/xconmik/buildata-automation/internal/form"
	"github.com/xconmik/buildata-automation/internal/model"
	"github.com/xconmik/buildata-automation/internal/resilience"
)

type mockScraper struct {
	mock.Mock
}

func (m *mockScraper) CompanyFacts(ctx context.Context, domain string) (model.FactRecord, error) {
	args := m.Called(ctx, domain)
	return args.Get(0).(model.FactRecord), args.Error(1)
}

func (m *mockScraper) DirectoryAddress(ctx context.Context, domain string) (model.FactRecord, error) {
	args := m.Called(ctx, domain)
	return args.Get(0).(model.FactRecord), args.Error(1)
}

func (m *mockScraper) Email(ctx context.Context, domain, first, last string) (model.FactRecord, error) {
	args := m.Called(ctx, domain, first, last)
	return args.Get(0).(model.FactRecord), args.Error(1)
}

// quietScraper answers every scrape with empty records.
func quietScraper() *mockScraper {
	s := new(mockScraper)
	s.On("CompanyFacts", mock.Anything, mock.Anything).Return(model.FactRecord{}, nil)
	s.On("DirectoryAddress", mock.Anything, mock.Anything).Return(model.FactRecord{}, nil)
	s.On("Email", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(model.FactRecord{}, nil)
	return s
}

type fillCall struct {
	campaign string
	payload  form.Payload
}

// scriptedFiller answers each Fill with the next email check text and runs
// an optional hook first.
type scriptedFiller struct {
	mu     sync.Mutex
	checks []string
	calls  []fillCall
	err    error
	hook   func(n int)
}

func (f *scriptedFiller) Fill(_ context.Context, campaign string, p form.Payload) (form.Report, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, fillCall{campaign: campaign, payload: p})
	check := ""
	if n < len(f.checks) {
		check = f.checks[n]
	} else if len(f.checks) > 0 {
		check = f.checks[len(f.checks)-1]
	}
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if f.err != nil {
		return form.Report{}, f.err
	}
	return form.Report{EmailCheck: check, Written: []form.FieldID{form.FieldEmail}}, nil
}

func (f *scriptedFiller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type countingObserver struct {
	mu       sync.Mutex
	statuses []model.LogStatus
}

func (o *countingObserver) LeadProcessed(status model.LogStatus, _ time.Duration) {
	o.mu.Lock()
	o.statuses = append(o.statuses, status)
	o.mu.Unlock()
}

func acmeLeads(n int) []model.Lead {
	leads := make([]model.Lead, n)
	for i := range leads {
		leads[i] = model.Lead{
			Index: i,
			Fields: map[model.Field]string{
				model.FieldCompany:    "Acme",
				model.FieldDomain:     "acme.com",
				model.FieldPersonName: "Jane Doe",
			},
		}
	}
	return leads
}

func newTestController(sc Scraper, fill Filler, clk resilience.Clock, mutate ...func(*Options)) *Controller {
	opts := DefaultOptions()
	opts.Clock = clk
	for _, m := range mutate {
		m(&opts)
	}
	res := company.NewResolver(company.NewDirectory(nil))
	return New(res, sc, fill, opts)
}

func statuses(rows []model.LogRow) []model.LogStatus {
	out := make([]model.LogStatus, len(rows))
	for i, r := range rows {
		out[i] = r.Status
	}
	return out
}

func TestController_InvalidStreakBlocksCompany(t *testing.T) {
	clk := resilience.NewManualClock(time.Unix(0, 0))
	sc := quietScraper()
	fill := &scriptedFiller{checks: []string{"Invalid Email"}}
	obs := &countingObserver{}
	c := newTestController(sc, fill, clk, func(o *Options) { o.Observer = obs })

	require.NoError(t, c.Start(context.Background(), acmeLeads(6)))

	assert.Equal(t, []model.LogStatus{
		model.LogInvalidEmail, model.LogInvalidEmail, model.LogInvalidEmail, model.LogInvalidEmail,
		model.LogCompanyBlocked, model.LogSkippedCompany,
	}, statuses(c.Log().Rows()))
	sc.AssertNumberOfCalls(t, "CompanyFacts", 5)
	sc.AssertNumberOfCalls(t, "Email", 5)
	assert.Equal(t, 5, fill.count())
	assert.Equal(t, BlockState{InvalidStreak: 5, Blocked: true}, c.Blocks().Get("ACME "))

	// One delay after each fill; the skip adds none.
	assert.Equal(t, []time.Duration{
		3 * time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second,
	}, clk.Sleeps())

	st := c.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, 6, st.Processed)
	assert.Equal(t, 6, st.Total)
	assert.NotEmpty(t, st.RunID)
	assert.Len(t, obs.statuses, 6)
}

func TestController_HardInvalidBlocksImmediately(t *testing.T) {
	sc := quietScraper()
	fill := &scriptedFiller{checks: []string{"Hard Invalid - mailbox does not exist"}}
	c := newTestController(sc, fill, resilience.NewManualClock(time.Unix(0, 0)))

	require.NoError(t, c.Start(context.Background(), acmeLeads(3)))

	assert.Equal(t, []model.LogStatus{
		model.LogHardInvalid, model.LogSkippedCompany, model.LogSkippedCompany,
	}, statuses(c.Log().Rows()))
	sc.AssertNumberOfCalls(t, "CompanyFacts", 1)
	assert.Equal(t, 5, c.Blocks().Get("Acme").InvalidStreak)
}

func TestController_RetryAndValidOutcomes(t *testing.T) {
	sc := quietScraper()
	fill := &scriptedFiller{checks: []string{
		"Invalid Email", "Invalid Email", "Catch-all domain, retry later", "Email is valid", "Invalid Email", "",
	}}
	c := newTestController(sc, fill, resilience.NewManualClock(time.Unix(0, 0)))

	require.NoError(t, c.Start(context.Background(), acmeLeads(6)))

	assert.Equal(t, []model.LogStatus{
		model.LogInvalidEmail, model.LogInvalidEmail, model.LogRetryNextContact,
		model.LogSuccess, model.LogInvalidEmail, model.LogSuccess,
	}, statuses(c.Log().Rows()))
	assert.Equal(t, BlockState{InvalidStreak: 1}, c.Blocks().Get("Acme"))
	assert.Contains(t, c.Log().Rows()[4].Message, "streak 1/5")
}

func TestController_StopDuringFilling(t *testing.T) {
	sc := quietScraper()
	fill := &scriptedFiller{}
	c := newTestController(sc, fill, resilience.NewManualClock(time.Unix(0, 0)))
	fill.hook = func(n int) {
		if n == 1 {
			c.Stop()
		}
	}

	require.NoError(t, c.Start(context.Background(), acmeLeads(4)))

	rows := c.Log().Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, model.LogSuccess, rows[0].Status)
	assert.Equal(t, 2, fill.count())
	sc.AssertNumberOfCalls(t, "CompanyFacts", 2)

	st := c.Status()
	assert.Equal(t, StateStopped, st.State)
	assert.Equal(t, 1, st.Index)
	assert.False(t, c.Running())
}

func TestController_RejectsConcurrentStart(t *testing.T) {
	sc := quietScraper()
	entered := make(chan struct{})
	release := make(chan struct{})
	fill := &scriptedFiller{hook: func(n int) {
		if n == 0 {
			close(entered)
			<-release
		}
	}}
	c := newTestController(sc, fill, resilience.NewManualClock(time.Unix(0, 0)))

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background(), acmeLeads(2)) }()

	<-entered
	assert.True(t, c.Running())
	assert.ErrorIs(t, c.Start(context.Background(), acmeLeads(1)), ErrAlreadyRunning)
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, 2, c.Log().Len())
	assert.False(t, c.Running())

	// A finished controller can run again.
	require.NoError(t, c.Start(context.Background(), acmeLeads(1)))
	assert.Equal(t, 3, c.Log().Len())
}

func TestController_FatalFillStopsRun(t *testing.T) {
	sc := quietScraper()
	fill := &scriptedFiller{err: errors.New("target closed")}
	c := newTestController(sc, fill, resilience.NewManualClock(time.Unix(0, 0)))

	err := c.Start(context.Background(), acmeLeads(3))

	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, StepFilling, fe.Step)
	assert.Equal(t, 0, fe.Lead)

	rows := c.Log().Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, model.LogError, rows[0].Status)
	assert.Contains(t, rows[0].Message, "target closed")
	assert.Equal(t, StateStopped, c.Status().State)
	sc.AssertNumberOfCalls(t, "CompanyFacts", 1)
}

func TestController_CampaignFailureIsFatal(t *testing.T) {
	selErr := &dropdown.SelectionError{
		Control: "Campaign",
		Query:   "Q3",
		State:   dropdown.WaitingForFilteredResults,
		Reason:  dropdown.ReasonNoMatch,
	}
	fill := &scriptedFiller{err: selErr}
	c := newTestController(quietScraper(), fill, resilience.NewManualClock(time.Unix(0, 0)))

	err := c.Start(context.Background(), acmeLeads(2))

	var target *dropdown.SelectionError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, dropdown.ReasonNoMatch, target.Reason)
	assert.Equal(t, 1, c.Log().Len())
}

func TestController_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sc := quietScraper()
	fill := &scriptedFiller{hook: func(int) { cancel() }}
	c := newTestController(sc, fill, resilience.NewManualClock(time.Unix(0, 0)))

	err := c.Start(ctx, acmeLeads(3))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, c.Log().Len())
	assert.Equal(t, StateStopped, c.Status().State)
}

func TestController_ScrapeMergesAndCampaign(t *testing.T) {
	clk := resilience.NewManualClock(time.Unix(0, 0))
	sc := new(mockScraper)
	sc.On("CompanyFacts", mock.Anything, "acme.com").Return(model.FactRecord{
		Headquarters: "123 Main St, Springfield, IL, 62704, USA",
		Employees:    "75",
		SourceURL:    "https://www.zoominfo.com/c/acme/1",
	}, nil)
	sc.On("DirectoryAddress", mock.Anything, "acme.com").Return(model.FactRecord{
		ZipCode:   "62701",
		SourceURL: "https://www.zoominfo.com/pic/acme/1",
	}, nil)
	sc.On("Email", mock.Anything, "acme.com", "Jane", "Doe").Return(model.FactRecord{Email: "jane.doe@acme.com"}, nil)

	fill := &scriptedFiller{}
	c := newTestController(sc, fill, clk, func(o *Options) {
		o.Campaign = "Default Campaign"
		o.ScrapeDelay = 2 * time.Second
	})

	leads := acmeLeads(2)
	leads[1].Fields[model.FieldCampaign] = "Q3 Outreach"
	require.NoError(t, c.Start(context.Background(), leads))

	require.Equal(t, 2, fill.count())
	first := fill.calls[0]
	assert.Equal(t, "Default Campaign", first.campaign)
	assert.Equal(t, "Q3 Outreach", fill.calls[1].campaign)
	assert.Equal(t, "jane.doe@acme.com", first.payload[form.FieldEmail])
	assert.Equal(t, "62701", first.payload[form.FieldZipCode])
	assert.Equal(t, "Springfield", first.payload[form.FieldCity])
	assert.Equal(t, "2", first.payload[form.FieldEmployeeRange])
	assert.Equal(t, "https://www.zoominfo.com/c/acme/1", first.payload[form.FieldEmployeeVerify])

	// Two scrape delays per lead plus one inter-lead delay.
	assert.Equal(t, 2*2*2*time.Second+3*time.Second, clk.Slept())

	// Leads are enriched in the caller's slice.
	assert.Equal(t, "Acme", leads[0].ResolvedCompany)
	assert.Equal(t, "jane.doe@acme.com", leads[0].Email)
	assert.Equal(t, "75", leads[0].Facts.Employees)
	assert.Equal(t, "Default Campaign", leads[0].Campaign)
	assert.Equal(t, "Q3 Outreach", leads[1].Campaign)

	row := c.Log().Rows()[0]
	assert.Equal(t, "Acme", row.Company)
	assert.Equal(t, "acme.com", row.Domain)
	assert.Equal(t, "Jane Doe", row.PersonName)
}

type formLoader struct{ loads int }

func (f *formLoader) Load(context.Context) error {
	f.loads++
	return nil
}

func TestController_LoadsFormPerLead(t *testing.T) {
	loader := &formLoader{}
	c := newTestController(quietScraper(), &scriptedFiller{}, resilience.NewManualClock(time.Unix(0, 0)),
		func(o *Options) { o.Form = loader })

	require.NoError(t, c.Start(context.Background(), acmeLeads(3)))
	assert.Equal(t, 3, loader.loads)
}

func TestClassifyEmailCheck(t *testing.T) {
	tests := []struct {
		text string
		want Outcome
	}{
		{"Invalid Email", OutcomeInvalid},
		{"Please enter a valid email address.", OutcomeInvalid},
		{"Email is not valid", OutcomeInvalid},
		{"Not Verified", OutcomeInvalid},
		{"Not deliverable", OutcomeInvalid},
		{"Unverified", OutcomeInvalid},
		{"Hard Invalid", OutcomeHardInvalid},
		{"hard bounce recorded", OutcomeHardInvalid},
		{"Catch-all domain", OutcomeRetry},
		{"Status unknown, please retry", OutcomeRetry},
		{"Email is valid", OutcomeValid},
		{"Deliverable", OutcomeValid},
		{"Saved", OutcomeOther},
		{"   ", OutcomeOther},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyEmailCheck(tt.text))
		})
	}
}

func TestBlockTable(t *testing.T) {
	bt := NewBlockTable(2)
	assert.False(t, bt.Blocked("Acme"))

	assert.Equal(t, BlockState{InvalidStreak: 1}, bt.RecordInvalid("Acme"))
	bt.ClearStreak("acme")
	assert.Equal(t, BlockState{}, bt.Get("Acme"))

	bt.RecordInvalid("Acme")
	assert.Equal(t, BlockState{InvalidStreak: 2, Blocked: true}, bt.RecordInvalid(" ACME"))
	bt.ClearStreak("Acme")
	assert.True(t, bt.Blocked("Acme"))

	bt.ClearStreak("Unknown")
	assert.Len(t, bt.Snapshot(), 1)

	assert.Equal(t, 1, NewBlockTable(0).limit)
}

func TestAuditLog_ConcurrentAppend(t *testing.T) {
	var log AuditLog
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Append(model.LogRow{Status: model.LogSuccess})
			_ = log.Rows()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, log.Len())
}
